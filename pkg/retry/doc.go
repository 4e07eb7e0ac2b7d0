// Package retry provides exponential backoff and retry logic for Graph API
// and OAuth calls.
//
// Features:
//   - Exponential and constant backoff with jitter
//   - Context support for cancellation
//   - Per error type backoff (network, rate limit, server)
//   - Retry predicate driven by pkg/errors types and HTTP status codes
//
// Basic usage:
//
//	cfg := retry.FromConfig(appCfg.Retry, logger.GetLogger())
//	page, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) (*instagram.MediaPage, error) {
//		return client.FetchMediaPage(ctx, next)
//	})
//
// Error handling:
//   - 401, 403, 404 and other 4xx responses: no retry
//   - 429: retried with a long backoff
//   - 5xx and connection failures: retried
package retry
