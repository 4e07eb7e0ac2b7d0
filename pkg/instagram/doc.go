// Package instagram provides a client for the Instagram Graph API and its
// OAuth token endpoints.
//
// This package includes:
//   - A configurable HTTP client with typed errors, rate limiting and retries
//   - Models for profiles, media pages and token responses
//   - URL builders for the Graph API and OAuth endpoints
//
// Example usage:
//
//	client := instagram.NewClient(cfg.Instagram,
//		instagram.WithLimiter(ratelimit.FromConfig(cfg.RateLimit)),
//		instagram.WithRetry(retry.FromConfig(cfg.Retry, log)),
//		instagram.WithPageDelay(cfg.RateLimit.PageDelay),
//	)
//
//	profile, err := client.FetchProfile(ctx, "me")
//	if err != nil {
//		if errors.Is(err, errors.ErrorTypeAuth) {
//			// token expired or revoked
//		}
//	}
//
//	media, err := client.FetchAllMedia(ctx, profile.ID, instagram.FetchOptions{
//		ExpectedTotal: profile.MediaCount,
//	})
//
// Access tokens and client secrets are redacted from every logged URL.
package instagram
