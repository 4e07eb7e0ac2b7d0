// Package ratelimit paces requests to the Instagram Graph API.
//
// Two limiters are provided:
//
// Paced:
//   - Token bucket from golang.org/x/time/rate
//   - Spreads requests evenly at N per minute with a small burst
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Models the Graph API's hourly call budget
//
// Both implement Limiter (Allow, Wait(ctx), Reset). Chain combines them and
// FromConfig builds the chain from the rate_limit config section.
//
// Usage:
//
//	limiter := ratelimit.FromConfig(cfg.RateLimit)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // context cancelled
//	}
//	// proceed with request
package ratelimit
