package ports

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of one rate limit check
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts requests per key over a fixed window
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitDecision, error)
}
