package services

import (
	"fmt"
	"time"

	"mixtape/internal/shared"
)

// RateLimitError reports provider throttling. Callers may retry after
// RetryAfter elapses; no automatic retry happens here.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error {
	return shared.ErrRateLimited
}
