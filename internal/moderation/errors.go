package moderation

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPermissionDenied marks a missing delete/read/timeout capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound marks a message that is already gone.
	ErrNotFound = errors.New("not found")
)

// RateLimitError carries the interval signaled by the platform. A zero
// RetryAfter means the platform gave no interval.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
