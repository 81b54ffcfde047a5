// Package ratelimit throttles requests per client key.
//
// Limiter implementations decide whether one more attempt fits in the
// current window. Memory keeps counters in process and is enough for a
// single instance; Redis shares them between instances. Middleware
// adapts either one to net/http.
package ratelimit

import (
	"context"
	"time"
)

type Decision struct {
	Allowed bool
	// Remaining attempts in the current window after this one.
	Remaining int
	// RetryAfter is how long the client should wait when not allowed.
	RetryAfter time.Duration
}

type Limiter interface {
	// Allow records an attempt for key and reports whether it is
	// within quota. Check and record happen atomically per key.
	Allow(ctx context.Context, key string) (Decision, error)
}
