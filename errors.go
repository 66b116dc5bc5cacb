package governor

import (
	"fmt"
	"time"
)

var (
	// ErrRateLimited is a sentinel for the error that
	// Guard surfaces when the wrapped call failed with a signal
	// the rejection classifier recognizes.
	//
	// By the time a caller observes this error the back-off penalty
	// has already been served, so an immediate retry is correctly spaced.
	ErrRateLimited = &RateLimitedError{}
)

// RateLimitedError is returned by Guard when the wrapped call failed
// with a recognized external rejection signal.
//
// When the rejected call carried a Retry-After hint from the server,
// RetryAfterAvailable is true and RetryAfter holds the hinted wait.
type RateLimitedError struct {
	RetryAfter          time.Duration
	RetryAfterAvailable bool
	Cause               error
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfterAvailable {
		return fmt.Sprintf(
			"RateLimited: the external dependency rejected the call, retry in %v ms",
			e.RetryAfter.Milliseconds(),
		)
	}
	return "RateLimited: the external dependency rejected the call"
}

func (e *RateLimitedError) Is(tgt error) bool {
	_, ok := tgt.(*RateLimitedError)
	return ok
}

func (e *RateLimitedError) Unwrap() error {
	return e.Cause
}
