package governor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Acquire blocks until performing one outbound call would respect both
// the sliding-window ceiling and any currently active back-off penalty.
//
// The composition order is fixed: active penalty first, then the window
// throttle, then the random jitter. A non-nil error is returned only on
// context cancellation.
func (instance *requestGovernorDefaultImpl) Acquire(ctx context.Context) error {
	// while penalized, every acquisition serves the formula penalty
	// for the current level, not the hint that may have triggered it
	instance.Lock.Lock()
	penalty := instance.delayForLevel(instance.BackoffLevel)
	instance.Lock.Unlock()

	if penalty > 0 {
		instance.Logger.Debug(fmt.Sprintf("active back-off, serving a %v ms penalty before the call", penalty.Milliseconds()))
		if err := instance.sleep(ctx, penalty); err != nil {
			return err
		}
	}

	if err := instance.throttle(ctx); err != nil {
		return err
	}

	jitter := instance.JitterFunc(instance.Config.JitterMin, instance.Config.JitterMax)
	if jitter > 0 {
		if err := instance.sleep(ctx, jitter); err != nil {
			return err
		}
	}

	instance.Lock.Lock()
	instance.TotalCalls++
	instance.LastCallTime = instance.currentTime()
	instance.TotalDelay += penalty
	instance.Lock.Unlock()

	return nil
}

// Guard wraps a single context-aware call site.
//
// A failure the classifier recognizes escalates the back-off, serves the
// penalty and is surfaced as a *RateLimitedError wrapping the original
// failure. Any other failure propagates unchanged with no effect on the
// governor state, since misclassifying a normal error would throttle
// unrelated traffic.
func (instance *requestGovernorDefaultImpl) Guard(ctx context.Context, call func(ctx context.Context) error) error {
	if err := instance.Acquire(ctx); err != nil {
		return err
	}

	err := call(ctx)
	if err == nil {
		return nil
	}

	if !LooksLikeRejection(err) {
		return err
	}

	out := &RateLimitedError{
		Cause: err,
	}

	// carry over a Retry-After hint when the failed call already
	// surfaced one
	var typed *RateLimitedError
	if errors.As(err, &typed) && typed.RetryAfterAvailable {
		out.RetryAfter = typed.RetryAfter
		out.RetryAfterAvailable = true
	}

	var reportErr error
	if out.RetryAfterAvailable {
		reportErr = instance.ReportRejectionAfter(ctx, out.RetryAfter)
	} else {
		reportErr = instance.ReportRejection(ctx)
	}
	if reportErr != nil {
		// canceled while serving the penalty
		return reportErr
	}

	return out
}

// GuardPlain works like Guard for direct call sites
// that do not carry a context.
func (instance *requestGovernorDefaultImpl) GuardPlain(call func() error) error {
	return instance.Guard(context.Background(), func(context.Context) error {
		return call()
	})
}

// Acquire invokes Acquire on the process-wide default governor.
func Acquire(ctx context.Context) error {
	return Default().Acquire(ctx)
}

// ReportRejection invokes ReportRejection on the process-wide default governor.
func ReportRejection(ctx context.Context) error {
	return Default().ReportRejection(ctx)
}

// ReportRejectionAfter invokes ReportRejectionAfter on the process-wide default governor.
func ReportRejectionAfter(ctx context.Context, retryAfter time.Duration) error {
	return Default().ReportRejectionAfter(ctx, retryAfter)
}

// Reset invokes Reset on the process-wide default governor.
func Reset() {
	Default().Reset()
}

// Guard invokes Guard on the process-wide default governor.
func Guard(ctx context.Context, call func(ctx context.Context) error) error {
	return Default().Guard(ctx, call)
}

// GuardPlain invokes GuardPlain on the process-wide default governor.
func GuardPlain(call func() error) error {
	return Default().GuardPlain(call)
}
