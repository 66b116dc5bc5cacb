package governor

import (
	"context"
	"time"
)

// RequestGovernor is the public interface for the outbound-call governors
// created with governor.New(...).
//
// A single instance should be shared process-wide per distinct external
// dependency: constructing multiple instances for the same dependency
// defeats the shared ceiling.
type RequestGovernor interface {
	// Acquire blocks until performing one outbound call would respect
	// both the sliding-window ceiling and any currently active back-off
	// penalty, then returns.
	//
	// A small random jitter is always served before returning.
	//
	// A non-nil error is returned only when the context is canceled
	// while waiting; in that case no statistics are recorded
	// for the abandoned attempt.
	Acquire(ctx context.Context) error

	// ReportRejection escalates the back-off level and blocks until the
	// newly computed penalty has been served, so that an immediate retry
	// by the caller is automatically spaced correctly.
	//
	// A non-nil error is returned only on context cancellation.
	ReportRejection(ctx context.Context) error

	// ReportRejectionAfter works like ReportRejection but sleeps for the
	// server-provided retryAfter hint instead of the computed penalty.
	//
	// The hint only overrides the immediate wait: the escalation level
	// still increases and the computed penalty still applies to every
	// subsequent Acquire until Reset is invoked.
	ReportRejectionAfter(ctx context.Context, retryAfter time.Duration) error

	// Reset clears the back-off level after an observed success.
	// It never blocks.
	Reset()

	// Guard wraps a single context-aware call site: it invokes Acquire,
	// runs the call, and translates a failure that looks like an external
	// rejection into a *RateLimitedError after serving the back-off
	// penalty. Any unrelated failure is propagated unchanged with no
	// effect on the governor state.
	Guard(ctx context.Context, call func(ctx context.Context) error) error

	// GuardPlain works like Guard for direct call sites that do not
	// carry a context.
	GuardPlain(call func() error) error

	// IsPenalized returns true while an unresolved rejection keeps the
	// back-off level above zero.
	IsPenalized() bool

	// CurrentRate returns the observed call rate over the trailing
	// window, in calls per second. It is a readonly diagnostic and plays
	// no role in throttling decisions.
	CurrentRate() float64

	// Snapshot returns a copy of the runtime statistics.
	Snapshot() Statistics
}

// Statistics holds a point-in-time copy of the governor counters.
//
// All counters are monotonically non-decreasing for the lifetime of the
// instance, except CurrentBackoffLevel which returns to zero on Reset.
// Nothing is persisted across process restarts.
type Statistics struct {
	// TotalCalls is the number of calls admitted through Acquire.
	TotalCalls uint64

	// RejectedCalls is the number of rejections reported by callers.
	RejectedCalls uint64

	// BackoffEvents counts the back-off penalties served on report.
	BackoffEvents uint64

	// TotalDelay accumulates every window wait and back-off penalty
	// actually served.
	TotalDelay time.Duration

	// CurrentBackoffLevel mirrors the escalation level at snapshot time.
	CurrentBackoffLevel int

	// LastCallTime is the admission time of the most recent call,
	// zero if no call was admitted yet.
	LastCallTime time.Time
}
