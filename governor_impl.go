package governor

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// requestGovernorDefaultImpl holds all the required
// runtime data together with the parsed configuration.
type requestGovernorDefaultImpl struct {
	Logger Logger
	Config *governorEffectiveConfig

	// Time-related functions can be overridden for testing.
	TimeFunc   func() time.Time
	SleepFunc  func(ctx context.Context, d time.Duration) error
	JitterFunc func(min time.Duration, max time.Duration) time.Duration

	// a single lock serializes every mutation of the window,
	// the back-off level and the statistics.
	// It is never held across a sleep.
	Lock sync.Mutex

	// a deque implementation is used for the sliding window
	// as timestamps enter at the back and age out at the front.
	// Every retained entry lies within Window of the last prune.
	CallTimestamps *deque.Deque

	// BackoffLevel counts consecutive unresolved rejections,
	// saturating at BackoffMaxLevel. Zero means not penalized.
	BackoffLevel int

	// statistics counters, mutated only under the lock.
	TotalCalls    uint64
	RejectedCalls uint64
	BackoffEvents uint64
	TotalDelay    time.Duration
	LastCallTime  time.Time
}

// governorEffectiveConfig holds the validated and parsed configuration
// that was obtained from the user-provided configuration.
type governorEffectiveConfig struct {
	// ceiling
	MaxCallsPerSecond float64
	Window            time.Duration
	WindowCapacity    int

	// back-off parameters
	BackoffBase       time.Duration
	BackoffMultiplier float64
	BackoffMax        time.Duration
	BackoffMaxLevel   int

	// jitter bounds
	JitterMin time.Duration
	JitterMax time.Duration
}

func (instance *requestGovernorDefaultImpl) newWindowQueue() *deque.Deque {
	// preallocate to the window capacity
	// to avoid dynamically resizing and improve performance.
	minQueueCapacity := instance.Config.WindowCapacity
	if minQueueCapacity < 1 {
		minQueueCapacity = 1
	}
	return deque.New(minQueueCapacity, minQueueCapacity)
}

func (instance *requestGovernorDefaultImpl) currentTime() time.Time {
	// hook time provider here to allow easier testing
	return instance.TimeFunc()
}

func (instance *requestGovernorDefaultImpl) sleep(ctx context.Context, d time.Duration) error {
	// hook time provider here to allow easier testing
	return instance.SleepFunc(ctx, d)
}

// sleepWithContext is the default SleepFunc: a timed wait that aborts
// as soon as the context is canceled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drawJitter is the default JitterFunc. It draws uniformly from
// [min, max] using crypto/rand: a seedable pseudo-random source would
// let independent instances re-synchronize after a shared stall.
func drawJitter(min time.Duration, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	span := big.NewInt(int64(max-min) + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		// never fall back to a seedable source
		return min
	}

	return min + time.Duration(n.Int64())
}

// IsPenalized returns true while the back-off level is above zero.
func (instance *requestGovernorDefaultImpl) IsPenalized() bool {
	instance.Lock.Lock()
	defer instance.Lock.Unlock()

	return instance.BackoffLevel > 0
}

// Snapshot returns a copy of the runtime statistics.
func (instance *requestGovernorDefaultImpl) Snapshot() Statistics {
	instance.Lock.Lock()
	defer instance.Lock.Unlock()

	return Statistics{
		TotalCalls:          instance.TotalCalls,
		RejectedCalls:       instance.RejectedCalls,
		BackoffEvents:       instance.BackoffEvents,
		TotalDelay:          instance.TotalDelay,
		CurrentBackoffLevel: instance.BackoffLevel,
		LastCallTime:        instance.LastCallTime,
	}
}

// core methods have been moved to the window.go, backoff.go and guard.go files
