package governor

import (
	"context"
	"fmt"
	"math"
	"time"
)

// delayForLevel computes the geometric penalty for the given
// escalation level: zero at level zero, otherwise
// min(BackoffMax, BackoffBase * BackoffMultiplier^(level-1)).
func (instance *requestGovernorDefaultImpl) delayForLevel(level int) time.Duration {
	if level <= 0 {
		return 0
	}

	delay := float64(instance.Config.BackoffBase) * math.Pow(instance.Config.BackoffMultiplier, float64(level-1))
	if delay >= float64(instance.Config.BackoffMax) {
		return instance.Config.BackoffMax
	}

	return time.Duration(delay)
}

// ReportRejection escalates the back-off level and blocks until the
// newly computed penalty has been served.
func (instance *requestGovernorDefaultImpl) ReportRejection(ctx context.Context) error {
	return instance.reportRejection(ctx, 0, false)
}

// ReportRejectionAfter works like ReportRejection but serves the
// server-provided retryAfter hint instead of the computed penalty.
// The hint does not affect subsequent acquisitions: those keep serving
// the formula penalty for the current level until Reset.
func (instance *requestGovernorDefaultImpl) ReportRejectionAfter(ctx context.Context, retryAfter time.Duration) error {
	return instance.reportRejection(ctx, retryAfter, true)
}

func (instance *requestGovernorDefaultImpl) reportRejection(ctx context.Context, retryAfter time.Duration, hintAvailable bool) error {
	instance.Lock.Lock()

	// saturating escalation, never an error
	if instance.BackoffLevel < instance.Config.BackoffMaxLevel {
		instance.BackoffLevel++
	}
	level := instance.BackoffLevel

	delay := instance.delayForLevel(level)
	if hintAvailable && retryAfter >= 0 {
		delay = retryAfter
	}

	instance.Lock.Unlock()

	instance.Logger.Warning(fmt.Sprintf(
		"rejection reported by the external dependency, serving a %v ms penalty at level %d",
		delay.Milliseconds(), level,
	))

	if delay > 0 {
		if err := instance.sleep(ctx, delay); err != nil {
			// the escalation stands, but nothing is recorded
			// for the abandoned wait
			return err
		}
	}

	instance.Lock.Lock()
	instance.RejectedCalls++
	instance.BackoffEvents++
	instance.TotalDelay += delay
	instance.Lock.Unlock()

	return nil
}

// Reset clears the escalation after an observed success.
func (instance *requestGovernorDefaultImpl) Reset() {
	instance.Lock.Lock()
	cleared := instance.BackoffLevel
	instance.BackoffLevel = 0
	instance.Lock.Unlock()

	if cleared > 0 {
		instance.Logger.Debug(fmt.Sprintf("back-off level %d cleared after observed success", cleared))
	}
}
