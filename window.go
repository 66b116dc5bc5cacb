package governor

import (
	"context"
	"fmt"
	"time"
)

// pruneWindow drops every timestamp that has aged out of the trailing
// window. Must be called with the lock held.
func (instance *requestGovernorDefaultImpl) pruneWindow(now time.Time) {
	lowerBound := now.Add(-instance.Config.Window)

	queue := instance.CallTimestamps
	for queue.Len() > 0 && !queue.Front().(time.Time).After(lowerBound) {
		queue.PopFront()
	}
}

// throttle blocks until the window has room for one more call,
// then records the call timestamp.
//
// The lock is only held to prune and inspect the window: it is released
// before sleeping so that waiters do not serialize behind each other,
// and the wait is recomputed against the latest state on wakeup.
// No FIFO ordering is guaranteed among waiters; the ceiling is a rate,
// not a queue discipline.
func (instance *requestGovernorDefaultImpl) throttle(ctx context.Context) error {
	waited := time.Duration(0)

	for {
		instance.Lock.Lock()
		now := instance.currentTime()
		instance.pruneWindow(now)

		if instance.CallTimestamps.Len() < instance.Config.WindowCapacity {
			instance.CallTimestamps.PushBack(now)
			instance.TotalDelay += waited
			instance.Lock.Unlock()
			return nil
		}

		oldest := instance.CallTimestamps.Front().(time.Time)
		wait := instance.Config.Window - now.Sub(oldest)
		instance.Lock.Unlock()

		if wait <= 0 {
			// the oldest entry aged out between the prune and now
			continue
		}

		instance.Logger.Debug(fmt.Sprintf("window is full, waiting %v ms for the oldest call to age out", wait.Milliseconds()))

		if err := instance.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait
	}
}

// CurrentRate returns the observed call rate over the trailing window,
// in calls per second. Zero when no calls are in-window.
func (instance *requestGovernorDefaultImpl) CurrentRate() float64 {
	instance.Lock.Lock()
	defer instance.Lock.Unlock()

	instance.pruneWindow(instance.currentTime())

	return float64(instance.CallTimestamps.Len()) / instance.Config.Window.Seconds()
}
