package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayForLevel(t *testing.T) {
	ti := buildDefaultInstance(t)

	// base 100ms, multiplier 2, cap 800ms
	assert.Equal(t, time.Duration(0), ti.Instance.delayForLevel(0))
	assert.Equal(t, time.Duration(100)*time.Millisecond, ti.Instance.delayForLevel(1))
	assert.Equal(t, time.Duration(200)*time.Millisecond, ti.Instance.delayForLevel(2))
	assert.Equal(t, time.Duration(400)*time.Millisecond, ti.Instance.delayForLevel(3))
	assert.Equal(t, time.Duration(800)*time.Millisecond, ti.Instance.delayForLevel(4))

	// the cap holds for any further level
	assert.Equal(t, time.Duration(800)*time.Millisecond, ti.Instance.delayForLevel(5))
	assert.Equal(t, time.Duration(800)*time.Millisecond, ti.Instance.delayForLevel(20))
}

func TestMonotonicSaturatingEscalation(t *testing.T) {
	ti := buildDefaultInstance(t)
	ctx := context.Background()

	expected := []time.Duration{
		time.Duration(100) * time.Millisecond,
		time.Duration(200) * time.Millisecond,
		time.Duration(400) * time.Millisecond,
		time.Duration(800) * time.Millisecond,
		// level saturates at 4, the penalty stays capped
		time.Duration(800) * time.Millisecond,
		time.Duration(800) * time.Millisecond,
	}

	for i, expectedDelay := range expected {
		ti.ResetSleeps()
		assert.Nil(t, ti.Instance.ReportRejection(ctx))
		assert.Equal(t, expectedDelay, ti.TotalSlept(), "penalty for report %d", i+1)

		expectedLevel := i + 1
		if expectedLevel > defaultTestBackoffMaxLevel {
			expectedLevel = defaultTestBackoffMaxLevel
		}
		ti.AssertBackoffLevel(t, expectedLevel)
	}

	stats := ti.Instance.Snapshot()
	assert.Equal(t, uint64(6), stats.RejectedCalls)
	assert.Equal(t, uint64(6), stats.BackoffEvents)
	assert.Equal(t, defaultTestBackoffMaxLevel, stats.CurrentBackoffLevel)
}

func TestResetIdempotence(t *testing.T) {
	ti := buildDefaultInstance(t)
	ctx := context.Background()

	assert.Nil(t, ti.Instance.ReportRejection(ctx))
	assert.Nil(t, ti.Instance.ReportRejection(ctx))
	assert.True(t, ti.Instance.IsPenalized())

	ti.Instance.Reset()
	assert.False(t, ti.Instance.IsPenalized())
	assert.Equal(t, 0, ti.Instance.Snapshot().CurrentBackoffLevel)

	// a subsequent acquisition incurs no back-off delay
	ti.ResetSleeps()
	assert.Nil(t, ti.Instance.Acquire(ctx))
	assert.Equal(t, time.Duration(0), ti.TotalSlept())

	// resetting an already quiescent governor changes nothing
	ti.Instance.Reset()
	assert.False(t, ti.Instance.IsPenalized())
}

func TestRetryAfterHintOverridesImmediatePenalty(t *testing.T) {
	ti := buildDefaultInstance(t)
	ctx := context.Background()

	hint := time.Duration(1234) * time.Millisecond
	assert.Nil(t, ti.Instance.ReportRejectionAfter(ctx, hint))

	// the hint governs the immediate wait, the level still escalates
	assert.Equal(t, hint, ti.TotalSlept())
	ti.AssertBackoffLevel(t, 1)

	// subsequent acquisitions serve the formula penalty, not the hint
	ti.ResetSleeps()
	assert.Nil(t, ti.Instance.Acquire(ctx))
	assert.Equal(t, time.Duration(100)*time.Millisecond, ti.TotalSlept())
}

func TestPenaltyPersistsAcrossAcquisitions(t *testing.T) {
	ti := buildDefaultInstance(t)
	ctx := context.Background()

	assert.Nil(t, ti.Instance.ReportRejection(ctx))

	// the penalty keeps applying to every acquisition until Reset
	for i := 0; i < 3; i++ {
		ti.ResetSleeps()
		assert.Nil(t, ti.Instance.Acquire(ctx))
		assert.Equal(t, time.Duration(100)*time.Millisecond, ti.TotalSlept())
	}

	ti.Instance.Reset()

	ti.ResetSleeps()
	assert.Nil(t, ti.Instance.Acquire(ctx))
	assert.Equal(t, time.Duration(0), ti.TotalSlept())
}

func TestBackoffPenaltyAccumulatesIntoTotalDelay(t *testing.T) {
	ti := buildDefaultInstance(t)
	ctx := context.Background()

	assert.Nil(t, ti.Instance.ReportRejection(ctx))
	assert.Equal(t, time.Duration(100)*time.Millisecond, ti.Instance.Snapshot().TotalDelay)

	// the penalty served during an acquisition counts as well
	assert.Nil(t, ti.Instance.Acquire(ctx))
	assert.Equal(t, time.Duration(200)*time.Millisecond, ti.Instance.Snapshot().TotalDelay)
}

func TestReportRejectionCancellation(t *testing.T) {
	ti := buildDefaultInstance(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ti.Instance.ReportRejection(ctx)
	assert.NotNil(t, err)
	assert.Equal(t, context.Canceled, err)

	// the escalation stands but no statistics were recorded
	// for the abandoned wait
	ti.AssertBackoffLevel(t, 1)
	stats := ti.Instance.Snapshot()
	assert.Equal(t, uint64(0), stats.RejectedCalls)
	assert.Equal(t, uint64(0), stats.BackoffEvents)
	assert.Equal(t, time.Duration(0), stats.TotalDelay)
}
