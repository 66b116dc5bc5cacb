package governor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	defaultTestCallsPerSecond  = 10.0
	defaultTestWindow          = time.Second
	defaultTestBackoffBase     = time.Duration(100) * time.Millisecond
	defaultTestBackoffMax      = time.Duration(800) * time.Millisecond
	defaultTestBackoffMaxLevel = 4
)

type testableInstance struct {
	Instance    *requestGovernorDefaultImpl
	CurrentTime uint64
	Sleeps      []time.Duration
}

func (ti *testableInstance) TimeTravel(diff int64) {
	ti.CurrentTime = uint64(int64(ti.CurrentTime) + diff)
}

func (ti *testableInstance) AssertCurrentTime(t *testing.T, expected uint64) {
	assert.Equal(t, uint64(expected), ti.CurrentTime, "the current time is expected to be %v and is instead %v", expected, ti.CurrentTime)
}

// TotalSlept sums every sleep the instance served since the last ResetSleeps.
func (ti *testableInstance) TotalSlept() time.Duration {
	out := time.Duration(0)
	for _, slept := range ti.Sleeps {
		out += slept
	}
	return out
}

func (ti *testableInstance) ResetSleeps() {
	ti.Sleeps = nil
}

func (ti *testableInstance) AssertWindowLen(t *testing.T, expected int) {
	assert.Equal(t, expected, ti.Instance.CallTimestamps.Len())
}

func (ti *testableInstance) AssertBackoffLevel(t *testing.T, expected int) {
	assert.Equal(t, expected, ti.Instance.BackoffLevel)
}

func buildInstance(t *testing.T, configurer func(config *Config)) *testableInstance {
	ti := testableInstance{
		CurrentTime: 1000000,
	}

	timeFunc := func() time.Time {
		return time.Unix(
			int64(ti.CurrentTime)/int64(1000),
			(int64(ti.CurrentTime)%int64(1000))*int64(1000000),
		)
	}

	sleepFunc := func(ctx context.Context, d time.Duration) error {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		newTime := ti.CurrentTime + uint64(d.Milliseconds())
		fmt.Printf("testable instance is waiting from %v to %v\n", ti.CurrentTime, newTime)
		ti.CurrentTime = newTime
		ti.Sleeps = append(ti.Sleeps, d)
		return nil
	}

	config := Config{
		MaxCallsPerSecond: defaultTestCallsPerSecond,
		Window:            defaultTestWindow,
		BackoffBase:       defaultTestBackoffBase,
		BackoffMultiplier: 2.0,
		BackoffMax:        defaultTestBackoffMax,
		BackoffMaxLevel:   defaultTestBackoffMaxLevel,
		TimeFunc:          timeFunc,
		SleepFunc:         sleepFunc,
	}

	if configurer != nil {
		configurer(&config)
	}

	instance, err := New(&config)

	if t != nil {
		assert.NotNil(t, instance)
		assert.Nil(t, err)
	}

	ti.Instance = instance.(*requestGovernorDefaultImpl)

	return &ti
}

func buildDefaultInstance(t *testing.T) *testableInstance {
	return buildInstance(t, nil)
}

type testLogger struct {
	Messages []string
}

func (l *testLogger) Debug(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[d] %v", text))
}
func (l *testLogger) Info(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[i] %v", text))
}
func (l *testLogger) Warning(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[w] %v", text))
}
func (l *testLogger) Error(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[e] %v", text))
}
