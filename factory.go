package governor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var (
	defaultWindow            = time.Second
	defaultBackoffBase       = time.Second
	defaultBackoffMultiplier = 2.0
	defaultBackoffMax        = 60 * time.Second
	defaultBackoffMaxLevel   = 6
)

// Config holds the configuration for a governor instance.
type Config struct {

	// MaxCallsPerSecond is the target steady-state ceiling:
	// the maximum sustained rate of outbound calls that
	// will ever be admitted.
	//
	// It is the only required parameter.
	MaxCallsPerSecond float64

	// Window is the width of the trailing interval over which
	// the ceiling is measured. The capacity within the window
	// is MaxCallsPerSecond * Window.
	//
	// When not specified, one second is assumed.
	Window time.Duration

	// BackoffBase is the penalty served after the first
	// reported rejection.
	//
	// When not specified, one second is assumed.
	BackoffBase time.Duration

	// BackoffMultiplier is the geometric growth factor applied
	// to the penalty on each further escalation.
	// It should never be less than 1.
	//
	// When not specified, a factor of 2 is assumed.
	BackoffMultiplier float64

	// BackoffMax caps the penalty regardless of the escalation level.
	//
	// When not specified, one minute is assumed.
	BackoffMax time.Duration

	// BackoffMaxLevel caps the escalation level itself:
	// further rejections saturate instead of escalating.
	//
	// When not specified, a maximum level of 6 is assumed.
	BackoffMaxLevel int

	// JitterMin and JitterMax bound the random delay served on every
	// acquisition. Both default to zero, disabling jitter.
	JitterMin time.Duration
	JitterMax time.Duration

	// Time-related functions can be overriden to allow for easier testing
	// you should usually not override these.
	TimeFunc  func() time.Time
	SleepFunc func(ctx context.Context, d time.Duration) error

	// JitterFunc can be overridden for testing. The default draws
	// uniformly from [JitterMin, JitterMax] using crypto/rand,
	// deliberately avoiding any seedable pseudo-random source.
	JitterFunc func(min time.Duration, max time.Duration) time.Duration

	// you can pass your custom logger if you'd like to
	// but it's not required
	Logger Logger
}

// New returns an instance of governor.RequestGovernor
// built with the specified configuration.
//
// A non-nil error is returned in case of invalid configuration.
func New(config *Config) (RequestGovernor, error) {
	effectiveLogger := config.Logger
	if effectiveLogger == nil {
		effectiveLogger = &defaultLogger{}
	}

	parsedConfig, err := validateConfiguration(config, effectiveLogger)
	if err != nil {
		return nil, err
	}

	out := requestGovernorDefaultImpl{
		Config:     parsedConfig,
		Logger:     effectiveLogger,
		TimeFunc:   config.TimeFunc,
		SleepFunc:  config.SleepFunc,
		JitterFunc: config.JitterFunc,
	}

	if out.TimeFunc == nil {
		out.TimeFunc = time.Now
	}
	if out.SleepFunc == nil {
		out.SleepFunc = sleepWithContext
	}
	if out.JitterFunc == nil {
		out.JitterFunc = drawJitter
	}

	out.CallTimestamps = out.newWindowQueue()

	return &out, nil
}

// validateConfiguration will parse the user-provided configuration
// to the required format for runtime while also validating it.
func validateConfiguration(config *Config, logger Logger) (*governorEffectiveConfig, error) {
	if logger == nil {
		logger = &defaultLogger{}
	}

	out := governorEffectiveConfig{}

	if config.MaxCallsPerSecond <= 0 {
		return nil, fmt.Errorf("MaxCallsPerSecond should be greater than 0 (given: %v)", config.MaxCallsPerSecond)
	}
	out.MaxCallsPerSecond = config.MaxCallsPerSecond

	if config.Window < 0 {
		return nil, fmt.Errorf("Window should not be negative (given: %v)", config.Window)
	}
	out.Window = config.Window
	if out.Window == 0 {
		out.Window = defaultWindow
	}

	// the small epsilon swallows floating point noise
	// from products like 20 * 0.1
	capacity := int(config.MaxCallsPerSecond*out.Window.Seconds() + 1e-9)
	if capacity < 1 {
		return nil, fmt.Errorf(
			"the given Window of %v is too narrow to admit a single call at %v calls per second",
			out.Window, config.MaxCallsPerSecond,
		)
	}
	out.WindowCapacity = capacity

	if config.BackoffBase < 0 {
		return nil, fmt.Errorf("BackoffBase should not be negative (given: %v)", config.BackoffBase)
	}
	out.BackoffBase = config.BackoffBase
	if out.BackoffBase == 0 {
		out.BackoffBase = defaultBackoffBase
	}

	if config.BackoffMultiplier < 0 {
		return nil, fmt.Errorf("BackoffMultiplier should not be negative (given: %v)", config.BackoffMultiplier)
	}
	out.BackoffMultiplier = config.BackoffMultiplier
	if out.BackoffMultiplier == 0 {
		out.BackoffMultiplier = defaultBackoffMultiplier
	}
	if out.BackoffMultiplier < 1 {
		return nil, fmt.Errorf("BackoffMultiplier should be at least 1 to guarantee non-decreasing penalties (given: %v)", config.BackoffMultiplier)
	}

	if config.BackoffMax < 0 {
		return nil, fmt.Errorf("BackoffMax should not be negative (given: %v)", config.BackoffMax)
	}
	out.BackoffMax = config.BackoffMax
	if out.BackoffMax == 0 {
		out.BackoffMax = defaultBackoffMax
	}
	if out.BackoffMax < out.BackoffBase {
		return nil, fmt.Errorf("BackoffMax should not be less than BackoffBase (given: %v over %v)", config.BackoffMax, out.BackoffBase)
	}
	if out.BackoffMax == out.BackoffBase && config.BackoffMaxLevel > 1 {
		logger.Warning("BackoffMax equals BackoffBase: every escalation level will serve the same penalty")
	}

	if config.BackoffMaxLevel < 0 {
		return nil, fmt.Errorf("BackoffMaxLevel should not be negative (given: %v)", config.BackoffMaxLevel)
	}
	out.BackoffMaxLevel = config.BackoffMaxLevel
	if out.BackoffMaxLevel == 0 {
		out.BackoffMaxLevel = defaultBackoffMaxLevel
	}

	if config.JitterMin < 0 {
		return nil, fmt.Errorf("JitterMin should not be negative (given: %v)", config.JitterMin)
	}
	if config.JitterMax < config.JitterMin {
		return nil, fmt.Errorf("JitterMax should not be less than JitterMin (given: %v over %v)", config.JitterMax, config.JitterMin)
	}
	out.JitterMin = config.JitterMin
	out.JitterMax = config.JitterMax

	return &out, nil
}

// DefaultConfig returns the configuration used for the process-wide
// default governor: 10 calls per second over a one second window
// with the standard back-off parameters and a small jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxCallsPerSecond: 10,
		Window:            time.Second,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		BackoffMax:        60 * time.Second,
		BackoffMaxLevel:   6,
		JitterMin:         50 * time.Millisecond,
		JitterMax:         200 * time.Millisecond,
	}
}

var (
	defaultInstanceLock sync.Mutex
	defaultInstance     RequestGovernor
)

// Default returns the process-wide governor instance,
// lazily constructing it with DefaultConfig on first use.
func Default() RequestGovernor {
	defaultInstanceLock.Lock()
	defer defaultInstanceLock.Unlock()

	if defaultInstance == nil {
		instance, err := New(DefaultConfig())
		if err != nil {
			// DefaultConfig is always valid
			panic(fmt.Errorf("error building default governor: %w", err))
		}
		defaultInstance = instance
	}

	return defaultInstance
}

// SetDefault replaces the process-wide governor instance.
// It is mainly useful to substitute the default instance in tests.
func SetDefault(instance RequestGovernor) {
	defaultInstanceLock.Lock()
	defer defaultInstanceLock.Unlock()

	defaultInstance = instance
}
