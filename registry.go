package governor

import (
	"fmt"
	"strings"
	"sync"
)

// Registry hands out one governor per distinct external dependency,
// lazily constructing each from the same base configuration.
//
// Two call sites asking for the same dependency key always share the
// same instance, so the dependency's ceiling is enforced process-wide.
type Registry struct {
	lock      sync.Mutex
	config    Config
	governors map[string]RequestGovernor
}

// NewRegistry returns a registry that builds its governors from the
// given configuration.
//
// The configuration is validated eagerly so that For can never fail.
func NewRegistry(config Config) (*Registry, error) {
	if _, err := validateConfiguration(&config, config.Logger); err != nil {
		return nil, err
	}

	return &Registry{
		config:    config,
		governors: make(map[string]RequestGovernor),
	}, nil
}

// For returns the governor for the given dependency key,
// constructing it on first use.
func (registry *Registry) For(dependency string) RequestGovernor {
	if strings.TrimSpace(dependency) == "" {
		panic("dependency key must not be blank")
	}

	registry.lock.Lock()
	defer registry.lock.Unlock()

	existing, exists := registry.governors[dependency]
	if exists {
		return existing
	}

	config := registry.config
	instance, err := New(&config)
	if err != nil {
		// the configuration was validated at construction
		panic(fmt.Errorf("error building governor for dependency %q: %w", dependency, err))
	}

	registry.governors[dependency] = instance
	return instance
}

// Snapshots returns the statistics of every governor
// constructed so far, indexed by dependency key.
func (registry *Registry) Snapshots() map[string]Statistics {
	registry.lock.Lock()
	defer registry.lock.Unlock()

	out := make(map[string]Statistics, len(registry.governors))
	for dependency, instance := range registry.governors {
		out[dependency] = instance.Snapshot()
	}

	return out
}
