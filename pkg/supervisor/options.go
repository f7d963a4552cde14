package supervisor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/deployd/pkg/adapters/process"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/observability"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Option configures the Supervisor.
type Option func(*Supervisor)

// WithLogger configures the logger handed to the supervisor and its processes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithStore mirrors bookkeeping to store instead of memory.
func WithStore(store ports.DeploymentStore) Option {
	return func(s *Supervisor) {
		s.store = store
	}
}

// WithLocker enables distributed locking of deployment names.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Supervisor) {
		s.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Supervisor) {
		s.lockTTL = ttl
	}
}

// WithMetrics records lifecycle events in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithHooks registers lifecycle hooks on every process the supervisor builds.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Supervisor) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithCommands registers the external commands, keyed by deployment model name.
func WithCommands(commands map[string]process.Config) Option {
	return func(s *Supervisor) {
		for name, cfg := range commands {
			s.commands[name] = cfg
		}
	}
}

// WithLoader lets DeployModel look models up by name.
func WithLoader(loader ports.ModelLoader) Option {
	return func(s *Supervisor) {
		s.loader = loader
	}
}

// WithWaitTimeout is the readiness timeout used when SpawnOptions.Wait is set
// without a WaitTimeout.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.waitTimeout = d
	}
}

// DecodeSpawnOptions builds SpawnOptions from loosely typed input, such as a
// JSON request body or MCP tool arguments. Durations may be strings ("5s").
func DecodeSpawnOptions(input map[string]any) (domain.SpawnOptions, error) {
	var opts domain.SpawnOptions
	if len(input) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := decoder.Decode(input); err != nil {
		return opts, fmt.Errorf("invalid spawn options: %w", err)
	}
	return opts, nil
}
