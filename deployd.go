package deployd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/deployd/internal/logging"
	"github.com/aretw0/deployd/pkg/adapters/file"
	"github.com/aretw0/deployd/pkg/adapters/memory"
	"github.com/aretw0/deployd/pkg/adapters/process"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/observability"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/aretw0/deployd/pkg/resolver"
	"github.com/aretw0/deployd/pkg/supervisor"
)

// Deployd is the high-level entry point of the library.
// It wraps a supervisor, the loader it deploys models from and the service
// resolver over both.
type Deployd struct {
	sup      *supervisor.Supervisor
	loader   ports.ModelLoader
	factory  ports.TaskFactory
	resolver *resolver.Resolver
	metrics  *observability.Metrics
	logger   *slog.Logger
	closers  []func() error

	supOpts     []supervisor.Option
	devices     []string
	definitions []string

	Name string
}

// Option defines a functional option for configuring Deployd.
type Option func(*Deployd)

// WithLoader injects a model loader, bypassing the default file loader.
func WithLoader(l ports.ModelLoader) Option {
	return func(d *Deployd) {
		d.loader = l
	}
}

// WithTaskFactory sets the factory of in-process tasks.
// Defaults to a memory.Factory that accepts any task model.
func WithTaskFactory(f ports.TaskFactory) Option {
	return func(d *Deployd) {
		d.factory = f
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deployd) {
		d.logger = logger
	}
}

// WithMetrics records lifecycle metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Deployd) {
		d.metrics = m
	}
}

// WithStore keeps deployment records in store.
func WithStore(store ports.DeploymentStore) Option {
	return func(d *Deployd) {
		d.supOpts = append(d.supOpts, supervisor.WithStore(store))
	}
}

// WithLocker guards deploy and kill with a distributed lock.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(d *Deployd) {
		d.supOpts = append(d.supOpts, supervisor.WithLocker(locker))
	}
}

// WithCommands registers the external commands, keyed by model name.
func WithCommands(commands map[string]process.Config) Option {
	return func(d *Deployd) {
		d.supOpts = append(d.supOpts, supervisor.WithCommands(commands))
	}
}

// WithLifecycleHooks registers observability hooks on every process.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Deployd) {
		d.supOpts = append(d.supOpts, supervisor.WithHooks(hooks))
	}
}

// WithDevices declares the device names known to the resolver.
func WithDevices(names ...string) Option {
	return func(d *Deployd) {
		d.devices = append(d.devices, names...)
	}
}

// WithDefinitions declares the definition names known to the resolver.
func WithDefinitions(names ...string) Option {
	return func(d *Deployd) {
		d.definitions = append(d.definitions, names...)
	}
}

// WithCloser registers a function run by Close, e.g. to release a store connection.
func WithCloser(fn func() error) Option {
	return func(d *Deployd) {
		d.closers = append(d.closers, fn)
	}
}

// New initializes deployd. By default, models are read from the YAML/JSON
// files in modelsDir. If WithLoader is given, modelsDir is only used as a label.
func New(modelsDir string, opts ...Option) (*Deployd, error) {
	d := &Deployd{}
	for _, opt := range opts {
		opt(d)
	}

	if d.loader == nil {
		if modelsDir == "" {
			return nil, fmt.Errorf("modelsDir is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(modelsDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		d.loader = file.NewLoader(absPath)
		d.Name = filepath.Base(absPath)
	} else if modelsDir != "" {
		d.Name = filepath.Base(modelsDir)
	}

	if d.logger == nil {
		d.logger = logging.NewNop()
	}
	if d.factory == nil {
		d.factory = memory.NewFactory(memory.WithGenericTasks(true))
	}

	supOpts := []supervisor.Option{
		supervisor.WithLogger(d.logger),
		supervisor.WithLoader(d.loader),
	}
	if d.metrics != nil {
		supOpts = append(supOpts, supervisor.WithMetrics(d.metrics))
	}
	d.sup = supervisor.New(d.factory, append(supOpts, d.supOpts...)...)
	d.resolver = d.newResolver()

	return d, nil
}

// newResolver consults devices, definitions, the deployment models of the
// loader, then the task models the factory knows.
func (d *Deployd) newResolver() *resolver.Resolver {
	compositions := resolver.RegistryFunc(func(ctx context.Context, name string) (any, bool, error) {
		model, err := d.loader.LoadDeployment(ctx, name)
		if errors.Is(err, domain.ErrDeploymentNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return model, true, nil
	})

	opts := []resolver.Option{
		resolver.WithRegistry(resolver.KindDevice, resolver.NameSet(d.devices...)),
		resolver.WithRegistry(resolver.KindDefinition, resolver.NameSet(d.definitions...)),
		resolver.WithRegistry(resolver.KindComposition, compositions),
	}
	if known, ok := d.factory.(interface{ Has(string) bool }); ok {
		opts = append(opts, resolver.WithRegistry(resolver.KindTaskModel,
			resolver.RegistryFunc(func(_ context.Context, name string) (any, bool, error) {
				return name, known.Has(name), nil
			})))
	}
	return resolver.New(opts...)
}

// Supervisor returns the underlying supervisor.
func (d *Deployd) Supervisor() *supervisor.Supervisor { return d.sup }

// Loader returns the model loader.
func (d *Deployd) Loader() ports.ModelLoader { return d.loader }

// Metrics returns the metrics, or nil if none were configured.
func (d *Deployd) Metrics() *observability.Metrics { return d.metrics }

// Logger returns the logger.
func (d *Deployd) Logger() *slog.Logger { return d.logger }

// Models lists the deployment models available to Deploy.
func (d *Deployd) Models(ctx context.Context) ([]string, error) {
	return d.loader.ListDeployments(ctx)
}

// Model loads a deployment model by name.
func (d *Deployd) Model(ctx context.Context, name string) (domain.Deployment, error) {
	return d.loader.LoadDeployment(ctx, name)
}

// Resolve resolves a service name, see resolver.Resolver.
func (d *Deployd) Resolve(ctx context.Context, service string) (resolver.Resolution, error) {
	return d.resolver.Resolve(ctx, service)
}

// Deploy spawns the model called model under name, with the backing chosen
// by the supervisor. An empty name deploys under the model name.
func (d *Deployd) Deploy(ctx context.Context, name, model string, opts domain.SpawnOptions) (ports.Process, error) {
	if name == "" {
		name = model
	}
	return d.sup.DeployModel(ctx, name, model, "", opts)
}

// Kill kills the deployment called name and waits for its death.
func (d *Deployd) Kill(ctx context.Context, name string, status domain.Status) error {
	return d.sup.Kill(ctx, name, status)
}

// List returns the names of the live deployments.
func (d *Deployd) List() []string {
	return d.sup.List()
}

// Close kills every live deployment, then runs the registered closers.
func (d *Deployd) Close() error {
	errs := []error{d.sup.Shutdown(context.Background())}
	for _, fn := range d.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
