package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/deployd/internal/logging"
	"github.com/aretw0/deployd/pkg/adapters/inprocess"
	"github.com/aretw0/deployd/pkg/adapters/memory"
	"github.com/aretw0/deployd/pkg/adapters/process"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/naming"
	"github.com/aretw0/deployd/pkg/observability"
	"github.com/aretw0/deployd/pkg/ports"
)

const (
	// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
	DefaultLockTTL = 30 * time.Second
	// DefaultWaitTimeout bounds readiness waits that set no timeout of their own.
	DefaultWaitTimeout = 10 * time.Second
)

// ErrNoCommand is returned when an external deployment has no command configured.
var ErrNoCommand = errors.New("no command configured")

// Supervisor is the owning registry of deployed processes.
// Safe for concurrent use.
type Supervisor struct {
	factory     ports.TaskFactory
	store       ports.DeploymentStore
	locker      ports.DistributedLocker
	loader      ports.ModelLoader
	metrics     *observability.Metrics
	hooks       domain.LifecycleHooks
	commands    map[string]process.Config
	logger      *slog.Logger
	lockTTL     time.Duration
	waitTimeout time.Duration

	mu    sync.Mutex
	procs map[string]ports.Process

	lockMu sync.Mutex
	locks  map[string]*lockEntry
}

var _ ports.DeathListener = (*Supervisor)(nil)

// New creates a supervisor building in-process tasks with factory.
func New(factory ports.TaskFactory, opts ...Option) *Supervisor {
	s := &Supervisor{
		factory:     factory,
		store:       memory.NewStore(),
		commands:    make(map[string]process.Config),
		logger:      logging.NewNop(),
		lockTTL:     DefaultLockTTL,
		waitTimeout: DefaultWaitTimeout,
		procs:       make(map[string]ports.Process),
		locks:       make(map[string]*lockEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the bookkeeping store.
func (s *Supervisor) Store() ports.DeploymentStore {
	return s.store
}

// Loader returns the model loader, if any.
func (s *Supervisor) Loader() ports.ModelLoader {
	return s.loader
}

// Backing returns the backing used for model when the caller leaves it empty:
// external when a command is configured for it, in-process otherwise.
func (s *Supervisor) Backing(model string) domain.Backing {
	if _, ok := s.commands[model]; ok {
		return domain.BackingExternal
	}
	return domain.BackingInProcess
}

// DeployModel loads the model called modelName and deploys it as name.
func (s *Supervisor) DeployModel(ctx context.Context, name, modelName string, backing domain.Backing, opts domain.SpawnOptions) (ports.Process, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("deploy %s: %w: no model loader configured", name, domain.ErrUnsupported)
	}
	model, err := s.loader.LoadDeployment(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	return s.Deploy(ctx, name, model, backing, opts)
}

// Deploy builds a process for model with the given backing, spawns it and
// records it under name. An empty backing is resolved with Backing.
func (s *Supervisor) Deploy(ctx context.Context, name string, model domain.Deployment, backing domain.Backing, opts domain.SpawnOptions) (ports.Process, error) {
	if name == "" {
		name = model.Name
	}
	if backing == "" {
		backing = s.Backing(model.Name)
	}

	var proc ports.Process
	err := s.withLock(ctx, name, func(ctx context.Context) error {
		var err error
		proc, err = s.deploy(ctx, name, model, backing, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return proc, nil
}

func (s *Supervisor) deploy(ctx context.Context, name string, model domain.Deployment, backing domain.Backing, opts domain.SpawnOptions) (ports.Process, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	proc, err := s.build(name, model, backing)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	// 1. Reserve the name. The process is registered before Spawn so that a
	// death arriving from a fast-exiting command finds it.
	s.mu.Lock()
	if _, exists := s.procs[name]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("deploy %s: %w", name, domain.ErrAlreadyDeployed)
	}
	s.procs[name] = proc
	s.mu.Unlock()

	// 2. Spawn
	start := time.Now()
	if err := proc.Spawn(ctx, opts); err != nil {
		s.forget(name, proc)
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	// 3. Wait for readiness if asked to
	if opts.Wait {
		if err := s.waitReady(ctx, proc, opts.WaitTimeout); err != nil {
			status := domain.ExitCode(1).WithReason("not ready")
			if killErr := proc.Kill(context.WithoutCancel(ctx), true, status); killErr != nil {
				s.logger.Warn("Failed to kill deployment that never became ready", "deployment", name, "err", killErr)
			}
			return nil, fmt.Errorf("deploy %s: %w", name, err)
		}
	}

	// 4. Record
	if err := s.store.Save(ctx, s.record(name, model, backing, proc)); err != nil {
		s.logger.Warn("Failed to record deployment", "deployment", name, "err", err)
	}
	// The command may already be gone, in which case the death path ran
	// before the record existed.
	if !proc.IsAlive() {
		s.forgetRecord(name)
	}

	s.logger.Info("Deployment spawned",
		"deployment", name,
		"model", model.Name,
		"backing", backing,
		"pid", proc.PID(),
		"took", time.Since(start),
	)
	return proc, nil
}

func (s *Supervisor) waitReady(ctx context.Context, proc ports.Process, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.waitTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ready, err := proc.WaitRunning(waitCtx, true)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("%s did not become ready", proc.Name())
	}
	return nil
}

// build creates the process variant selected by backing.
func (s *Supervisor) build(name string, model domain.Deployment, backing domain.Backing) (ports.Process, error) {
	var mapper naming.Mapper = naming.Identity{}
	if name != model.Name {
		mapper = naming.ForProcess(name)
	}
	hooks := s.hooks
	if s.metrics != nil {
		hooks = hooks.Merge(s.metrics.Hooks())
	}
	logger := s.logger.With("deployment", name)

	switch backing {
	case domain.BackingInProcess:
		if s.factory == nil {
			return nil, fmt.Errorf("%w: in-process backing needs a task factory", domain.ErrUnsupported)
		}
		return inprocess.New(name, model, s.factory,
			inprocess.WithOwner(s),
			inprocess.WithNameMapper(mapper),
			inprocess.WithLifecycleHooks(hooks),
			inprocess.WithLogger(logger),
		), nil
	case domain.BackingExternal:
		cfg, ok := s.commands[model.Name]
		if !ok {
			return nil, fmt.Errorf("%w for model %s", ErrNoCommand, model.Name)
		}
		return process.New(name, model, cfg,
			process.WithOwner(s),
			process.WithNameMapper(mapper),
			process.WithLifecycleHooks(hooks),
			process.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown backing %q", domain.ErrUnsupported, backing)
	}
}

func (s *Supervisor) record(name string, model domain.Deployment, backing domain.Backing, proc ports.Process) domain.DeploymentRecord {
	tasks := make(map[string]string, len(model.Tasks))
	for _, logical := range model.TaskNames() {
		if task, err := proc.Task(logical); err == nil {
			tasks[logical] = task.Name()
		}
	}
	return domain.DeploymentRecord{
		Name:      name,
		Model:     model.Name,
		Backing:   backing,
		HostID:    proc.HostID(),
		PID:       proc.PID(),
		Tasks:     tasks,
		SpawnedAt: time.Now().UTC(),
	}
}

// OnDeploymentDead removes a dead process from the bookkeeping.
// It may be called from a process monitor goroutine.
func (s *Supervisor) OnDeploymentDead(name string, status domain.Status) {
	s.mu.Lock()
	_, known := s.procs[name]
	delete(s.procs, name)
	s.mu.Unlock()

	if !known {
		s.logger.Warn("Death notification for an unknown deployment", "deployment", name, "status", status.String())
		return
	}
	s.forgetRecord(name)
	s.logger.Info("Deployment dead", "deployment", name, "status", status.String())
}

// forget drops proc from the bookkeeping if it is still the one registered.
func (s *Supervisor) forget(name string, proc ports.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.procs[name] == proc {
		delete(s.procs, name)
	}
}

func (s *Supervisor) forgetRecord(name string) {
	if err := s.store.Delete(context.Background(), name); err != nil {
		s.logger.Warn("Failed to delete deployment record", "deployment", name, "err", err)
	}
}

// Get returns the live process deployed under name.
func (s *Supervisor) Get(name string) (ports.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proc, ok := s.procs[name]
	return proc, ok
}

// List returns the sorted names of the live deployments.
func (s *Supervisor) List() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.procs))
	for name := range s.procs {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	return names
}

// Record returns the stored record of a deployment.
func (s *Supervisor) Record(ctx context.Context, name string) (domain.DeploymentRecord, error) {
	return s.store.Load(ctx, name)
}

// Kill kills the deployment called name and waits for its death.
// The returned error may be a *domain.DisposalError: the deployment is dead regardless.
func (s *Supervisor) Kill(ctx context.Context, name string, status domain.Status) error {
	return s.withLock(ctx, name, func(ctx context.Context) error {
		proc, ok := s.Get(name)
		if !ok {
			return fmt.Errorf("kill %s: %w", name, domain.ErrDeploymentNotFound)
		}
		if err := proc.Kill(ctx, true, status); err != nil {
			return fmt.Errorf("kill %s: %w", name, err)
		}
		return nil
	})
}

// Shutdown kills every live deployment, collecting errors.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	names := s.List()
	if len(names) == 0 {
		return nil
	}
	s.logger.Info("Shutting down deployments", "count", len(names))

	var errs []error
	for _, name := range names {
		err := s.Kill(ctx, name, domain.DefaultStatus().WithReason("shutdown"))
		if err != nil && !errors.Is(err, domain.ErrDeploymentNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
