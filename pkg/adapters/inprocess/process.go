package inprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/deployd/internal/logging"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/naming"
	"github.com/aretw0/deployd/pkg/ports"
)

// LocalHost is the host identifier of in-process tasks.
const LocalHost = "localhost"

// Process manages a set of in-process tasks as a single deployment.
type Process struct {
	name    string
	model   domain.Deployment
	factory ports.TaskFactory
	owner   ports.DeathListener
	mapper  naming.Mapper
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	state    domain.ProcessState
	order    []string              // logical names, declaration order
	deployed map[string]string     // logical -> deployed
	tasks    map[string]ports.Task // logical -> instance
}

var _ ports.Process = (*Process)(nil)

// Option configures a Process.
type Option func(*Process)

// WithOwner registers the owning registry notified when the process dies.
func WithOwner(owner ports.DeathListener) Option {
	return func(p *Process) {
		p.owner = owner
	}
}

// WithNameMapper overrides how logical names become deployed names.
// Explicit mappings declared in the model still take precedence.
func WithNameMapper(m naming.Mapper) Option {
	return func(p *Process) {
		p.mapper = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Process) {
		p.hooks = hooks
	}
}

// WithLogger configures a logger for the Process.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Process) {
		p.logger = logger
	}
}

// New creates an unspawned process named name for the given model.
func New(name string, model domain.Deployment, factory ports.TaskFactory, opts ...Option) *Process {
	p := &Process{
		name:    name,
		model:   model,
		factory: factory,
		logger:  logging.NewNop(),
		state:   domain.StateUnspawned,
		tasks:   make(map[string]ports.Task),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.mapper = naming.ForDeployment(model, p.mapper)
	p.logger = p.logger.With("process", name)
	return p
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Model returns the deployment model.
func (p *Process) Model() domain.Deployment { return p.model }

// State returns the lifecycle state.
func (p *Process) State() domain.ProcessState { return p.state }

// HostID is always "localhost": tasks run inside this process.
func (p *Process) HostID() string { return LocalHost }

// IsLocal is always true.
func (p *Process) IsLocal() bool { return true }

// PID returns the PID of the supervisor itself.
func (p *Process) PID() int { return os.Getpid() }

// IsAlive returns true between Spawn and death.
func (p *Process) IsAlive() bool { return p.state == domain.StateRunning }

// DeployedName returns the deployed name of a logical task name.
// It is derived from the same pure mapping Spawn used.
func (p *Process) DeployedName(logical string) string {
	return p.mapper.Map(logical)
}

// Tasks returns the logical task names in declaration order.
func (p *Process) Tasks() []string {
	return append([]string(nil), p.order...)
}

// DeployedTasks returns the logical -> deployed name table (empty before Spawn).
func (p *Process) DeployedTasks() map[string]string {
	out := make(map[string]string, len(p.deployed))
	for k, v := range p.deployed {
		out[k] = v
	}
	return out
}

// Spawn builds every task declared in the model.
// On failure the tasks already built are disposed and the process stays unspawned.
func (p *Process) Spawn(ctx context.Context, opts domain.SpawnOptions) error {
	if p.state != domain.StateUnspawned {
		return &domain.InvalidStateError{Process: p.name, Op: "spawn", State: p.state}
	}
	if err := p.model.Validate(); err != nil {
		return fmt.Errorf("spawn %s: %w", p.name, err)
	}

	// 1. Resolve every deployed name up front
	logical := p.model.TaskNames()
	deployed, err := naming.Apply(p.mapper, logical)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", p.name, err)
	}

	// 2. Build tasks in declaration order
	built := make(map[string]ports.Task, len(logical))
	for _, activity := range p.model.Tasks {
		if err := ctx.Err(); err != nil {
			p.rollback(built)
			return fmt.Errorf("spawn %s: %w", p.name, err)
		}

		task, err := p.factory.New(ctx, deployed[activity.Name], activity.TaskModel)
		if err != nil {
			p.rollback(built)
			return fmt.Errorf("spawn %s: task %s (%s): %w", p.name, activity.Name, activity.TaskModel, err)
		}
		if task == nil {
			p.rollback(built)
			return fmt.Errorf("spawn %s: task %s (%s): factory returned no task", p.name, activity.Name, activity.TaskModel)
		}
		built[activity.Name] = task
		p.logger.Debug("Task created", "task", activity.Name, "deployed_name", deployed[activity.Name], "model", activity.TaskModel)
	}

	// 3. Commit
	p.tasks = built
	p.deployed = deployed
	p.order = logical
	p.state = domain.StateRunning

	p.logger.Info("Process spawned", "tasks", len(logical))
	if p.hooks.OnSpawn != nil {
		e := domain.NewProcessEvent(domain.EventSpawn, p.name, domain.BackingInProcess)
		e.Tasks = p.Tasks()
		p.hooks.OnSpawn(ctx, e)
	}
	return nil
}

// rollback disposes tasks built by a failed Spawn. Errors are only logged:
// the spawn error is what the caller needs.
func (p *Process) rollback(built map[string]ports.Task) {
	for name, task := range built {
		if err := task.Dispose(); err != nil {
			p.logger.Warn("Failed to dispose task after spawn failure", "task", name, "err", err)
		}
	}
}

// WaitRunning returns true once the process is running.
// In-process tasks are ready at construction, so it never blocks.
func (p *Process) WaitRunning(ctx context.Context, blocking bool) (bool, error) {
	return p.state == domain.StateRunning, nil
}

// Task returns the task declared under the logical name.
func (p *Process) Task(name string) (ports.Task, error) {
	if p.state != domain.StateRunning {
		return nil, &domain.InvalidStateError{Process: p.name, Op: "look up a task of", State: p.state}
	}
	task, ok := p.tasks[name]
	if !ok {
		return nil, &domain.NotFoundError{Process: p.name, Task: name}
	}
	return task, nil
}

// Join is unsupported: there is no external process to wait on.
func (p *Process) Join(ctx context.Context) error {
	return fmt.Errorf("join %s: %w: in-process tasks have no process to wait on", p.name, domain.ErrUnsupported)
}

// Kill disposes every task and marks the process dead.
// The wait flag has no observable effect: disposal is synchronous.
func (p *Process) Kill(ctx context.Context, wait bool, status domain.Status) error {
	if p.state != domain.StateRunning {
		return nil
	}
	p.logger.Debug("Killing process", "status", status.String())
	return p.terminate(ctx, status)
}

// Dead records that the process died by some path other than Kill.
// Tasks are still disposed before the owner is told.
func (p *Process) Dead(ctx context.Context, status domain.Status) error {
	if p.state != domain.StateRunning {
		return nil
	}
	return p.terminate(ctx, status)
}

// terminate disposes every task, collecting failures, then transitions to dead
// and notifies the owner. It never aborts early.
func (p *Process) terminate(ctx context.Context, status domain.Status) error {
	var failures map[string]error

	for _, name := range p.order {
		task := p.tasks[name]
		err := task.Dispose()
		if err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[p.deployed[name]] = err
			p.logger.Warn("Failed to dispose task", "task", name, "err", err)
		}
		if p.hooks.OnTaskDisposed != nil {
			p.hooks.OnTaskDisposed(ctx, domain.NewTaskEvent(p.name, p.deployed[name], err))
		}
	}

	p.state = domain.StateDead
	p.logger.Info("Process dead", "status", status.String(), "dispose_failures", len(failures))

	if p.hooks.OnDead != nil {
		e := domain.NewProcessEvent(domain.EventDead, p.name, domain.BackingInProcess)
		e.Tasks = p.Tasks()
		e.Status = &status
		p.hooks.OnDead(ctx, e)
	}
	if p.owner != nil {
		p.owner.OnDeploymentDead(p.name, status)
	}

	if failures != nil {
		return &domain.DisposalError{Process: p.name, Failures: failures}
	}
	return nil
}
