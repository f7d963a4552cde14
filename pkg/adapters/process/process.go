package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/deployd/internal/logging"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/naming"
	"github.com/aretw0/deployd/pkg/ports"
)

// LocalHost is the host identifier of processes started by this package.
const LocalHost = "localhost"

// Environment variables exported to the command.
const (
	EnvProcess   = "DEPLOYD_PROCESS"
	EnvTasks     = "DEPLOYD_TASKS"
	EnvReadyFile = "DEPLOYD_READY_FILE"
)

// ErrExited is returned by WaitRunning when the command exits before it is ready.
var ErrExited = errors.New("process exited")

// Process runs a deployment inside a separate OS process.
// Safe for concurrent use: the death path runs on a monitor goroutine.
type Process struct {
	name   string
	model  domain.Deployment
	cfg    Config
	owner  ports.DeathListener
	mapper naming.Mapper
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	mu         sync.Mutex
	state      domain.ProcessState
	cmd        *exec.Cmd
	pid        int
	startedAt  time.Time
	order      []string
	deployed   map[string]string
	tasks      map[string]*RemoteTask
	killStatus *domain.Status
	exit       domain.Status
	disposeErr error         // *domain.DisposalError, set before done is closed
	done       chan struct{} // closed once the death path completed
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

// WithOutput forwards the command's stdout and stderr. Discarded by default.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Process) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// New creates an unspawned process that will run cfg for the given model.
func New(name string, model domain.Deployment, cfg Config, opts ...Option) *Process {
	p := &Process{
		name:   name,
		model:  model,
		cfg:    cfg.withDefaults(),
		logger: logging.NewNop(),
		state:  domain.StateUnspawned,
		tasks:  make(map[string]*RemoteTask),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.mapper = naming.ForDeployment(model, p.mapper)
	p.logger = p.logger.With("process", name, "backing", domain.BackingExternal)
	return p
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Model returns the deployment model.
func (p *Process) Model() domain.Deployment { return p.model }

// Config returns the command configuration, defaults applied.
func (p *Process) Config() Config { return p.cfg }

// HostID is always "localhost".
func (p *Process) HostID() string { return LocalHost }

// IsLocal is always true.
func (p *Process) IsLocal() bool { return true }

// State returns the lifecycle state.
func (p *Process) State() domain.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsAlive returns true between Spawn and the observed exit.
func (p *Process) IsAlive() bool {
	return p.State() == domain.StateRunning
}

// PID returns the child's PID, or 0 if it never started.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// ExitStatus returns the status the command actually exited with.
// Only meaningful once the process is dead.
func (p *Process) ExitStatus() domain.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}

// DeployedName returns the deployed name of a logical task name.
func (p *Process) DeployedName(logical string) string {
	return p.mapper.Map(logical)
}

// Spawn starts the command. The child is not bound to ctx: it lives until
// Kill or until it exits on its own.
func (p *Process) Spawn(ctx context.Context, opts domain.SpawnOptions) error {
	p.mu.Lock()

	if p.state != domain.StateUnspawned {
		state := p.state
		p.mu.Unlock()
		return &domain.InvalidStateError{Process: p.name, Op: "spawn", State: state}
	}
	if p.cfg.Command == "" {
		p.mu.Unlock()
		return fmt.Errorf("spawn %s: no command configured", p.name)
	}
	if err := ctx.Err(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("spawn %s: %w", p.name, err)
	}
	if err := p.model.Validate(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("spawn %s: %w", p.name, err)
	}

	// 1. Resolve deployed names
	logical := p.model.TaskNames()
	deployed, err := naming.Apply(p.mapper, logical)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("spawn %s: %w", p.name, err)
	}

	// 2. Prepare the command
	cmd := exec.Command(p.cfg.Command, p.cfg.Args...)
	cmd.Dir = p.cfg.Dir
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Env = p.environ(opts, logical, deployed)
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	if p.cfg.ReadyFile != "" {
		if err := os.Remove(p.cfg.ReadyFile); err != nil && !os.IsNotExist(err) {
			p.mu.Unlock()
			return fmt.Errorf("spawn %s: clearing stale ready file: %w", p.name, err)
		}
	}

	// 3. Start
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("spawn %s: %w", p.name, err)
	}

	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	p.order = logical
	p.deployed = deployed
	for _, activity := range p.model.Tasks {
		p.tasks[activity.Name] = &RemoteTask{
			name:  deployed[activity.Name],
			model: activity.TaskModel,
			pid:   p.pid,
		}
	}
	p.state = domain.StateRunning
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	p.logger.Info("Process started", "pid", cmd.Process.Pid, "command", p.cfg.Command, "tasks", len(logical))
	if p.hooks.OnSpawn != nil {
		e := domain.NewProcessEvent(domain.EventSpawn, p.name, domain.BackingExternal)
		e.Tasks = append([]string(nil), logical...)
		p.hooks.OnSpawn(ctx, e)
	}

	go p.monitor(cmd, done)
	return nil
}

func (p *Process) environ(opts domain.SpawnOptions, logical []string, deployed map[string]string) []string {
	env := os.Environ()
	for _, extra := range []map[string]string{p.cfg.Env, opts.Env} {
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+extra[k])
		}
	}

	pairs := make([]string, 0, len(logical))
	for _, name := range logical {
		pairs = append(pairs, name+"="+deployed[name])
	}
	env = append(env, EnvProcess+"="+p.name, EnvTasks+"="+strings.Join(pairs, ","))
	if p.cfg.ReadyFile != "" {
		env = append(env, EnvReadyFile+"="+p.cfg.ReadyFile)
	}
	return env
}

// monitor waits for the command and runs the death path exactly once.
func (p *Process) monitor(cmd *exec.Cmd, done chan struct{}) {
	defer close(done)

	waitErr := cmd.Wait()
	observed := exitStatus(cmd.ProcessState, waitErr)

	p.mu.Lock()
	status := observed
	if p.killStatus != nil {
		status = *p.killStatus
	}

	// Release the handles. They carry no resources of their own, but
	// further use must fail.
	var failures map[string]error
	type disposal struct {
		name string
		err  error
	}
	disposals := make([]disposal, 0, len(p.order))
	for _, name := range p.order {
		err := p.tasks[name].Dispose()
		if err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[p.deployed[name]] = err
		}
		disposals = append(disposals, disposal{name: p.deployed[name], err: err})
	}
	if failures != nil {
		p.disposeErr = &domain.DisposalError{Process: p.name, Failures: failures}
	}
	p.exit = observed
	p.state = domain.StateDead
	order := append([]string(nil), p.order...)
	disposeErr := p.disposeErr
	p.mu.Unlock()

	p.logger.Info("Process exited", "observed", observed.String(), "status", status.String())
	if disposeErr != nil {
		p.logger.Warn("Failed to release task handles", "err", disposeErr)
	}

	ctx := context.Background()
	if p.hooks.OnTaskDisposed != nil {
		for _, d := range disposals {
			p.hooks.OnTaskDisposed(ctx, domain.NewTaskEvent(p.name, d.name, d.err))
		}
	}
	if p.hooks.OnDead != nil {
		e := domain.NewProcessEvent(domain.EventDead, p.name, domain.BackingExternal)
		e.Tasks = order
		e.Status = &status
		p.hooks.OnDead(ctx, e)
	}
	if p.owner != nil {
		p.owner.OnDeploymentDead(p.name, status)
	}
}

// exitStatus converts what exec reports into a domain status.
func exitStatus(state *os.ProcessState, waitErr error) domain.Status {
	if state == nil {
		if waitErr != nil {
			return domain.Status{Reason: waitErr.Error()}
		}
		return domain.Status{Reason: "no exit status"}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return domain.Signaled(ws.Signal().String())
	}
	return domain.ExitCode(state.ExitCode())
}

// ready reports whether the command signalled readiness. Caller holds mu.
func (p *Process) ready() bool {
	if p.cfg.ReadyFile != "" {
		_, err := os.Stat(p.cfg.ReadyFile)
		return err == nil
	}
	return time.Since(p.startedAt) >= p.cfg.ReadyDelay
}

// WaitRunning reports whether the process is ready. When blocking, it polls
// until the process is ready, exits, or ctx is done.
func (p *Process) WaitRunning(ctx context.Context, blocking bool) (bool, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		state := p.state
		ready := state == domain.StateRunning && p.ready()
		exit := p.exit
		p.mu.Unlock()

		switch {
		case ready:
			return true, nil
		case state == domain.StateDead:
			return false, fmt.Errorf("wait for %s: %w: %s", p.name, ErrExited, exit)
		case state == domain.StateUnspawned:
			return false, nil
		case !blocking:
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("wait for %s: %w", p.name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Task returns the handle of the task declared under the logical name.
func (p *Process) Task(name string) (ports.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.StateRunning {
		return nil, &domain.InvalidStateError{Process: p.name, Op: "look up a task of", State: p.state}
	}
	task, ok := p.tasks[name]
	if !ok {
		return nil, &domain.NotFoundError{Process: p.name, Task: name}
	}
	return task, nil
}

// Join blocks until the command exited and the death path completed.
func (p *Process) Join(ctx context.Context) error {
	p.mu.Lock()
	state, done := p.state, p.done
	p.mu.Unlock()

	if state == domain.StateUnspawned {
		return &domain.InvalidStateError{Process: p.name, Op: "join", State: state}
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("join %s: %w", p.name, ctx.Err())
	}
}

// Kill asks the command to terminate and escalates to SIGKILL after
// KillTimeout. The owner is told status, whatever the command exits with.
// With wait, Kill returns once the death notification was delivered, and
// returns a *domain.DisposalError if some task handles could not be released.
func (p *Process) Kill(ctx context.Context, wait bool, status domain.Status) error {
	p.mu.Lock()
	if p.state != domain.StateRunning {
		p.mu.Unlock()
		return nil
	}
	first := p.killStatus == nil
	if first {
		s := status
		p.killStatus = &s
	}
	proc, done := p.cmd.Process, p.done
	timeout := p.cfg.KillTimeout
	p.mu.Unlock()

	if first {
		p.logger.Debug("Killing process", "pid", proc.Pid, "status", status.String())
		if err := interrupt(proc); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Warn("Failed to interrupt process, killing", "pid", proc.Pid, "err", err)
			_ = proc.Kill()
		}
		go p.escalate(proc, done, timeout)
	}

	if !wait {
		return nil
	}
	select {
	case <-done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.disposeErr
	case <-ctx.Done():
		return fmt.Errorf("kill %s: %w", p.name, ctx.Err())
	}
}

// escalate force-kills the command if it outlives the grace period.
func (p *Process) escalate(proc *os.Process, done <-chan struct{}, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		p.logger.Warn("Process ignored termination request, killing", "pid", proc.Pid, "grace", timeout)
		if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "pid", proc.Pid, "err", err)
		}
	}
}

// interrupt requests a graceful stop. Windows has no SIGTERM for
// background processes, so it goes straight to Kill.
func interrupt(proc *os.Process) error {
	if runtime.GOOS == "windows" {
		return proc.Kill()
	}
	return proc.Signal(syscall.SIGTERM)
}

// RemoteTask is the handle of a task living in an external process.
type RemoteTask struct {
	mu       sync.Mutex
	name     string
	model    string
	pid      int
	released bool
}

// Name returns the deployed name.
func (t *RemoteTask) Name() string { return t.name }

// Model returns the task model.
func (t *RemoteTask) Model() string { return t.model }

// PID returns the PID of the hosting process.
func (t *RemoteTask) PID() int { return t.pid }

// Released reports whether the handle was disposed.
func (t *RemoteTask) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// Dispose releases the handle. The remote task itself goes away with its process.
func (t *RemoteTask) Dispose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return fmt.Errorf("task %s: handle already released", t.name)
	}
	t.released = true
	return nil
}
