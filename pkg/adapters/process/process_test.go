package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/deployd/pkg/adapters/process"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/naming"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func shell(script string) process.Config {
	return process.Config{Command: "sh", Args: []string{"-c", script}}
}

func TestProcess_Contract(t *testing.T) {
	skipOnWindows(t)

	ports.RunProcessContract(t, func(t *testing.T, name string, model domain.Deployment, owner ports.DeathListener) ports.Process {
		opts := []process.Option{}
		if owner != nil {
			opts = append(opts, process.WithOwner(owner))
		}
		proc := process.New(name, model, process.Config{Command: "sleep", Args: []string{"30"}}, opts...)
		t.Cleanup(func() { _ = proc.Kill(context.Background(), true, domain.ExitCode(0)) })
		return proc
	})
}

func TestProcess_ObservedExit(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	owner := &ports.DeathRecorder{}
	proc := process.New("p1", ports.ContractDeployment(), shell("exit 123"), process.WithOwner(owner))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
	assert.Greater(t, proc.PID(), 0)

	// 1. The command dies on its own
	require.NoError(t, proc.Join(ctx))
	assert.False(t, proc.IsAlive())
	assert.Equal(t, domain.StateDead, proc.State())

	// 2. The owner hears the real exit code
	deaths := owner.Deaths()
	require.Len(t, deaths, 1)
	code, ok := deaths[0].Status.ExitCode()
	require.True(t, ok)
	assert.Equal(t, 123, code)

	// 3. Kill after death is a no-op
	require.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))
	assert.Len(t, owner.Deaths(), 1)
}

func TestProcess_KillReportsCallerStatus(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	owner := &ports.DeathRecorder{}
	proc := process.New("p1", ports.ContractDeployment(), process.Config{Command: "sleep", Args: []string{"30"}}, process.WithOwner(owner))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))

	task, err := proc.Task("a")
	require.NoError(t, err)

	requested := domain.ExitCode(7).WithReason("operator")
	require.NoError(t, proc.Kill(ctx, true, requested))

	deaths := owner.Deaths()
	require.Len(t, deaths, 1)
	assert.True(t, deaths[0].Status.Equal(requested), "got %s", deaths[0].Status)

	// The command itself was terminated by a signal
	assert.NotEmpty(t, proc.ExitStatus().Signal)
	assert.True(t, task.(*process.RemoteTask).Released())
}

func TestProcess_KillReportsFailedReleases(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	owner := &ports.DeathRecorder{}
	proc := process.New("p1", ports.ContractDeployment(), process.Config{Command: "sleep", Args: []string{"30"}}, process.WithOwner(owner))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))

	// A handle released behind the process's back cannot be released again
	task, err := proc.Task("a")
	require.NoError(t, err)
	require.NoError(t, task.Dispose())

	err = proc.Kill(ctx, true, domain.ExitCode(0))
	var disposal *domain.DisposalError
	require.ErrorAs(t, err, &disposal)
	assert.Equal(t, "p1", disposal.Process)
	assert.Len(t, disposal.Failures, 1)
	assert.Contains(t, disposal.Failures, task.Name())

	// Dead and notified regardless
	assert.False(t, proc.IsAlive())
	assert.Len(t, owner.Deaths(), 1)
	require.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))
}

func TestProcess_KillWithoutWait(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	owner := &ports.DeathRecorder{}
	proc := process.New("p1", ports.ContractDeployment(), process.Config{Command: "sleep", Args: []string{"30"}}, process.WithOwner(owner))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))

	require.NoError(t, proc.Kill(ctx, false, domain.ExitCode(0)))
	require.NoError(t, proc.Join(ctx))

	assert.False(t, proc.IsAlive())
	assert.Len(t, owner.Deaths(), 1)
}

func TestProcess_Environment(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := t.TempDir()
	out := filepath.Join(dir, "env.txt")
	cfg := shell(`printf '%s\n%s\n%s\n' "$DEPLOYD_PROCESS" "$DEPLOYD_TASKS" "$ROBOT" > env.txt`)
	cfg.Env = map[string]string{"ROBOT": "from-config"}

	proc := process.New("p1", ports.ContractDeployment(), cfg, process.WithNameMapper(naming.ForProcess("p1")))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{
		Dir: dir,
		Env: map[string]string{"ROBOT": "from-spawn"},
	}))
	require.NoError(t, proc.Join(ctx))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "p1", lines[0])
	assert.Equal(t, "a=p1_a,b=p1_b", lines[1])
	assert.Equal(t, "from-spawn", lines[2], "spawn options override the config")
	assert.Equal(t, "p1_b", proc.DeployedName("b"))
}

func TestProcess_WaitRunning(t *testing.T) {
	skipOnWindows(t)

	t.Run("Ready File", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ready := filepath.Join(t.TempDir(), "ready")
		cfg := shell(`sleep 0.3; touch "$DEPLOYD_READY_FILE"; sleep 30`)
		cfg.ReadyFile = ready
		proc := process.New("p1", ports.ContractDeployment(), cfg)
		defer func() { _ = proc.Kill(context.Background(), true, domain.ExitCode(0)) }()

		before, err := proc.WaitRunning(ctx, false)
		require.NoError(t, err)
		assert.False(t, before, "not ready before spawn")

		require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
		now, err := proc.WaitRunning(ctx, false)
		require.NoError(t, err)
		assert.False(t, now, "ready file not written yet")

		ok, err := proc.WaitRunning(ctx, true)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Exits Before Ready", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg := shell("exit 3")
		cfg.ReadyFile = filepath.Join(t.TempDir(), "never")
		proc := process.New("p1", ports.ContractDeployment(), cfg)
		require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))

		ok, err := proc.WaitRunning(ctx, true)
		assert.False(t, ok)
		assert.ErrorIs(t, err, process.ErrExited)
	})

	t.Run("Bounded By Context", func(t *testing.T) {
		cfg := process.Config{Command: "sleep", Args: []string{"30"}, ReadyDelay: time.Hour}
		proc := process.New("p1", ports.ContractDeployment(), cfg)
		require.NoError(t, proc.Spawn(context.Background(), domain.SpawnOptions{}))
		defer func() { _ = proc.Kill(context.Background(), true, domain.ExitCode(0)) }()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		ok, err := proc.WaitRunning(ctx, true)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestProcess_SpawnErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("No Command", func(t *testing.T) {
		proc := process.New("p1", ports.ContractDeployment(), process.Config{})
		assert.Error(t, proc.Spawn(ctx, domain.SpawnOptions{}))
		assert.Equal(t, domain.StateUnspawned, proc.State())
	})

	t.Run("Missing Binary", func(t *testing.T) {
		proc := process.New("p1", ports.ContractDeployment(), process.Config{Command: "deployd-no-such-binary"})
		assert.Error(t, proc.Spawn(ctx, domain.SpawnOptions{}))
		assert.Equal(t, domain.StateUnspawned, proc.State())
		assert.Equal(t, 0, proc.PID())
	})

	t.Run("Duplicate Task Names", func(t *testing.T) {
		model := domain.Deployment{
			Name: "dup",
			Tasks: []domain.TaskActivity{
				{Name: "a", TaskModel: "X"},
				{Name: "a", TaskModel: "Y"},
			},
		}
		proc := process.New("p1", model, process.Config{Command: "true"})
		assert.ErrorIs(t, proc.Spawn(ctx, domain.SpawnOptions{}), domain.ErrInvalidDeployment)
		assert.Equal(t, domain.StateUnspawned, proc.State())
		assert.Equal(t, 0, proc.PID())
	})

	t.Run("Join Before Spawn", func(t *testing.T) {
		proc := process.New("p1", ports.ContractDeployment(), process.Config{Command: "true"})
		assert.ErrorIs(t, proc.Join(ctx), domain.ErrInvalidState)
	})
}

func TestProcess_Hooks(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events := make(chan string, 8)
	hooks := domain.LifecycleHooks{
		OnSpawn:        func(_ context.Context, e *domain.ProcessEvent) { events <- "spawn" },
		OnTaskDisposed: func(_ context.Context, e *domain.TaskEvent) { events <- "dispose:" + e.Task },
		OnDead:         func(_ context.Context, e *domain.ProcessEvent) { events <- "dead:" + e.Status.Label() },
	}
	owner := ports.DeathListenerFunc(func(string, domain.Status) { events <- "owner" })

	proc := process.New("p1", ports.ContractDeployment(), shell("exit 4"),
		process.WithLifecycleHooks(hooks), process.WithOwner(owner))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
	require.NoError(t, proc.Join(ctx))
	close(events)

	var got []string
	for e := range events {
		got = append(got, e)
	}
	assert.Equal(t, []string{"spawn", "dispose:a", "dispose:b", "dead:4", "owner"}, got)
}
