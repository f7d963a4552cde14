package inprocess_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/deployd/pkg/adapters/inprocess"
	"github.com/aretw0/deployd/pkg/adapters/memory"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/naming"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTask records disposals.
type MockTask struct {
	mock.Mock
	name string
}

func (m *MockTask) Name() string { return m.name }

func (m *MockTask) Dispose() error {
	args := m.Called()
	return args.Error(0)
}

// MockListener records death notifications.
type MockListener struct {
	mock.Mock
}

func (m *MockListener) OnDeploymentDead(name string, status domain.Status) {
	m.Called(name, status)
}

func scenarioModel() domain.Deployment {
	return domain.Deployment{
		Name: "nav",
		Tasks: []domain.TaskActivity{
			{Name: "a", TaskModel: "ClassA"},
			{Name: "b", TaskModel: "ClassB"},
		},
	}
}

func TestProcess_Contract(t *testing.T) {
	ports.RunProcessContract(t, func(t *testing.T, name string, model domain.Deployment, owner ports.DeathListener) ports.Process {
		opts := []inprocess.Option{}
		if owner != nil {
			opts = append(opts, inprocess.WithOwner(owner))
		}
		return inprocess.New(name, model, memory.NewFactory(memory.WithGenericTasks(true)), opts...)
	})
}

func TestProcess_Scenario(t *testing.T) {
	ctx := context.Background()
	registry := new(MockListener)
	registry.On("OnDeploymentDead", "p1", domain.ExitCode(0)).Return().Once()

	factory := memory.NewFactory(memory.WithGenericTasks(true))
	proc := inprocess.New("p1", scenarioModel(), factory, inprocess.WithOwner(registry))

	assert.False(t, proc.IsAlive())
	assert.Empty(t, proc.DeployedTasks(), "no tasks before spawn")

	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
	assert.True(t, proc.IsAlive())
	assert.Equal(t, map[string]string{"a": "a", "b": "b"}, proc.DeployedTasks())
	assert.Equal(t, []string{"a", "b"}, proc.Tasks())

	taskA, err := proc.Task("a")
	require.NoError(t, err)
	a := taskA.(*memory.TaskContext)
	assert.Equal(t, "ClassA", a.Model())
	assert.False(t, a.Disposed())

	taskB, err := proc.Task("b")
	require.NoError(t, err)

	require.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))
	assert.True(t, a.Disposed())
	assert.True(t, taskB.(*memory.TaskContext).Disposed())
	assert.False(t, proc.IsAlive())

	registry.AssertExpectations(t)
	registry.AssertNumberOfCalls(t, "OnDeploymentDead", 1)
}

func TestProcess_NameMapping(t *testing.T) {
	ctx := context.Background()
	model := scenarioModel()
	model.Mappings = map[string]string{"b": "planner"}

	proc := inprocess.New("p1", model, memory.NewFactory(memory.WithGenericTasks(true)),
		inprocess.WithNameMapper(naming.ForProcess("p1")),
	)
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))

	assert.Equal(t, map[string]string{"a": "p1_a", "b": "planner"}, proc.DeployedTasks())

	// Lookups by logical name match the deployed instances
	for logical, deployed := range proc.DeployedTasks() {
		task, err := proc.Task(logical)
		require.NoError(t, err)
		assert.Equal(t, deployed, task.Name())
		assert.Equal(t, deployed, proc.DeployedName(logical), "mapping is re-derivable after spawn")
	}
}

func TestProcess_SpawnFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Factory Error Rolls Back", func(t *testing.T) {
		built := memory.NewTaskContext("a", "ClassA")
		boom := errors.New("no such class")
		factory := ports.TaskFactoryFunc(func(ctx context.Context, name, model string) (ports.Task, error) {
			if model == "ClassB" {
				return nil, boom
			}
			return built, nil
		})

		owner := &ports.DeathRecorder{}
		proc := inprocess.New("p1", scenarioModel(), factory, inprocess.WithOwner(owner))

		err := proc.Spawn(ctx, domain.SpawnOptions{})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "task b (ClassB)")
		assert.True(t, built.Disposed(), "tasks built before the failure are disposed")
		assert.Equal(t, domain.StateUnspawned, proc.State())
		assert.Empty(t, owner.Deaths(), "a failed spawn is not a death")
	})

	t.Run("Name Collision", func(t *testing.T) {
		model := scenarioModel()
		model.Mappings = map[string]string{"a": "same", "b": "same"}
		proc := inprocess.New("p1", model, memory.NewFactory(memory.WithGenericTasks(true)))

		err := proc.Spawn(ctx, domain.SpawnOptions{})
		assert.ErrorIs(t, err, domain.ErrNameCollision)
		assert.False(t, proc.IsAlive())
	})

	t.Run("Duplicate Task Names", func(t *testing.T) {
		var built []*memory.TaskContext
		factory := ports.TaskFactoryFunc(func(ctx context.Context, name, model string) (ports.Task, error) {
			task := memory.NewTaskContext(name, model)
			built = append(built, task)
			return task, nil
		})
		model := domain.Deployment{
			Name: "nav",
			Tasks: []domain.TaskActivity{
				{Name: "a", TaskModel: "X"},
				{Name: "a", TaskModel: "Y"},
			},
		}
		proc := inprocess.New("p1", model, factory)

		err := proc.Spawn(ctx, domain.SpawnOptions{})
		assert.ErrorIs(t, err, domain.ErrInvalidDeployment)
		assert.Empty(t, built, "nothing is built for an invalid model")
		assert.Equal(t, domain.StateUnspawned, proc.State())
	})

	t.Run("Factory Returns No Task", func(t *testing.T) {
		built := memory.NewTaskContext("a", "ClassA")
		factory := ports.TaskFactoryFunc(func(ctx context.Context, name, model string) (ports.Task, error) {
			if model == "ClassB" {
				return nil, nil
			}
			return built, nil
		})
		owner := &ports.DeathRecorder{}
		proc := inprocess.New("p1", scenarioModel(), factory, inprocess.WithOwner(owner))

		err := proc.Spawn(ctx, domain.SpawnOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "task b (ClassB)")
		assert.True(t, built.Disposed())
		assert.Equal(t, domain.StateUnspawned, proc.State())

		// Nothing to dispose, nothing to report
		assert.NotPanics(t, func() {
			assert.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))
		})
		assert.Empty(t, owner.Deaths())
	})

	t.Run("Canceled Context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		proc := inprocess.New("p1", scenarioModel(), memory.NewFactory(memory.WithGenericTasks(true)))
		assert.ErrorIs(t, proc.Spawn(canceled, domain.SpawnOptions{}), context.Canceled)
		assert.Equal(t, domain.StateUnspawned, proc.State())
	})
}

func TestProcess_KillCollectsDisposalFailures(t *testing.T) {
	ctx := context.Background()
	errStuck := errors.New("stuck")

	taskA := &MockTask{name: "a"}
	taskA.On("Dispose").Return(errStuck).Once()
	taskB := &MockTask{name: "b"}
	taskB.On("Dispose").Return(nil).Once()

	tasks := map[string]ports.Task{"ClassA": taskA, "ClassB": taskB}
	factory := ports.TaskFactoryFunc(func(ctx context.Context, name, model string) (ports.Task, error) {
		return tasks[model], nil
	})

	registry := new(MockListener)
	status := domain.ExitCode(2)
	registry.On("OnDeploymentDead", "p1", status).Return().Once()

	proc := inprocess.New("p1", scenarioModel(), factory, inprocess.WithOwner(registry))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))

	err := proc.Kill(ctx, false, status)

	var disposalErr *domain.DisposalError
	require.ErrorAs(t, err, &disposalErr)
	assert.Equal(t, []string{"a"}, disposalErr.Tasks())
	assert.ErrorIs(t, err, errStuck)

	// Every disposal was attempted, and the process is dead and reported anyway
	taskA.AssertExpectations(t)
	taskB.AssertExpectations(t)
	registry.AssertExpectations(t)
	assert.False(t, proc.IsAlive())
	assert.Equal(t, domain.StateDead, proc.State())

	// No re-disposal on a second kill
	assert.NoError(t, proc.Kill(ctx, true, status))
	taskA.AssertNumberOfCalls(t, "Dispose", 1)
	registry.AssertNumberOfCalls(t, "OnDeploymentDead", 1)
}

func TestProcess_Dead(t *testing.T) {
	ctx := context.Background()
	owner := &ports.DeathRecorder{}
	proc := inprocess.New("p1", scenarioModel(), memory.NewFactory(memory.WithGenericTasks(true)), inprocess.WithOwner(owner))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
	task, _ := proc.Task("a")

	require.NoError(t, proc.Dead(ctx, domain.Signaled("segfault")))
	assert.True(t, task.(*memory.TaskContext).Disposed(), "owner is never told while tasks are held")
	require.Len(t, owner.Deaths(), 1)
	assert.Equal(t, "segfault", owner.Deaths()[0].Status.Signal)

	// Kill after an external death is a no-op
	require.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))
	assert.Len(t, owner.Deaths(), 1)
}

func TestProcess_WaitRunningAndJoin(t *testing.T) {
	ctx := context.Background()
	proc := inprocess.New("p1", scenarioModel(), memory.NewFactory(memory.WithGenericTasks(true)))

	ready, err := proc.WaitRunning(ctx, false)
	require.NoError(t, err)
	assert.False(t, ready, "never a false positive before spawn")

	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
	for _, blocking := range []bool{false, true} {
		ready, err := proc.WaitRunning(ctx, blocking)
		require.NoError(t, err)
		assert.True(t, ready)
	}

	assert.ErrorIs(t, proc.Join(ctx), domain.ErrUnsupported)
	assert.Greater(t, proc.PID(), 0)
}

func TestProcess_Hooks(t *testing.T) {
	ctx := context.Background()
	var events []string
	hooks := domain.LifecycleHooks{
		OnSpawn: func(_ context.Context, e *domain.ProcessEvent) {
			events = append(events, "spawn:"+e.Process)
		},
		OnTaskDisposed: func(_ context.Context, e *domain.TaskEvent) {
			events = append(events, "dispose:"+e.Task)
		},
		OnDead: func(_ context.Context, e *domain.ProcessEvent) {
			events = append(events, "dead:"+e.Status.String())
		},
	}
	owner := ports.DeathListenerFunc(func(name string, status domain.Status) {
		events = append(events, "owner:"+name)
	})

	proc := inprocess.New("p1", scenarioModel(), memory.NewFactory(memory.WithGenericTasks(true)),
		inprocess.WithLifecycleHooks(hooks), inprocess.WithOwner(owner))
	require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
	require.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))

	assert.Equal(t, []string{
		"spawn:p1",
		"dispose:a",
		"dispose:b",
		"dead:exit code 0",
		"owner:p1",
	}, events, "owner is notified last, after every disposal")
}
