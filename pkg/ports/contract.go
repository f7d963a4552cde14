package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/deployd/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Death is one notification received by a DeathRecorder.
type Death struct {
	Name   string
	Status domain.Status
}

// DeathRecorder is a DeathListener that remembers every notification.
// Safe for concurrent use.
type DeathRecorder struct {
	mu     sync.Mutex
	deaths []Death
}

// OnDeploymentDead records the notification.
func (r *DeathRecorder) OnDeploymentDead(name string, status domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deaths = append(r.deaths, Death{Name: name, Status: status})
}

// Deaths returns a copy of the notifications received so far.
func (r *DeathRecorder) Deaths() []Death {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Death(nil), r.deaths...)
}

// ProcessConstructor builds an unspawned process for the contract suite.
type ProcessConstructor func(t *testing.T, name string, model domain.Deployment, owner DeathListener) Process

// ContractDeployment is the model the process contract runs against.
func ContractDeployment() domain.Deployment {
	return domain.Deployment{
		Name: "contract",
		Tasks: []domain.TaskActivity{
			{Name: "a", TaskModel: "ClassA"},
			{Name: "b", TaskModel: "ClassB"},
		},
	}
}

// RunProcessContract runs a suite of tests to verify that a Process implementation
// adheres to the lifecycle contract.
func RunProcessContract(t *testing.T, newProcess ProcessConstructor) {
	model := ContractDeployment()

	t.Run("Unspawned", func(t *testing.T) {
		owner := &DeathRecorder{}
		proc := newProcess(t, "p-unspawned", model, owner)

		assert.False(t, proc.IsAlive())
		assert.Equal(t, domain.StateUnspawned, proc.State())
		assert.Equal(t, "p-unspawned", proc.Name())

		_, err := proc.Task("a")
		assert.ErrorIs(t, err, domain.ErrInvalidState, "Task lookups require a running process")

		// Kill before spawn is a no-op
		require.NoError(t, proc.Kill(context.Background(), true, domain.ExitCode(0)))
		assert.Empty(t, owner.Deaths(), "No notification for a process that never ran")
		assert.Equal(t, domain.StateUnspawned, proc.State())
	})

	t.Run("Full Lifecycle", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		owner := &DeathRecorder{}
		proc := newProcess(t, "p1", model, owner)

		// 1. Spawn
		require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
		assert.True(t, proc.IsAlive())
		assert.Equal(t, domain.StateRunning, proc.State())

		// 2. Spawning twice is rejected and leaves the process running
		err := proc.Spawn(ctx, domain.SpawnOptions{})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.True(t, proc.IsAlive())

		// 3. Ready
		ready, err := proc.WaitRunning(ctx, true)
		require.NoError(t, err)
		assert.True(t, ready)

		// 4. Lookups
		for _, activity := range model.Tasks {
			first, err := proc.Task(activity.Name)
			require.NoError(t, err, "task %s should be deployed", activity.Name)
			second, err := proc.Task(activity.Name)
			require.NoError(t, err)
			assert.Same(t, first, second, "lookups must return the same instance")
		}

		_, err = proc.Task("nonexistent")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// 5. Kill
		require.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))
		assert.False(t, proc.IsAlive())
		assert.Equal(t, domain.StateDead, proc.State())

		deaths := owner.Deaths()
		require.Len(t, deaths, 1, "exactly one death notification")
		assert.Equal(t, "p1", deaths[0].Name)
		assert.True(t, deaths[0].Status.Equal(domain.ExitCode(0)), "got %s", deaths[0].Status)

		// 6. Dead is terminal
		require.NoError(t, proc.Kill(ctx, true, domain.ExitCode(1)))
		assert.Len(t, owner.Deaths(), 1, "a second kill must not notify again")

		err = proc.Spawn(ctx, domain.SpawnOptions{})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		_, err = proc.Task("a")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.False(t, proc.IsAlive())
	})

	t.Run("No Owner", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		proc := newProcess(t, "p-orphan", model, nil)
		require.NoError(t, proc.Spawn(ctx, domain.SpawnOptions{}))
		assert.NoError(t, proc.Kill(ctx, true, domain.ExitCode(0)))
		assert.False(t, proc.IsAlive())
	})

	t.Run("Host Identity", func(t *testing.T) {
		proc := newProcess(t, "p-host", model, nil)
		assert.Equal(t, "localhost", proc.HostID())
		assert.True(t, proc.IsLocal())
	})
}

// RunDeploymentStoreContract runs a suite of tests to verify that a DeploymentStore
// implementation adheres to the defined interface contract.
func RunDeploymentStoreContract(t *testing.T, store DeploymentStore) {
	ctx := context.Background()
	name := "contract-" + time.Now().Format("20060102150405")

	record := domain.DeploymentRecord{
		Name:      name,
		Model:     "nav",
		Backing:   domain.BackingInProcess,
		HostID:    "localhost",
		PID:       42,
		Tasks:     map[string]string{"a": name + "_a"},
		SpawnedAt: time.Now().UTC().Truncate(time.Second),
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, record), "Save should not return error")

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record.Model, loaded.Model)
		assert.Equal(t, record.Backing, loaded.Backing)
		assert.Equal(t, record.PID, loaded.PID)
		assert.Equal(t, record.Tasks, loaded.Tasks)
		assert.True(t, record.SpawnedAt.Equal(loaded.SpawnedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrDeploymentNotFound)
	})

	t.Run("List", func(t *testing.T) {
		other := record
		other.Name = name + "-2"
		require.NoError(t, store.Save(ctx, other))
		defer func() { _ = store.Delete(ctx, other.Name) }()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, name)
		assert.Contains(t, names, other.Name)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, name), "Delete should not return error")

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrDeploymentNotFound, "Load after Delete should return ErrDeploymentNotFound")

		assert.NoError(t, store.Delete(ctx, name), "Deleting twice is not an error")
	})
}
