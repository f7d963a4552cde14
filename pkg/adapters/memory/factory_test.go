package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/deployd/pkg/adapters/memory"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("Registered Model", func(t *testing.T) {
		f := memory.NewFactory()
		f.Register("ClassA", func(ctx context.Context, name string) (ports.Task, error) {
			task := memory.NewTaskContext(name, "ClassA")
			task.Set("kind", "a")
			return task, nil
		})
		assert.True(t, f.Has("ClassA"))

		task, err := f.New(ctx, "p1_a", "ClassA")
		require.NoError(t, err)
		assert.Equal(t, "p1_a", task.Name())

		tc := task.(*memory.TaskContext)
		kind, ok := tc.Get("kind")
		assert.True(t, ok)
		assert.Equal(t, "a", kind)
	})

	t.Run("Unknown Model Fails By Default", func(t *testing.T) {
		f := memory.NewFactory()
		_, err := f.New(ctx, "x", "Nope")
		assert.ErrorIs(t, err, memory.ErrUnknownTaskModel)
	})

	t.Run("Generic Tasks", func(t *testing.T) {
		f := memory.NewFactory(memory.WithGenericTasks(true))
		task, err := f.New(ctx, "x", "Anything")
		require.NoError(t, err)
		assert.Equal(t, "Anything", task.(*memory.TaskContext).Model())
	})

	t.Run("Constructor Errors Propagate", func(t *testing.T) {
		boom := errors.New("boom")
		f := memory.NewFactory(memory.WithModel("Bad", func(ctx context.Context, name string) (ports.Task, error) {
			return nil, boom
		}))
		_, err := f.New(ctx, "x", "Bad")
		assert.ErrorIs(t, err, boom)
	})
}

func TestTaskContext_Dispose(t *testing.T) {
	task := memory.NewTaskContext("p1_a", "ClassA")
	task.Set("foo", 1)

	require.NoError(t, task.Dispose())
	assert.True(t, task.Disposed())
	_, ok := task.Get("foo")
	assert.False(t, ok, "properties are released")

	assert.ErrorIs(t, task.Dispose(), memory.ErrAlreadyDisposed)
}
