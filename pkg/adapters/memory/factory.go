package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/deployd/pkg/ports"
)

// ErrUnknownTaskModel is returned when no constructor is registered for a task model.
var ErrUnknownTaskModel = errors.New("unknown task model")

// ErrAlreadyDisposed is returned when a TaskContext is disposed twice.
var ErrAlreadyDisposed = errors.New("task already disposed")

// TaskContext is a minimal in-memory task instance.
// It keeps a property map so in-process tasks have some state to inspect.
type TaskContext struct {
	name  string
	model string

	mu         sync.Mutex
	disposed   bool
	properties map[string]any
}

// NewTaskContext creates a live task instance.
func NewTaskContext(name, model string) *TaskContext {
	return &TaskContext{
		name:       name,
		model:      model,
		properties: make(map[string]any),
	}
}

// Name returns the deployed name.
func (t *TaskContext) Name() string { return t.name }

// Model returns the task model the instance was built from.
func (t *TaskContext) Model() string { return t.model }

// Set writes a property.
func (t *TaskContext) Set(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.properties[key] = value
}

// Get reads a property.
func (t *TaskContext) Get(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.properties[key]
	return v, ok
}

// Disposed reports whether Dispose succeeded.
func (t *TaskContext) Disposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

// Dispose releases the task. Disposing twice is an error.
func (t *TaskContext) Dispose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return fmt.Errorf("%s: %w", t.name, ErrAlreadyDisposed)
	}
	t.disposed = true
	t.properties = make(map[string]any)
	return nil
}

// Constructor builds a task instance for a registered model.
type Constructor func(ctx context.Context, deployedName string) (ports.Task, error)

// Factory implements ports.TaskFactory with a registry of task models.
// Safe for concurrent use.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	fallback     bool
}

// FactoryOption configures the Factory.
type FactoryOption func(*Factory)

// WithGenericTasks makes unknown task models produce plain TaskContexts
// instead of failing with ErrUnknownTaskModel.
func WithGenericTasks(enabled bool) FactoryOption {
	return func(f *Factory) {
		f.fallback = enabled
	}
}

// WithModel registers a constructor for a task model.
func WithModel(model string, ctor Constructor) FactoryOption {
	return func(f *Factory) {
		f.constructors[model] = ctor
	}
}

// NewFactory creates a new Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		constructors: make(map[string]Constructor),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a constructor for a task model.
// If one exists, it is overwritten.
func (f *Factory) Register(model string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[model] = ctor
}

// Has reports whether a constructor exists for model.
func (f *Factory) Has(model string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[model]
	return ok
}

// New builds the task.
func (f *Factory) New(ctx context.Context, deployedName, taskModel string) (ports.Task, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[taskModel]
	fallback := f.fallback
	f.mu.RUnlock()

	if !ok {
		if !fallback {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTaskModel, taskModel)
		}
		ctor = func(ctx context.Context, name string) (ports.Task, error) {
			return NewTaskContext(name, taskModel), nil
		}
	}

	return ctor(ctx, deployedName)
}
