package ports

import "context"

// Task is an opaque running task instance.
type Task interface {
	// Name returns the deployed name of the task.
	Name() string

	// Dispose releases the resources held by the task.
	Dispose() error
}

// TaskFactory builds task instances for the in-process backing.
type TaskFactory interface {
	// New builds a task named deployedName from the given task model.
	// The task must be ready to be addressed when New returns.
	New(ctx context.Context, deployedName, taskModel string) (Task, error)
}

// TaskFactoryFunc adapts a plain function to TaskFactory.
type TaskFactoryFunc func(ctx context.Context, deployedName, taskModel string) (Task, error)

// New calls f.
func (f TaskFactoryFunc) New(ctx context.Context, deployedName, taskModel string) (Task, error) {
	return f(ctx, deployedName, taskModel)
}
