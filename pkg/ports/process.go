package ports

import (
	"context"

	"github.com/aretw0/deployd/pkg/domain"
)

// Process is the lifecycle contract shared by every backing.
//
// The lifecycle is:
//  1. Create a Process bound to a Deployment (and optionally a DeathListener)
//  2. Spawn it, which makes every declared task addressable by name
//  3. Optionally WaitRunning until every task accepts requests
//  4. Kill it (or let it die), which disposes all tasks and notifies the owner once
//
// A dead Process is terminal and must be discarded.
type Process interface {
	// Name returns the process name, unique in its owner's namespace.
	Name() string

	// Model returns the deployment the process was built from.
	Model() domain.Deployment

	// State returns the current lifecycle state.
	State() domain.ProcessState

	// Spawn materializes every task declared in the model.
	// Returns domain.ErrInvalidState unless the process is unspawned.
	Spawn(ctx context.Context, opts domain.SpawnOptions) error

	// WaitRunning reports whether every task is ready to accept requests.
	// When blocking is true it waits until they are, or until ctx is done.
	// It never returns true before readiness is established.
	WaitRunning(ctx context.Context, blocking bool) (bool, error)

	// IsAlive returns false before Spawn and after death.
	IsAlive() bool

	// Kill disposes every task, marks the process dead and notifies the owner.
	// It is a no-op on an unspawned or dead process. When wait is true the call
	// returns only once termination is confirmed.
	// A *domain.DisposalError does not mean the process is still alive.
	Kill(ctx context.Context, wait bool, status domain.Status) error

	// Task returns the task declared under the given logical name.
	// Returns domain.ErrInvalidState unless running, and a *domain.NotFoundError
	// if no such task exists.
	Task(name string) (Task, error)

	// Join blocks until the process exits.
	// Backings with nothing to wait on return domain.ErrUnsupported.
	Join(ctx context.Context) error

	// HostID identifies the host the tasks run on.
	HostID() string

	// IsLocal reports whether the tasks run on the supervisor's machine.
	IsLocal() bool

	// PID returns the identifier of the OS process hosting the tasks.
	PID() int
}
