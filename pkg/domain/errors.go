package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidState is returned when a lifecycle operation is invoked in a state that forbids it.
	ErrInvalidState = errors.New("invalid process state")

	// ErrNotFound is returned when a task lookup has no corresponding deployed task.
	ErrNotFound = errors.New("task not found")

	// ErrUnsupported is returned for operations that are meaningless for a backing.
	ErrUnsupported = errors.New("operation not supported")

	// ErrDeploymentNotFound is returned when a deployment model cannot be found.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrInvalidDeployment is returned when a deployment model is malformed.
	ErrInvalidDeployment = errors.New("invalid deployment")

	// ErrAlreadyDeployed is returned when a process name is already in use by a live process.
	ErrAlreadyDeployed = errors.New("deployment already running")

	// ErrUnresolved is returned when a service name matches no registry.
	ErrUnresolved = errors.New("service name unresolved")

	// ErrNameCollision is returned when two logical names map to the same deployed name.
	ErrNameCollision = errors.New("deployed name collision")
)

// InvalidStateError reports a lifecycle operation attempted in the wrong state.
type InvalidStateError struct {
	Process string
	Op      string
	State   ProcessState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: cannot %s process %s in state %s", ErrInvalidState, e.Op, e.Process, e.State)
}

// Is makes errors.Is(err, ErrInvalidState) succeed.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// NotFoundError reports a task lookup that failed.
type NotFoundError struct {
	Process string
	Task    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("process %s has no task called %s", e.Process, e.Task)
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DisposalError aggregates the task disposals that failed during a kill.
// The process still reaches the dead state when this error is returned.
type DisposalError struct {
	Process  string
	Failures map[string]error // deployed task name -> cause
}

func (e *DisposalError) Error() string {
	names := e.Tasks()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failures[name]))
	}
	return fmt.Sprintf("failed to dispose %d task(s) of %s: %s", len(names), e.Process, strings.Join(parts, "; "))
}

// Tasks returns the names of the tasks that failed to dispose, sorted.
func (e *DisposalError) Tasks() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unwrap exposes the underlying failures to errors.Is and errors.As.
func (e *DisposalError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, name := range e.Tasks() {
		errs = append(errs, e.Failures[name])
	}
	return errs
}
