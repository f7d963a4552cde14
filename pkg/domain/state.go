package domain

// ProcessState is the lifecycle state of a process.
// Transitions only go forward: Unspawned -> Running -> Dead.
type ProcessState int

const (
	// StateUnspawned indicates the process was created but Spawn was not called yet.
	StateUnspawned ProcessState = iota

	// StateRunning indicates every declared task exists and can be addressed by name.
	StateRunning

	// StateDead is terminal. A dead process must be discarded by its owner.
	StateDead
)

// String returns a human-readable string for the state.
func (s ProcessState) String() string {
	switch s {
	case StateUnspawned:
		return "unspawned"
	case StateRunning:
		return "running"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Backing selects the execution model behind a process.
// It is chosen explicitly at construction time, never inferred.
type Backing string

const (
	// BackingInProcess runs tasks as objects inside the supervisor's own process.
	BackingInProcess Backing = "inprocess"

	// BackingExternal runs the deployment as a separate operating-system process.
	BackingExternal Backing = "external"
)

// Valid reports whether b names a known backing.
func (b Backing) Valid() bool {
	return b == BackingInProcess || b == BackingExternal
}
