package domain

import (
	"fmt"
	"time"
)

// TaskActivity is one task declared in a Deployment.
type TaskActivity struct {
	// Name is the logical name of the task, independent of any deployment prefix.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// TaskModel references the task class used to build the instance.
	TaskModel string `json:"task_model" yaml:"task_model" mapstructure:"task_model"`
}

// Connection is a dataflow link between two task ports.
// Connections are descriptive only: they are exported, never established.
type Connection struct {
	From     string `json:"from" yaml:"from" mapstructure:"from"`
	FromPort string `json:"from_port" yaml:"from_port" mapstructure:"from_port"`
	To       string `json:"to" yaml:"to" mapstructure:"to"`
	ToPort   string `json:"to_port" yaml:"to_port" mapstructure:"to_port"`

	// Policy is the connection policy (e.g. "data", "buffer:20").
	Policy string `json:"policy,omitempty" yaml:"policy,omitempty" mapstructure:"policy"`
}

// Deployment describes which named task instances a process contains.
// It is shared and read-only from the point of view of a process.
type Deployment struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Tasks       []TaskActivity `json:"tasks" yaml:"tasks" mapstructure:"tasks"`
	Connections []Connection   `json:"connections,omitempty" yaml:"connections,omitempty" mapstructure:"connections"`

	// Mappings renames logical task names explicitly (logical -> deployed).
	Mappings map[string]string `json:"mappings,omitempty" yaml:"mappings,omitempty" mapstructure:"mappings"`
}

// TaskNames returns the logical task names in declaration order.
func (d Deployment) TaskNames() []string {
	names := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		names = append(names, t.Name)
	}
	return names
}

// Activity looks up a task activity by logical name.
func (d Deployment) Activity(name string) (TaskActivity, bool) {
	for _, t := range d.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskActivity{}, false
}

// Validate checks the structural integrity of the deployment.
func (d Deployment) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: deployment name is required", ErrInvalidDeployment)
	}

	seen := make(map[string]bool, len(d.Tasks))
	for i, t := range d.Tasks {
		if t.Name == "" {
			return fmt.Errorf("%w: task #%d of %s has no name", ErrInvalidDeployment, i, d.Name)
		}
		if t.TaskModel == "" {
			return fmt.Errorf("%w: task %s of %s has no task model", ErrInvalidDeployment, t.Name, d.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: task %s is declared twice in %s", ErrInvalidDeployment, t.Name, d.Name)
		}
		seen[t.Name] = true
	}

	for _, c := range d.Connections {
		if !seen[c.From] {
			return fmt.Errorf("%w: connection source %s is not a task of %s", ErrInvalidDeployment, c.From, d.Name)
		}
		if !seen[c.To] {
			return fmt.Errorf("%w: connection target %s is not a task of %s", ErrInvalidDeployment, c.To, d.Name)
		}
	}

	for logical := range d.Mappings {
		if !seen[logical] {
			return fmt.Errorf("%w: mapping for unknown task %s in %s", ErrInvalidDeployment, logical, d.Name)
		}
	}

	return nil
}

// SpawnOptions tunes how a process is spawned.
// Backings ignore the fields they have no use for.
type SpawnOptions struct {
	// Env adds environment variables to an external process.
	Env map[string]string `json:"env,omitempty" mapstructure:"env"`

	// Dir is the working directory of an external process.
	Dir string `json:"dir,omitempty" mapstructure:"dir"`

	// Wait makes the supervisor block until the process is ready.
	Wait bool `json:"wait,omitempty" mapstructure:"wait"`

	// WaitTimeout bounds Wait. Zero means the supervisor default.
	WaitTimeout time.Duration `json:"wait_timeout,omitempty" mapstructure:"wait_timeout"`
}

// DeploymentRecord is the bookkeeping entry a supervisor keeps for a live process.
type DeploymentRecord struct {
	Name      string            `json:"name"`
	Model     string            `json:"model"`
	Backing   Backing           `json:"backing"`
	HostID    string            `json:"host_id"`
	PID       int               `json:"pid"`
	Tasks     map[string]string `json:"tasks"` // logical -> deployed
	SpawnedAt time.Time         `json:"spawned_at"`
}
