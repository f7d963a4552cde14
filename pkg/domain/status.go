package domain

import (
	"fmt"
)

// Status describes how a managed process ended.
// Statuses are treated as immutable values once built.
type Status struct {
	// Code is the exit code, if the process exited normally.
	Code *int `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`

	// Signal is the name of the signal that terminated the process, if any.
	Signal string `json:"signal,omitempty" yaml:"signal,omitempty"`

	// Reason is a free-form explanation (e.g. "killed by supervisor").
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ExitCode returns a Status for a process that exited with the given code.
func ExitCode(code int) Status {
	return Status{Code: &code}
}

// Signaled returns a Status for a process terminated by a signal.
func Signaled(signal string) Status {
	return Status{Signal: signal}
}

// DefaultStatus is the status used when a caller does not supply one.
func DefaultStatus() Status {
	return ExitCode(0)
}

// WithReason returns a copy of s carrying the given reason.
func (s Status) WithReason(reason string) Status {
	s.Reason = reason
	return s
}

// ExitCode returns the exit code and whether one was recorded.
func (s Status) ExitCode() (int, bool) {
	if s.Code == nil {
		return 0, false
	}
	return *s.Code, true
}

// Exited reports whether the process exited normally (as opposed to by signal).
func (s Status) Exited() bool {
	return s.Code != nil
}

// Success reports whether the process exited with code 0.
func (s Status) Success() bool {
	return s.Code != nil && *s.Code == 0
}

// Equal compares two statuses by value.
func (s Status) Equal(other Status) bool {
	if (s.Code == nil) != (other.Code == nil) {
		return false
	}
	if s.Code != nil && *s.Code != *other.Code {
		return false
	}
	return s.Signal == other.Signal && s.Reason == other.Reason
}

// Label is a short, low-cardinality label suitable for metrics.
func (s Status) Label() string {
	switch {
	case s.Code != nil:
		return fmt.Sprintf("%d", *s.Code)
	case s.Signal != "":
		return s.Signal
	default:
		return "unknown"
	}
}

func (s Status) String() string {
	var out string
	switch {
	case s.Code != nil:
		out = fmt.Sprintf("exit code %d", *s.Code)
	case s.Signal != "":
		out = fmt.Sprintf("signal %s", s.Signal)
	default:
		out = "unknown status"
	}
	if s.Reason != "" {
		out += " (" + s.Reason + ")"
	}
	return out
}
