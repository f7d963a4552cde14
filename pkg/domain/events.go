package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventSpawn        EventType = "spawn"
	EventTaskDisposed EventType = "task_disposed"
	EventDead         EventType = "dead"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Process   string    `json:"process"`
}

// ProcessEvent represents a process-level transition.
type ProcessEvent struct {
	EventBase
	Backing Backing  `json:"backing"`
	Tasks   []string `json:"tasks,omitempty"`
	Status  *Status  `json:"status,omitempty"`
}

// TaskEvent represents the disposal of one task instance.
type TaskEvent struct {
	EventBase
	Task  string `json:"task"`
	Error error  `json:"-"`
}

// LifecycleHooks defines callbacks for process observability.
// They run synchronously on the goroutine performing the transition.
type LifecycleHooks struct {
	OnSpawn        func(context.Context, *ProcessEvent)
	OnTaskDisposed func(context.Context, *TaskEvent)
	OnDead         func(context.Context, *ProcessEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSpawn:        chainProcess(h.OnSpawn, other.OnSpawn),
		OnTaskDisposed: chainTask(h.OnTaskDisposed, other.OnTaskDisposed),
		OnDead:         chainProcess(h.OnDead, other.OnDead),
	}
}

func chainProcess(a, b func(context.Context, *ProcessEvent)) func(context.Context, *ProcessEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *ProcessEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainTask(a, b func(context.Context, *TaskEvent)) func(context.Context, *TaskEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TaskEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

// NewProcessEvent builds a ProcessEvent stamped with the current time.
func NewProcessEvent(t EventType, process string, backing Backing) *ProcessEvent {
	return &ProcessEvent{
		EventBase: EventBase{Timestamp: time.Now(), Type: t, Process: process},
		Backing:   backing,
	}
}

// NewTaskEvent builds a TaskEvent stamped with the current time.
func NewTaskEvent(process, task string, err error) *TaskEvent {
	return &TaskEvent{
		EventBase: EventBase{Timestamp: time.Now(), Type: EventTaskDisposed, Process: process},
		Task:      task,
		Error:     err,
	}
}
