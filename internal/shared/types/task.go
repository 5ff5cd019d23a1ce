package types

import "time"

// TaskKind identifies the backend operation a task tracks
type TaskKind string

const (
	TaskCreate    TaskKind = "create"
	TaskDuplicate TaskKind = "duplicate"
)

// TaskStatus represents task lifecycle states
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskSucceeded TaskStatus = "succeeded"
	TaskError     TaskStatus = "error"
	TaskDismissed TaskStatus = "dismissed"
)

// Terminal reports whether no further progress can be made
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskError || s == TaskDismissed
}

// ProgressSource tells whether progress came from backend events or the fallback ticker
type ProgressSource string

const (
	SourceSynthetic ProgressSource = "synthetic"
	SourceReal      ProgressSource = "real"
)

// Task is a read-only snapshot of a tracked long-running operation
type Task struct {
	Target    string         `json:"target"`
	Kind      TaskKind       `json:"kind"`
	Progress  float64        `json:"progress"`
	Status    TaskStatus     `json:"status"`
	Source    ProgressSource `json:"source"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"started_at"`
}
