// Package track holds the domain types shared by the mutation-history engine.
// Enum values live here as closed string types; raw strings cross the
// entity-store boundary only.
package track

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
	StatusOnHold     Status = "on_hold"
)

// ParseStatus maps a raw store string onto a Status. The second return is
// false for values outside the closed set.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusNotStarted, StatusInProgress, StatusBlocked, StatusCompleted, StatusArchived, StatusOnHold:
		return Status(raw), true
	}
	return "", false
}

// Priority ranks a task's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority maps a raw store string onto a Priority.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(raw), true
	}
	return "", false
}

// Action identifies the kind of mutation a history event records.
type Action string

const (
	ActionCreated           Action = "created"
	ActionUpdated           Action = "updated"
	ActionDeleted           Action = "deleted"
	ActionSubtaskAdded      Action = "subtask_added"
	ActionSubtaskRemoved    Action = "subtask_removed"
	ActionDependencyAdded   Action = "dependency_added"
	ActionDependencyRemoved Action = "dependency_removed"
)

// MetadataEntry is one free-form key/value attached to a task.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Task is the work item under audit. SubTasks and Dependencies never contain
// the task's own ID; membership is checked at insertion time by the
// orchestrator.
type Task struct {
	ID           string
	ProjectID    string
	Title        string
	Description  string
	Status       Status
	Priority     Priority
	StartDate    *time.Time
	DueDate      *time.Time
	CompletedAt  *time.Time
	Tags         []string
	Assignee     string
	IsSubtask    bool
	SubTasks     []string
	Dependencies []string
	Metadata     []MetadataEntry
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedBy    string
	UpdatedAt    time.Time
}

// ChangeEntry is one field-level delta inside a history event. Old and New
// hold the normalized scalar forms; the missing side of a one-sided change is
// nil.
type ChangeEntry struct {
	Field string `json:"field"`
	Old   any    `json:"old_value"`
	New   any    `json:"new_value"`
}

// HistoryEvent is one immutable audit row. Hash is the idempotency key: at
// most one event exists per (task_id, action, changes, actor) tuple. History
// rows outlive their task.
type HistoryEvent struct {
	ID           string
	TaskID       string
	Action       Action
	Title        string
	Changes      []ChangeEntry
	CreatedBy    string
	ActorDisplay string
	Hash         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
