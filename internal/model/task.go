package model

import "time"

// Status is the lifecycle state of a task
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// Priority levels for tasks
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task represents a single todo item owned by the backend
type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Priority       Priority   `json:"priority,omitempty"`
	Status         Status     `json:"status"`
	PreviousStatus *Status    `json:"previous_status,omitempty"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	UserID         int64      `json:"user_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsArchived returns true if the task lives in the archived collection
func (t *Task) IsArchived() bool {
	return t.Status == StatusArchived
}

// IsDone returns true if the task is completed
func (t *Task) IsDone() bool {
	return t.Status == StatusCompleted
}

// IsDue returns true if the task is due today or overdue
func (t *Task) IsDue() bool {
	if t.DueDate == nil {
		return false
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return t.DueDate.Before(today.Add(24 * time.Hour))
}

// IsOverdue returns true if the task is past its due date
func (t *Task) IsOverdue() bool {
	if t.DueDate == nil {
		return false
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return t.DueDate.Before(today)
}

// ValidStatus reports whether s is one of the known lifecycle states
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusArchived:
		return true
	}
	return false
}
