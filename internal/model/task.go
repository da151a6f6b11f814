package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type TaskID string

// UnmarshalJSON accepts numeric ids written by hand into the data file and keeps
// their literal text. Lookups still only match ids stored as JSON strings.
func (id *TaskID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '"' {
		if bytes.Equal(b, []byte("null")) {
			*id = ""
			return nil
		}
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*id = TaskID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = TaskID(s)
	return nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority lower-cases and trims s. It does not validate.
func ParsePriority(s string) Priority {
	return Priority(strings.ToLower(strings.TrimSpace(s)))
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ParseStatus(s string) Status {
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

type Task struct {
	ID          TaskID    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	DueDate     string    `json:"dueDate"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TaskInput is the body accepted when creating a task.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	DueDate     string   `json:"dueDate"`
	Tags        []string `json:"tags"`
}
