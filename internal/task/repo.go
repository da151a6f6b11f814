package task

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

var (
	ErrNotFound = errors.New("task not found")
	// ErrNoData means there is no collection to read or mutate: the file is
	// missing or its "tasks" member is not an array.
	ErrNoData     = errors.New("no tasks found")
	ErrValidation = errors.New("invalid task")
)

// Patch represents a partial update.
// nil pointer or empty string => "no change". A non-nil Tags replaces the
// tags, so an explicit empty list clears them.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Repo returns records as stored; see model.Record.
type Repo interface {
	List() ([]model.Record, error)
	Get(id model.TaskID) (model.Record, error)
	// Create appends a task and returns the whole collection.
	Create(in model.TaskInput) ([]model.Record, error)
	Update(id model.TaskID, p Patch) (model.Record, error)
	Delete(id model.TaskID) error
}

func newID(prefix string) model.TaskID {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return model.TaskID(prefix + "_" + u.String())
}

// buildTask validates in and returns the task to store.
func buildTask(in model.TaskInput, now time.Time) (model.Task, error) {
	t, err := validateInput(in)
	if err != nil {
		return model.Task{}, err
	}
	t.ID = newID("task")
	t.CreatedAt = now.UTC().Truncate(time.Millisecond)
	return t, nil
}
