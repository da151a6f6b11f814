package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"taskboard/internal/model"
)

const (
	titleMinLen       = 3
	titleMaxLen       = 100
	descriptionMaxLen = 500
	maxTags           = 10
	tagMinLen         = 2
	tagMaxLen         = 20
)

// ValidationError reports the first invalid field of a create or update.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func validateTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0:
		return "", invalid("title", "Title is required")
	case n < titleMinLen:
		return "", invalid("title", "Title must be at least 3 characters")
	case n > titleMaxLen:
		return "", invalid("title", "Title must not exceed 100 characters")
	}
	return s, nil
}

func validateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > descriptionMaxLen {
		return "", invalid("description", "Description must not exceed 500 characters")
	}
	return s, nil
}

func validatePriority(s string) (model.Priority, error) {
	p := model.ParsePriority(s)
	if !p.Valid() {
		return "", invalid("priority", "Select a valid priority")
	}
	return p, nil
}

func validateStatus(s string) (model.Status, error) {
	st := model.ParseStatus(s)
	if !st.Valid() {
		return "", invalid("status", "Select a valid status")
	}
	return st, nil
}

var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

func validateDueDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s, nil
		}
	}
	return "", invalid("dueDate", "Due date is invalid")
}

// validateTags trims and de-duplicates tags, keeping the first occurrence.
func validateTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		n := utf8.RuneCountInString(tag)
		if n < tagMinLen || n > tagMaxLen {
			return nil, invalid("tags", "Tags must be 2-20 characters")
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) > maxTags {
		return nil, invalid("tags", "Maximum 10 tags allowed")
	}
	return out, nil
}

func validateInput(in model.TaskInput) (model.Task, error) {
	var (
		t   model.Task
		err error
	)
	if t.Title, err = validateTitle(in.Title); err != nil {
		return model.Task{}, err
	}
	if t.Description, err = validateDescription(in.Description); err != nil {
		return model.Task{}, err
	}

	t.Priority = model.PriorityMedium
	if strings.TrimSpace(in.Priority) != "" {
		if t.Priority, err = validatePriority(in.Priority); err != nil {
			return model.Task{}, err
		}
	}
	t.Status = model.StatusPending
	if strings.TrimSpace(in.Status) != "" {
		if t.Status, err = validateStatus(in.Status); err != nil {
			return model.Task{}, err
		}
	}
	if strings.TrimSpace(in.DueDate) != "" {
		if t.DueDate, err = validateDueDate(in.DueDate); err != nil {
			return model.Task{}, err
		}
	}
	if t.Tags, err = validateTags(in.Tags); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

type patchField struct {
	key   string
	value any
}

// normalizedPatch holds validated patch values; nil means "keep".
type normalizedPatch struct {
	title       *string
	description *string
	priority    *model.Priority
	status      *model.Status
	dueDate     *string
	tags        *[]string
}

// fields lists the members to write, in the order they are appended to a
// record that lacks them.
func (p normalizedPatch) fields() []patchField {
	var out []patchField
	if p.title != nil {
		out = append(out, patchField{"title", *p.title})
	}
	if p.description != nil {
		out = append(out, patchField{"description", *p.description})
	}
	if p.priority != nil {
		out = append(out, patchField{"priority", *p.priority})
	}
	if p.dueDate != nil {
		out = append(out, patchField{"dueDate", *p.dueDate})
	}
	if p.tags != nil {
		out = append(out, patchField{"tags", *p.tags})
	}
	if p.status != nil {
		out = append(out, patchField{"status", *p.status})
	}
	return out
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func validatePatch(p Patch) (normalizedPatch, error) {
	var out normalizedPatch
	if present(p.Title) {
		v, err := validateTitle(*p.Title)
		if err != nil {
			return normalizedPatch{}, err
		}
		out.title = &v
	}
	if present(p.Description) {
		v, err := validateDescription(*p.Description)
		if err != nil {
			return normalizedPatch{}, err
		}
		out.description = &v
	}
	if present(p.Priority) {
		v, err := validatePriority(*p.Priority)
		if err != nil {
			return normalizedPatch{}, err
		}
		out.priority = &v
	}
	if present(p.Status) {
		v, err := validateStatus(*p.Status)
		if err != nil {
			return normalizedPatch{}, err
		}
		out.status = &v
	}
	if present(p.DueDate) {
		v, err := validateDueDate(*p.DueDate)
		if err != nil {
			return normalizedPatch{}, err
		}
		out.dueDate = &v
	}
	if p.Tags != nil && *p.Tags != nil {
		v, err := validateTags(*p.Tags)
		if err != nil {
			return normalizedPatch{}, err
		}
		out.tags = &v
	}
	return out, nil
}
