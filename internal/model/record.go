package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Record is a task exactly as stored. It marshals back to the stored bytes,
// so fields the board does not know about survive a round trip. The embedded
// Task is a best-effort typed view of the same record.
type Record struct {
	Task
	raw    json.RawMessage
	isTask bool
}

// NewRecord wraps a stored record. Members with the wrong JSON type are left
// zero in the typed view; they never make the record unreadable.
func NewRecord(raw json.RawMessage) Record {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		raw = buf.Bytes()
	}
	t, ok := looseTask(raw)
	return Record{Task: t, raw: raw, isTask: ok}
}

// Raw returns the stored bytes in compact form.
func (r Record) Raw() json.RawMessage { return r.raw }

// IsTask reports whether the record is a JSON object.
func (r Record) IsTask() bool { return r.isTask }

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return json.Marshal(r.Task)
	}
	return r.raw, nil
}

// Tasks returns the typed views of records that are JSON objects.
func Tasks(records []Record) []Task {
	out := make([]Task, 0, len(records))
	for _, r := range records {
		if r.isTask {
			out = append(out, r.Task)
		}
	}
	return out
}

func looseTask(raw json.RawMessage) (Task, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Task{Tags: []string{}}, false
	}
	var t Task
	_ = json.Unmarshal(fields["id"], &t.ID)
	t.Title = looseString(fields["title"])
	t.Description = looseString(fields["description"])
	t.Priority = Priority(looseString(fields["priority"]))
	t.Status = Status(looseString(fields["status"]))
	t.DueDate = looseString(fields["dueDate"])
	t.Tags = looseTags(fields["tags"])
	t.CreatedAt = looseTime(fields["createdAt"])
	return t, true
}

func looseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// looseTags keeps the string members of an array. A lone string is one tag.
func looseTags(raw json.RawMessage) []string {
	tags := []string{}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := strings.TrimSpace(looseString(raw)); s != "" {
			tags = append(tags, s)
		}
		return tags
	}
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			tags = append(tags, s)
		}
	}
	return tags
}

var createdAtLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func looseTime(raw json.RawMessage) time.Time {
	s := strings.TrimSpace(looseString(raw))
	if s == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
