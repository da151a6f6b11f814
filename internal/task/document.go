package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"taskboard/internal/model"
)

// member is one key/value pair of a JSON object.
type member struct {
	Key   string
	Value json.RawMessage
}

// object is a JSON object that keeps its members in document order, so
// records the store does not touch are written back exactly as they were read.
type object []member

var errNotObject = errors.New("not a JSON object")

func (o *object) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errNotObject
	}

	out := object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		// duplicate keys: first position, last value
		out.set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalRaw(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(m.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(m.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o object) get(key string) (json.RawMessage, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// set replaces the value of key in place, or appends it.
func (o *object) set(key string, v json.RawMessage) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = v
			return
		}
	}
	*o = append(*o, member{Key: key, Value: v})
}

// marshalRaw encodes v without HTML escaping so string values survive a
// read/write cycle unchanged.
func marshalRaw(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// document is the parsed collection file: every top-level member plus the
// tasks array as raw records.
type document struct {
	root object
	// tasks is only meaningful when hasTasks is true.
	tasks    []json.RawMessage
	hasTasks bool
}

func newDocument() *document {
	return &document{
		root:     object{},
		tasks:    []json.RawMessage{},
		hasTasks: true,
	}
}

// parseDocument parses a collection. Malformed JSON is an error; a document
// whose "tasks" member is missing, null or not an array parses with
// hasTasks=false.
func parseDocument(b []byte) (*document, error) {
	if !json.Valid(b) {
		var v any
		err := json.Unmarshal(b, &v)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return nil, err
	}

	doc := &document{root: object{}}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return doc, nil
	}
	if err := json.Unmarshal(trimmed, &doc.root); err != nil {
		return nil, err
	}

	raw, ok := doc.root.get("tasks")
	raw = bytes.TrimSpace(raw)
	if !ok || len(raw) == 0 || raw[0] != '[' {
		return doc, nil
	}
	var tasks []json.RawMessage
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []json.RawMessage{}
	}
	doc.tasks = tasks
	doc.hasTasks = true
	return doc, nil
}

// encode serialises the document with two-space indentation.
func (d *document) encode() ([]byte, error) {
	root := make(object, len(d.root))
	copy(root, d.root)
	if d.hasTasks {
		tasks := d.tasks
		if tasks == nil {
			tasks = []json.RawMessage{}
		}
		raw, err := marshalRaw(tasks)
		if err != nil {
			return nil, err
		}
		root.set("tasks", raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recordID returns the id of a raw record when it is stored as a JSON string.
func recordID(raw json.RawMessage) (string, bool) {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", false
	}
	id := bytes.TrimSpace(head.ID)
	if len(id) == 0 || id[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(id, &s); err != nil {
		return "", false
	}
	return s, true
}

// indexOf returns the position of the first record whose id equals id.
func (d *document) indexOf(id model.TaskID) int {
	if !d.hasTasks || id == "" {
		return -1
	}
	for i, raw := range d.tasks {
		if rid, ok := recordID(raw); ok && rid == string(id) {
			return i
		}
	}
	return -1
}

func (d *document) list() []model.Record {
	out := make([]model.Record, 0, len(d.tasks))
	if !d.hasTasks {
		return out
	}
	for _, raw := range d.tasks {
		out = append(out, model.NewRecord(raw))
	}
	return out
}

func (d *document) get(id model.TaskID) (model.Record, error) {
	i := d.indexOf(id)
	if i < 0 {
		return model.Record{}, ErrNotFound
	}
	return model.NewRecord(d.tasks[i]), nil
}

// appendTask adds t at the end, turning a malformed "tasks" member into a
// fresh array first.
func (d *document) appendTask(t model.Task) error {
	raw, err := marshalRaw(t)
	if err != nil {
		return err
	}
	if !d.hasTasks {
		d.tasks = []json.RawMessage{}
		d.hasTasks = true
	}
	d.tasks = append(d.tasks, raw)
	return nil
}

// update merges p over the record with the given id. Members of the record
// that p does not set keep their position and bytes.
func (d *document) update(id model.TaskID, p normalizedPatch) (model.Record, error) {
	if !d.hasTasks {
		return model.Record{}, ErrNoData
	}
	i := d.indexOf(id)
	if i < 0 {
		return model.Record{}, ErrNotFound
	}

	var rec object
	if err := json.Unmarshal(d.tasks[i], &rec); err != nil {
		return model.Record{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	for _, f := range p.fields() {
		raw, err := marshalRaw(f.value)
		if err != nil {
			return model.Record{}, err
		}
		rec.set(f.key, raw)
	}
	merged, err := marshalRaw(rec)
	if err != nil {
		return model.Record{}, err
	}
	d.tasks[i] = merged
	return model.NewRecord(merged), nil
}

// remove splices out the first record with the given id.
func (d *document) remove(id model.TaskID) error {
	if !d.hasTasks {
		return ErrNoData
	}
	i := d.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
	return nil
}

// ValidateDocument checks that b is a task collection whose records are
// objects with unique, non-empty string ids. Loosely typed members are
// accepted the same way the store reads them.
func ValidateDocument(b []byte) error {
	doc, err := parseDocument(b)
	if err != nil {
		return err
	}
	if !doc.hasTasks {
		return errors.New(`missing "tasks" array`)
	}
	seen := make(map[string]bool, len(doc.tasks))
	for i, raw := range doc.tasks {
		if !model.NewRecord(raw).IsTask() {
			return fmt.Errorf("task %d: %w", i, errNotObject)
		}
		id, ok := recordID(raw)
		if !ok || id == "" {
			return fmt.Errorf("task %d: id must be a non-empty string", i)
		}
		if seen[id] {
			return fmt.Errorf("task %d: duplicate id %q", i, id)
		}
		seen[id] = true
	}
	return nil
}
