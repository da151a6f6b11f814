package task

import (
	"fmt"
	"sync"
	"time"

	"taskboard/internal/model"
)

// MemoryRepo keeps the collection in memory with the same semantics as
// FileRepo. Nothing is persisted.
type MemoryRepo struct {
	mu  sync.RWMutex
	doc *document
	now func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{doc: newDocument(), now: time.Now}
}

// Seed replaces the collection with a parsed template document. Records are
// kept as written, ids and timestamps included.
func (r *MemoryRepo) Seed(template []byte) error {
	doc, err := parseDocument(template)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = doc
	return nil
}

func (r *MemoryRepo) List() ([]model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.list(), nil
}

func (r *MemoryRepo) Get(id model.TaskID) (model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.get(id)
}

func (r *MemoryRepo) Create(in model.TaskInput) ([]model.Record, error) {
	t, err := buildTask(in, r.now())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.doc.appendTask(t); err != nil {
		return nil, err
	}
	return r.doc.list(), nil
}

func (r *MemoryRepo) Update(id model.TaskID, p Patch) (model.Record, error) {
	np, err := validatePatch(p)
	if err != nil {
		return model.Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.update(id, np)
}

func (r *MemoryRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.remove(id)
}
