package task

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"taskboard/internal/fsutil"
	"taskboard/internal/model"
)

//go:embed default_template.json
var defaultTemplate []byte

// FileRepo is a persistent task repository backed by one JSON document.
// Every operation reads the whole file, mutates it in memory and rewrites it.
type FileRepo struct {
	mu           sync.Mutex
	path         string
	templatePath string
	now          func() time.Time
}

// NewFileRepo opens the collection at path, seeding it from templatePath when
// the file does not exist yet. An empty templatePath seeds an empty collection.
func NewFileRepo(path, templatePath string) (*FileRepo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("task store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path:         path,
		templatePath: strings.TrimSpace(templatePath),
		now:          time.Now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(r.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if _, err := r.seedLocked(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *FileRepo) Path() string { return r.path }

func (r *FileRepo) template() ([]byte, error) {
	if r.templatePath == "" {
		return defaultTemplate, nil
	}
	b, err := os.ReadFile(r.templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return b, nil
}

// seedLocked writes the template as the collection file.
func (r *FileRepo) seedLocked() (*document, error) {
	b, err := r.template()
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(b)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if err := r.saveLocked(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// loadLocked reads the collection. ok is false when the file does not exist.
func (r *FileRepo) loadLocked() (doc *document, ok bool, err error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read tasks: %w", err)
	}
	doc, err = parseDocument(b)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return doc, true, nil
}

func (r *FileRepo) loadOrSeedLocked() (*document, error) {
	doc, ok, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	if !ok {
		return r.seedLocked()
	}
	return doc, nil
}

func (r *FileRepo) saveLocked(doc *document) error {
	b, err := doc.encode()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(r.path, b, 0o644); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	return nil
}

func (r *FileRepo) List() ([]model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadOrSeedLocked()
	if err != nil {
		return nil, err
	}
	return doc.list(), nil
}

func (r *FileRepo) Get(id model.TaskID) (model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok, err := r.loadLocked()
	if err != nil {
		return model.Record{}, err
	}
	if !ok {
		return model.Record{}, ErrNoData
	}
	return doc.get(id)
}

func (r *FileRepo) Create(in model.TaskInput) ([]model.Record, error) {
	t, err := buildTask(in, r.now())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadOrSeedLocked()
	if err != nil {
		return nil, err
	}
	if err := doc.appendTask(t); err != nil {
		return nil, err
	}
	if err := r.saveLocked(doc); err != nil {
		return nil, err
	}
	return doc.list(), nil
}

func (r *FileRepo) Update(id model.TaskID, p Patch) (model.Record, error) {
	np, err := validatePatch(p)
	if err != nil {
		return model.Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok, err := r.loadLocked()
	if err != nil {
		return model.Record{}, err
	}
	if !ok {
		return model.Record{}, ErrNoData
	}
	rec, err := doc.update(id, np)
	if err != nil {
		return model.Record{}, err
	}
	if err := r.saveLocked(doc); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

func (r *FileRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok, err := r.loadLocked()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoData
	}
	if err := doc.remove(id); err != nil {
		return err
	}
	return r.saveLocked(doc)
}
