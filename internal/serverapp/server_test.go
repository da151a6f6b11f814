package serverapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/task"
)

type testApp struct {
	handler http.Handler
	logs    *bytes.Buffer
	cfg     *config.Config
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()

	cfg := config.Default()
	dir := t.TempDir()
	cfg.Store.Path = filepath.Join(dir, "data", "taskboard.json")
	cfg.Store.TemplatePath = ""
	cfg.Static.Dir = filepath.Join(dir, "public")
	if mutate != nil {
		mutate(&cfg)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	h, err := NewHandler(Options{Config: &cfg, Logger: logger})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return &testApp{handler: h, logs: &logs, cfg: &cfg}
}

func (a *testApp) json(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	return a.request(method, path, r)
}

func (a *testApp) request(method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_TaskLifecycle(t *testing.T) {
	app := newTestApp(t, nil)

	res := app.json(http.MethodPost, "/tasks", map[string]any{
		"title":    "Integration task",
		"priority": "high",
		"dueDate":  "2026-06-01",
		"tags":     []string{"it"},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d body=%s", res.Code, res.Body.String())
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}
	var created []map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 task, got %d", len(created))
	}
	id, _ := created[0]["id"].(string)
	if !strings.HasPrefix(id, "task_") {
		t.Fatalf("unexpected id %q", id)
	}

	res = app.request(http.MethodGet, "/tasks/"+id, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get expected 200, got %d", res.Code)
	}

	res = app.json(http.MethodPut, "/tasks/"+id, map[string]any{"status": "completed"})
	if res.Code != http.StatusOK {
		t.Fatalf("update expected 200, got %d body=%s", res.Code, res.Body.String())
	}

	res = app.request(http.MethodGet, "/stats", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("stats expected 200, got %d", res.Code)
	}
	var stats task.Stats
	if err := json.Unmarshal(res.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	res = app.request(http.MethodGet, "/tasks/"+id+"/calendar.ics", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("calendar expected 200, got %d body=%s", res.Code, res.Body.String())
	}

	res = app.request(http.MethodDelete, "/tasks/"+id, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("delete expected 200, got %d", res.Code)
	}
	res = app.request(http.MethodDelete, "/tasks/"+id, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Task not found.") {
		t.Fatalf("unexpected body %s", res.Body.String())
	}

	b, err := os.ReadFile(app.cfg.Store.Path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if err := task.ValidateDocument(b); err != nil {
		t.Fatalf("store file invalid after lifecycle: %v", err)
	}

	if !strings.Contains(app.logs.String(), `"msg":"http request"`) {
		t.Fatalf("expected access log entries, got %s", app.logs.String())
	}
}

func TestServer_Health(t *testing.T) {
	app := newTestApp(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		res := app.request(http.MethodGet, path, nil)
		if res.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d", path, res.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if body["ok"] != true || body["service"] != "taskboard" {
			t.Fatalf("unexpected %s body %v", path, body)
		}
	}
}

func TestServer_ReadyzReportsBrokenStore(t *testing.T) {
	app := newTestApp(t, nil)
	if err := os.WriteFile(app.cfg.Store.Path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("corrupt store: %v", err)
	}

	res := app.request(http.MethodGet, "/readyz", nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	res = app.request(http.MethodGet, "/tasks", nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestServer_StaticFromDisk(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		if err := os.MkdirAll(cfg.Static.Dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(cfg.Static.Dir, "index.html"), []byte("<h1>disk board</h1>"), 0o644); err != nil {
			t.Fatalf("write index: %v", err)
		}
	})

	res := app.request(http.MethodGet, "/", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "disk board") {
		t.Fatalf("expected disk index, got %s", res.Body.String())
	}
}

func TestServer_BoardPageFallback(t *testing.T) {
	app := newTestApp(t, nil)

	res := app.json(http.MethodPost, "/tasks", map[string]any{"title": "Render <me>", "tags": []string{"ui"}})
	if res.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", res.Code, res.Body.String())
	}

	res = app.request(http.MethodGet, "/", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	body := res.Body.String()
	for _, want := range []string{"<title>Taskboard</title>", "Render &lt;me&gt;", "Total: <b>1</b>", `<span class="tag">ui</span>`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in board page, got %s", want, body)
		}
	}

	res = app.request(http.MethodGet, "/board.css", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected embedded stylesheet, got %d", res.Code)
	}
	res = app.request(http.MethodGet, "/missing.js", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestServer_BoardPageStoreFailure(t *testing.T) {
	app := newTestApp(t, nil)
	if err := os.WriteFile(app.cfg.Store.Path, []byte(`{"tasks": [`), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}

	res := app.request(http.MethodGet, "/", nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if !strings.Contains(app.logs.String(), "render board page") {
		t.Fatalf("expected render failure to be logged, got %s", app.logs.String())
	}
}

func TestServer_StaticDisabled(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.Static.Enabled = false })

	res := app.request(http.MethodGet, "/", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestNewRepo(t *testing.T) {
	repo, err := NewRepo(config.Store{Path: MemoryStorePath})
	if err != nil {
		t.Fatalf("memory repo: %v", err)
	}
	if _, ok := repo.(*task.MemoryRepo); !ok {
		t.Fatalf("expected *task.MemoryRepo, got %T", repo)
	}

	path := filepath.Join(t.TempDir(), "tasks.json")
	repo, err = NewRepo(config.Store{Path: path})
	if err != nil {
		t.Fatalf("file repo: %v", err)
	}
	if _, ok := repo.(*task.FileRepo); !ok {
		t.Fatalf("expected *task.FileRepo, got %T", repo)
	}

	if _, err := NewRepo(config.Store{Path: path + "x", TemplatePath: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatalf("expected error for missing template")
	}
	if _, err := NewRepo(config.Store{Path: MemoryStorePath, TemplatePath: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatalf("expected error for missing memory template")
	}
}

func TestNewHandler_RequiresConfig(t *testing.T) {
	if _, err := NewHandler(Options{}); err == nil {
		t.Fatalf("expected error without config")
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	app := newTestApp(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, app.handler, ln, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	res, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

func TestNewRepo_MemorySeededFromTemplate(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "taskboard.template.json")
	if err := os.WriteFile(tmpl, []byte(`{"tasks": [{"id": "welcome", "title": "Welcome aboard"}]}`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	repo, err := NewRepo(config.Store{Path: MemoryStorePath, TemplatePath: tmpl})
	if err != nil {
		t.Fatalf("memory repo: %v", err)
	}
	ts, err := repo.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ts) != 1 || ts[0].ID != "welcome" {
		t.Fatalf("expected seeded welcome task, got %+v", ts)
	}
	if _, err := os.Stat(MemoryStorePath); err == nil {
		t.Fatalf("memory store must not touch the filesystem")
	}
}
