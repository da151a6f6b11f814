package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/httpmw"
	"taskboard/internal/task"
	"taskboard/static"
	"taskboard/ui/page"

	"github.com/a-h/templ"
)

// MemoryStorePath selects the in-memory task store.
const MemoryStorePath = ":memory:"

type Options struct {
	Config *config.Config
	// Repo overrides the store built from Config.Store.
	Repo   task.Repo
	Logger *slog.Logger
}

// NewRepo builds the task store described by cfg. The memory store is seeded
// from cfg.TemplatePath when one is set.
func NewRepo(cfg config.Store) (task.Repo, error) {
	if strings.TrimSpace(cfg.Path) == MemoryStorePath {
		repo := task.NewMemoryRepo()
		if tp := strings.TrimSpace(cfg.TemplatePath); tp != "" {
			b, err := os.ReadFile(tp)
			if err != nil {
				return nil, fmt.Errorf("read template: %w", err)
			}
			if err := repo.Seed(b); err != nil {
				return nil, err
			}
		}
		return repo, nil
	}
	repo, err := task.NewFileRepo(cfg.Path, cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	return repo, nil
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Repo == nil {
		repo, err := NewRepo(opts.Config.Store)
		if err != nil {
			return nil, err
		}
		opts.Repo = repo
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "taskboard",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := opts.Repo.List(); err != nil {
			opts.Logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "task storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "taskboard",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	taskHandler := task.NewHandler(opts.Repo)
	taskHandler.SetLogger(opts.Logger)
	mux.HandleFunc("/tasks", taskHandler.TasksRoot)
	mux.HandleFunc("/tasks/", taskHandler.TasksSub)
	mux.HandleFunc("/stats", taskHandler.Stats)

	if opts.Config.Static.Enabled {
		mux.Handle("/", staticHandler(opts.Config.Static.Dir, opts.Repo, opts.Logger))
	}

	return httpmw.Chain(
		mux,
		httpmw.WithRequestID,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRecover(opts.Logger),
	), nil
}

// staticHandler serves the browser UI from dir. When dir does not exist the
// board is rendered server-side at "/" with its embedded assets beside it.
func staticHandler(dir string, repo task.Repo, logger *slog.Logger) http.Handler {
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		return http.FileServer(http.Dir(dir))
	}
	logger.Info("static dir not found, rendering board page", "dir", dir)

	board := templ.Handler(page.BoardPage(repo, time.Now),
		templ.WithErrorHandler(func(_ *http.Request, err error) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Error("render board page", "error", err)
				http.Error(w, "task storage unavailable", http.StatusInternalServerError)
			})
		}),
	)
	assets := http.FileServer(http.FS(staticfiles.EmbeddedFS()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			board.ServeHTTP(w, r)
			return
		}
		assets.ServeHTTP(w, r)
	})
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, handler http.Handler, addr string, logger *slog.Logger) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return Serve(ctx, handler, ln, logger)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, handler http.Handler, ln net.Listener, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
