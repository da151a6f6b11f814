package task

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/model"
)

const (
	msgNoTasks         = "No tasks found"
	msgNotFound        = "Task not found"
	msgNoTasksToEdit   = "No tasks found to edit."
	msgNoTasksToDelete = "No tasks found to delete."
	msgNotFoundDot     = "Task not found."
	msgUpdated         = "Task updated successfully!"
	msgDeleted         = "Task deleted successfully!"
)

type Handler struct {
	repo   Repo
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(repo Repo) *Handler {
	return &Handler{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
}

func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMsg(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"message": msg})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(out)
}

// writeRepoErr maps store errors to responses. noData and notFound are the
// messages for ErrNoData and ErrNotFound.
func (h *Handler) writeRepoErr(w http.ResponseWriter, r *http.Request, err error, noData, notFound string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeMsg(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, ErrNoData):
		writeMsg(w, http.StatusNotFound, noData)
	case errors.Is(err, ErrNotFound):
		writeMsg(w, http.StatusNotFound, notFound)
	default:
		h.logger.Error("task store failure",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeMsg(w, http.StatusInternalServerError, err.Error())
	}
}

// /tasks  (collection)
func (h *Handler) TasksRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ts, err := h.repo.List()
		if err != nil {
			h.writeRepoErr(w, r, err, msgNoTasks, msgNotFound)
			return
		}
		writeJSON(w, http.StatusOK, ts)
		return

	case http.MethodPost:
		var in model.TaskInput
		if err := decodeJSON(r, &in); err != nil {
			writeMsg(w, http.StatusBadRequest, "bad json")
			return
		}
		ts, err := h.repo.Create(in)
		if err != nil {
			h.writeRepoErr(w, r, err, msgNoTasks, msgNotFound)
			return
		}
		writeJSON(w, http.StatusCreated, ts)
		return

	default:
		writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
}

// /tasks/{id}
func (h *Handler) TasksSub(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/tasks/")
	tail = strings.Trim(tail, "/")
	if tail == "" {
		writeMsg(w, http.StatusNotFound, msgNotFound)
		return
	}

	parts := strings.Split(tail, "/")
	id := model.TaskID(parts[0])

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			rec, err := h.repo.Get(id)
			if err != nil {
				h.writeRepoErr(w, r, err, msgNoTasks, msgNotFound)
				return
			}
			writeJSON(w, http.StatusOK, rec)
			return

		case http.MethodPut:
			var p Patch
			if err := decodeJSON(r, &p); err != nil && !errors.Is(err, io.EOF) {
				writeMsg(w, http.StatusBadRequest, "bad json")
				return
			}
			rec, err := h.repo.Update(id, p)
			if err != nil {
				h.writeRepoErr(w, r, err, msgNoTasksToEdit, msgNotFoundDot)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"message": msgUpdated,
				"task":    rec,
			})
			return

		case http.MethodDelete:
			if err := h.repo.Delete(id); err != nil {
				h.writeRepoErr(w, r, err, msgNoTasksToDelete, msgNotFoundDot)
				return
			}
			writeMsg(w, http.StatusOK, msgDeleted)
			return

		default:
			writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
	}

	// /tasks/{id}/calendar.ics
	if len(parts) == 2 && parts[1] == "calendar.ics" {
		if r.Method != http.MethodGet {
			writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rec, err := h.repo.Get(id)
		if err != nil {
			h.writeRepoErr(w, r, err, msgNoTasks, msgNotFound)
			return
		}
		ics, err := BuildTaskCalendarICS(rec.Task, h.now())
		if err != nil {
			writeMsg(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": string(rec.ID) + ".ics",
		}))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(ics))
		return
	}

	writeMsg(w, http.StatusNotFound, "not found")
}

// /stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ts, err := h.repo.List()
	if err != nil {
		h.writeRepoErr(w, r, err, msgNoTasks, msgNotFound)
		return
	}
	writeJSON(w, http.StatusOK, Summarize(model.Tasks(ts), h.now()))
}
