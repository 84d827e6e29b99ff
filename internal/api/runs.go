package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rsmidt/ptyhost/internal/db"
	"github.com/rsmidt/ptyhost/internal/engine"
	"github.com/rsmidt/ptyhost/internal/models"
	"github.com/rsmidt/ptyhost/internal/runner"
)

type RunsHandler struct {
	registry *runner.Registry
	store    *db.Store // nil disables history endpoints
}

func NewRunsHandler(registry *runner.Registry, store *db.Store) *RunsHandler {
	return &RunsHandler{registry: registry, store: store}
}

// HandleCreate starts a run.
func (h *RunsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Command == "" {
		WriteError(w, http.StatusBadRequest, "command is required")
		return
	}

	run, err := h.registry.Start(req)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, run.Snapshot())
}

// HandleListActive lists live runs.
func (h *RunsHandler) HandleListActive(w http.ResponseWriter, _ *http.Request) {
	runs := []models.Run{}
	for _, run := range h.registry.List() {
		runs = append(runs, run.Snapshot())
	}
	WriteJSON(w, http.StatusOK, runs)
}

// HandleList lists run history, newest first.
func (h *RunsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	if h.store == nil {
		WriteJSON(w, http.StatusOK, []models.Run{})
		return
	}
	runs, err := h.store.ListRuns(100)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

// HandleGet returns one run, live or historical.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if run := h.registry.Get(id); run != nil {
		WriteJSON(w, http.StatusOK, run.Snapshot())
		return
	}
	if h.store != nil {
		run, err := h.store.GetRun(id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if run != nil {
			WriteJSON(w, http.StatusOK, run)
			return
		}
	}
	WriteError(w, http.StatusNotFound, "run not found")
}

// HandleInput writes raw input to a live run's PTY.
func (h *RunsHandler) HandleInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.control(w, h.registry.Write(r.PathValue("id"), body.Data))
}

// HandleResize resizes a live run's terminal. Out-of-range sizes are
// clamped, never rejected.
func (h *RunsHandler) HandleResize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cols uint16 `json:"cols"`
		Rows uint16 `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.control(w, h.registry.Resize(r.PathValue("id"), body.Cols, body.Rows))
}

// HandleKill requests termination of a live run.
func (h *RunsHandler) HandleKill(w http.ResponseWriter, r *http.Request) {
	h.control(w, h.registry.Kill(r.PathValue("id")))
}

func (h *RunsHandler) control(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, runner.ErrRunNotFound), errors.Is(err, engine.ErrNotRunning):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrControlBacklog):
		WriteError(w, http.StatusTooManyRequests, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
