package server

import (
	"net/http"

	"github.com/rsmidt/ptyhost/internal/api"
	"github.com/rsmidt/ptyhost/internal/db"
	"github.com/rsmidt/ptyhost/internal/models"
	"github.com/rsmidt/ptyhost/internal/runner"
	"github.com/rsmidt/ptyhost/internal/ws"
)

type Server struct {
	mux      *http.ServeMux
	registry *runner.Registry
	shells   []models.ShellStatus
}

func New(registry *runner.Registry, store *db.Store, shells []models.ShellStatus) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		shells:   shells,
	}
	s.routes(store)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes(store *db.Store) {
	runs := api.NewRunsHandler(s.registry, store)
	wsHandler := ws.NewHandler(s.registry)

	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Runs
	s.mux.HandleFunc("POST /api/runs", runs.HandleCreate)
	s.mux.HandleFunc("GET /api/runs", runs.HandleList)
	s.mux.HandleFunc("GET /api/runs/active", runs.HandleListActive)
	s.mux.HandleFunc("GET /api/runs/{id}", runs.HandleGet)
	s.mux.HandleFunc("POST /api/runs/{id}/input", runs.HandleInput)
	s.mux.HandleFunc("POST /api/runs/{id}/resize", runs.HandleResize)
	s.mux.HandleFunc("POST /api/runs/{id}/kill", runs.HandleKill)

	// WebSocket attach
	s.mux.Handle("GET /ws/run/{id}", wsHandler)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := models.HealthResponse{
		Status: "ok",
		Shells: s.shells,
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
