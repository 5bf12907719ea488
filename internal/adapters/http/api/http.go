// Package api serves the worker's operational HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/irwin/internal/domain/model"
)

// Enqueuer accepts players for analysis. It is only available when the
// worker reads from its in-memory feed.
type Enqueuer interface {
	// Enqueue queues a job. Returns false if the player is already queued
	// or being processed, or the queue is full or closed.
	Enqueue(ctx context.Context, job model.Job) bool
	// Claimed reports whether the player is already queued or being processed.
	Claimed(ctx context.Context, playerID string) bool
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the operational API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	playersHandler *PlayersHandler
}

// NewServer creates a new API server with all handlers. enqueuer and pinger
// may be nil.
func NewServer(statsProvider StatsProvider, enqueuer Enqueuer, pinger Pinger) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(pinger),
		statsHandler:   NewStatsHandler(statsProvider),
		playersHandler: NewPlayersHandler(enqueuer),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/players/", MetricsMiddleware(s.playersHandler.HandleEnqueue, "players"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
