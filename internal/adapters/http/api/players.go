package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/irwin/internal/domain/model"
)

// PlayersHandler queues players on the in-memory feed.
type PlayersHandler struct {
	enqueuer Enqueuer
	now      func() time.Time
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(enqueuer Enqueuer) *PlayersHandler {
	return &PlayersHandler{enqueuer: enqueuer, now: time.Now}
}

type enqueueResponse struct {
	Status   string    `json:"status"`
	PlayerID string    `json:"playerId"`
	QueuedAt time.Time `json:"queuedAt"`
}

// HandleEnqueue handles POST /players/{id} requests.
func (h *PlayersHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if h.enqueuer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
		return
	}

	// Extract path parameter after /players/
	id := strings.TrimPrefix(r.URL.Path, "/players/")
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing player id", ErrBadRequest))
		return
	}

	job := model.Job{PlayerID: id, QueuedAt: h.now().UTC()}
	if !h.enqueuer.Enqueue(r.Context(), job) {
		if h.enqueuer.Claimed(r.Context(), id) {
			writeError(w, http.StatusConflict, "already_queued", ErrDuplicate)
			return
		}
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{Status: "queued", PlayerID: id, QueuedAt: job.QueuedAt})
}
