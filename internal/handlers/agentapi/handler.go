// Package agentapi implements the coordinator's HTTP and websocket API
// for worker agents: registration, work assignment, result submission and
// heartbeats.
package agentapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/eshanized/ERPCT/internal/coordinator"
	"github.com/eshanized/ERPCT/internal/middleware"
	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/pkg/debug"
)

// Handler serves the agent-facing API.
type Handler struct {
	coordinator *coordinator.Coordinator
	tokens      *middleware.TokenService
	upgrader    websocket.Upgrader
}

// NewHandler creates the agent API handler.
func NewHandler(c *coordinator.Coordinator, tokens *middleware.TokenService) *Handler {
	return &Handler{
		coordinator: c,
		tokens:      tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Register handles POST /api/agent/register. The shared registration key
// travels as a bearer token; on success the worker receives its ID and a
// session token for subsequent calls.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Address == "" {
		req.Address = r.RemoteAddr
	}

	worker, err := h.coordinator.Register(req, bearerToken(r))
	if err != nil {
		if errors.Is(err, coordinator.ErrInvalidAuthKey) {
			http.Error(w, "invalid registration key", http.StatusUnauthorized)
			return
		}
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	token, err := h.tokens.Issue(worker.ID)
	if err != nil {
		debug.Error("Failed to issue session token for %s: %v", worker.ID, err)
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.RegisterResponse{WorkerID: worker.ID, Token: token})
}

// RequestWork handles GET /api/agent/work. Responds 204 when no work is
// available (exhausted stream or halted attack).
func (h *Handler) RequestWork(w http.ResponseWriter, r *http.Request) {
	workerID, ok := middleware.WorkerID(r.Context())
	if !ok {
		http.Error(w, "missing authorization", http.StatusUnauthorized)
		return
	}

	chunk, err := h.coordinator.RequestWork(workerID)
	if err != nil {
		if errors.Is(err, coordinator.ErrUnknownWorker) {
			http.Error(w, "unknown worker", http.StatusUnauthorized)
			return
		}
		http.Error(w, "failed to assign work", http.StatusInternalServerError)
		return
	}
	if chunk == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, models.NewChunkPayload(chunk, h.coordinator.Options()))
}

// SubmitResults handles POST /api/agent/results. Stale submissions (the
// chunk was requeued first) are acknowledged but not accepted, so the
// worker moves on instead of retrying.
func (h *Handler) SubmitResults(w http.ResponseWriter, r *http.Request) {
	workerID, ok := middleware.WorkerID(r.Context())
	if !ok {
		http.Error(w, "missing authorization", http.StatusUnauthorized)
		return
	}

	var req models.SubmitResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	halt, err := h.coordinator.SubmitResult(workerID, req.ChunkID, req.Results)
	if err != nil {
		if errors.Is(err, coordinator.ErrUnknownWorker) {
			http.Error(w, "unknown worker", http.StatusUnauthorized)
			return
		}
		if errors.Is(err, coordinator.ErrStaleSubmission) {
			writeJSON(w, http.StatusOK, models.SubmitResultsResponse{Accepted: false, Halt: halt})
			return
		}
		http.Error(w, "failed to record results", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.SubmitResultsResponse{Accepted: true, Halt: halt})
}

// Heartbeat handles POST /api/agent/heartbeat, the plain HTTP fallback
// for workers without a websocket connection.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	workerID, ok := middleware.WorkerID(r.Context())
	if !ok {
		http.Error(w, "missing authorization", http.StatusUnauthorized)
		return
	}

	if err := h.coordinator.Heartbeat(workerID); err != nil {
		http.Error(w, "unknown worker", http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebSocket handles GET /ws/agent: a persistent heartbeat channel. The
// worker sends heartbeat messages; each acknowledgement carries the halt
// flag so a stop-on-first halt reaches workers between work requests.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	workerID, ok := middleware.WorkerID(r.Context())
	if !ok {
		http.Error(w, "missing authorization", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Warning("Websocket upgrade failed for %s: %v", workerID, err)
		return
	}
	defer conn.Close()

	debug.Info("Websocket heartbeat channel open for worker %s", workerID)
	for {
		var msg models.HeartbeatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			debug.Debug("Websocket closed for worker %s: %v", workerID, err)
			return
		}

		if err := h.coordinator.Heartbeat(workerID); err != nil {
			debug.Warning("Heartbeat from unknown worker %s", workerID)
			return
		}

		ack := map[string]interface{}{
			"type": "heartbeat_ack",
			"halt": h.coordinator.Halted(),
		}
		if err := conn.WriteJSON(ack); err != nil {
			debug.Debug("Websocket write failed for worker %s: %v", workerID, err)
			return
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error("Failed to encode response: %v", err)
	}
}
