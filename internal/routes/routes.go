// Package routes wires the coordinator's HTTP API.
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/eshanized/ERPCT/internal/handlers/agentapi"
	"github.com/eshanized/ERPCT/internal/middleware"
	"github.com/eshanized/ERPCT/pkg/debug"
)

// Setup builds the router: an open registration endpoint, a token-guarded
// agent API, and the websocket heartbeat channel.
func Setup(handler *agentapi.Handler, tokens *middleware.TokenService) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LogRequests)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/agent").Subrouter()
	api.HandleFunc("/register", handler.Register).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(tokens.RequireWorker)
	protected.HandleFunc("/work", handler.RequestWork).Methods(http.MethodGet)
	protected.HandleFunc("/results", handler.SubmitResults).Methods(http.MethodPost)
	protected.HandleFunc("/heartbeat", handler.Heartbeat).Methods(http.MethodPost)

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(tokens.RequireWorker)
	ws.HandleFunc("/agent", handler.WebSocket).Methods(http.MethodGet)

	debug.Info("Agent API routes configured")
	return router
}
