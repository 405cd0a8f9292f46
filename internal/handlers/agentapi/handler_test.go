package agentapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshanized/ERPCT/internal/candidates"
	"github.com/eshanized/ERPCT/internal/coordinator"
	"github.com/eshanized/ERPCT/internal/handlers/agentapi"
	"github.com/eshanized/ERPCT/internal/middleware"
	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/internal/routes"
)

func newTestServer(t *testing.T, cfg coordinator.Config) (*httptest.Server, *coordinator.Coordinator) {
	t.Helper()
	stream := candidates.New(
		candidates.SliceSource{"admin"},
		candidates.SliceSource{"a", "b", "c", "d"},
		candidates.UsernameFirst,
	)
	c := coordinator.New(cfg, stream, nil)
	tokens := middleware.NewTokenService("handler-test-secret", time.Hour)
	server := httptest.NewServer(routes.Setup(agentapi.NewHandler(c, tokens), tokens))
	t.Cleanup(server.Close)
	return server, c
}

func registerWorker(t *testing.T, server *httptest.Server, authKey string) models.RegisterResponse {
	t.Helper()
	body, err := json.Marshal(models.RegisterRequest{Name: "w1", ThreadCapacity: 4})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/agent/register", bytes.NewReader(body))
	require.NoError(t, err)
	if authKey != "" {
		req.Header.Set("Authorization", "Bearer "+authKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.RegisterResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEqual(t, uuid.Nil, out.WorkerID)
	require.NotEmpty(t, out.Token)
	return out
}

func authedRequest(t *testing.T, method, url, token string, payload interface{}) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestRegisterRejectsBadKey(t *testing.T) {
	server, _ := newTestServer(t, coordinator.Config{AuthKey: "shared-key"})

	body, _ := json.Marshal(models.RegisterRequest{Name: "w1"})
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/agent/register", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWorkRequiresSessionToken(t *testing.T) {
	server, _ := newTestServer(t, coordinator.Config{})

	resp, err := http.Get(server.URL + "/api/agent/work")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWorkLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(t, coordinator.Config{AuthKey: "shared-key", ChunkSize: 4})
	session := registerWorker(t, server, "shared-key")

	// First request gets the whole stream in one chunk.
	resp := authedRequest(t, http.MethodGet, server.URL+"/api/agent/work", session.Token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload models.ChunkPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Pairs, 4)
	assert.Equal(t, "admin", payload.Username)
	assert.Equal(t, []string{"a", "b", "c", "d"}, payload.Passwords)

	// Submit results for the chunk.
	results := make([]models.AttemptResult, len(payload.Pairs))
	for i, pair := range payload.Pairs {
		results[i] = models.AttemptResult{Pair: pair, Outcome: models.OutcomeAuthFailure}
	}
	resp = authedRequest(t, http.MethodPost, server.URL+"/api/agent/results", session.Token,
		models.SubmitResultsRequest{ChunkID: payload.ChunkID, Results: results})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack models.SubmitResultsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.True(t, ack.Accepted)
	assert.False(t, ack.Halt)

	// Stream exhausted: no more work.
	resp = authedRequest(t, http.MethodGet, server.URL+"/api/agent/work", session.Token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSubmitResultsSignalsHalt(t *testing.T) {
	server, c := newTestServer(t, coordinator.Config{ChunkSize: 4, StopOnFirst: true})
	session := registerWorker(t, server, "")

	resp := authedRequest(t, http.MethodGet, server.URL+"/api/agent/work", session.Token, nil)
	var payload models.ChunkPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()

	results := []models.AttemptResult{
		{Pair: payload.Pairs[0], Outcome: models.OutcomeSuccess},
	}
	resp = authedRequest(t, http.MethodPost, server.URL+"/api/agent/results", session.Token,
		models.SubmitResultsRequest{ChunkID: payload.ChunkID, Results: results})
	defer resp.Body.Close()

	var ack models.SubmitResultsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.True(t, ack.Accepted)
	assert.True(t, ack.Halt)
	assert.True(t, c.Halted())
}

func TestHeartbeatEndpoint(t *testing.T) {
	server, _ := newTestServer(t, coordinator.Config{})
	session := registerWorker(t, server, "")

	resp := authedRequest(t, http.MethodPost, server.URL+"/api/agent/heartbeat", session.Token,
		models.HeartbeatMessage{Type: "heartbeat", WorkerID: session.WorkerID})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWebSocketHeartbeatChannel(t *testing.T) {
	server, _ := newTestServer(t, coordinator.Config{})
	session := registerWorker(t, server, "")

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/agent"
	header := http.Header{"Authorization": []string{"Bearer " + session.Token}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.NoError(t, conn.WriteJSON(models.HeartbeatMessage{
		Type: "heartbeat", WorkerID: session.WorkerID, Timestamp: time.Now(),
	}))

	var ack map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "heartbeat_ack", ack["type"])
	assert.Equal(t, false, ack["halt"])
}
