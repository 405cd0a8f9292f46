package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eshanized/ERPCT/internal/models"
)

// Client is the agent's HTTP client for the coordinator API. It holds the
// session token received at registration and presents it on every call.
type Client struct {
	baseURL string
	authKey string
	http    *http.Client

	mu       sync.RWMutex
	token    string
	workerID uuid.UUID
}

// NewClient creates a client for the coordinator at serverURL.
func NewClient(serverURL, authKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		authKey: authKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WorkerID returns the ID assigned at registration.
func (c *Client) WorkerID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workerID
}

// Register joins the attack and stores the returned session token.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/agent/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build registration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration rejected: %s", readError(resp))
	}

	var out models.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode registration response: %w", err)
	}

	c.mu.Lock()
	c.token = out.Token
	c.workerID = out.WorkerID
	c.mu.Unlock()
	return nil
}

// RequestWork fetches the next chunk. Returns nil when the coordinator
// has no work to hand out.
func (c *Client) RequestWork(ctx context.Context) (*models.ChunkPayload, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/agent/work", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload models.ChunkPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode chunk: %w", err)
		}
		return &payload, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("work request rejected: %s", readError(resp))
	}
}

// SubmitResults reports chunk results and returns the coordinator's
// acknowledgement.
func (c *Client) SubmitResults(ctx context.Context, req models.SubmitResultsRequest) (*models.SubmitResultsResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/agent/results", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("result submission rejected: %s", readError(resp))
	}

	var ack models.SubmitResultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("failed to decode acknowledgement: %w", err)
	}
	return &ack, nil
}

// Heartbeat sends a liveness signal over plain HTTP, the fallback when no
// websocket channel is open.
func (c *Client) Heartbeat(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/agent/heartbeat", models.HeartbeatMessage{
		Type:      "heartbeat",
		WorkerID:  c.WorkerID(),
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("heartbeat rejected: %s", readError(resp))
	}
	return nil
}

// DialHeartbeat opens the websocket heartbeat channel.
func (c *Client) DialHeartbeat(ctx context.Context) (*websocket.Conn, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws/agent"

	c.mu.RLock()
	header := http.Header{"Authorization": []string{"Bearer " + c.token}}
	c.mu.RUnlock()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, msg)
}
