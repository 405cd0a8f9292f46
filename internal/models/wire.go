package models

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is sent by a worker to join the attack. The shared
// registration key travels in the Authorization header, not the body.
type RegisterRequest struct {
	Name           string         `json:"name"`
	Address        string         `json:"address"`
	ThreadCapacity int            `json:"thread_capacity"`
	Hardware       WorkerHardware `json:"hardware"`
	Version        string         `json:"version"`
}

// RegisterResponse carries the assigned worker ID and the session token
// the worker must present on every subsequent call.
type RegisterResponse struct {
	WorkerID uuid.UUID `json:"worker_id"`
	Token    string    `json:"token"`
}

// TargetOptions carries per-attempt tuning the worker applies locally.
type TargetOptions struct {
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxRetries     int     `json:"max_retries"`
	DelaySeconds   float64 `json:"delay_seconds"`
	DelayJitter    float64 `json:"delay_jitter"`
	StopOnFirst    bool    `json:"stop_on_first"`
}

// ChunkPayload is the wire form of an assigned chunk. When every pair in
// the chunk shares one username the compact Username+Passwords form is
// populated; Pairs is always authoritative.
type ChunkPayload struct {
	ChunkID   int64            `json:"chunk_id"`
	Target    string           `json:"target"`
	Protocol  string           `json:"protocol"`
	Port      int              `json:"port"`
	Username  string           `json:"username,omitempty"`
	Passwords []string         `json:"passwords,omitempty"`
	Pairs     []CredentialPair `json:"pairs"`
	Options   TargetOptions    `json:"options"`
}

// NewChunkPayload builds the wire form of a chunk.
func NewChunkPayload(c *Chunk, opts TargetOptions) *ChunkPayload {
	p := &ChunkPayload{
		ChunkID:  c.ID,
		Target:   c.Target,
		Protocol: c.Protocol,
		Port:     c.Port,
		Pairs:    c.Pairs,
		Options:  opts,
	}
	if name, ok := c.UniformUsername(); ok {
		p.Username = name
		p.Passwords = make([]string, len(c.Pairs))
		for i, pair := range c.Pairs {
			p.Passwords[i] = pair.Password
		}
	}
	return p
}

// SubmitResultsRequest reports the outcome of every pair in a chunk.
type SubmitResultsRequest struct {
	ChunkID int64           `json:"chunk_id"`
	Results []AttemptResult `json:"results"`
}

// SubmitResultsResponse acknowledges a result submission. Halt tells the
// worker to stop requesting work.
type SubmitResultsResponse struct {
	Accepted bool `json:"accepted"`
	Halt     bool `json:"halt"`
}

// HeartbeatMessage is exchanged on the websocket heartbeat channel and
// accepted on the plain HTTP heartbeat endpoint.
type HeartbeatMessage struct {
	Type      string    `json:"type"`
	WorkerID  uuid.UUID `json:"worker_id"`
	Timestamp time.Time `json:"timestamp"`
}
