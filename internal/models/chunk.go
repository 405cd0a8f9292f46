package models

import (
	"time"

	"github.com/google/uuid"
)

// Chunk state constants
const (
	ChunkStatePending    = "pending"
	ChunkStateAssigned   = "assigned"
	ChunkStateInProgress = "in_progress"
	ChunkStateCompleted  = "completed"
)

// Chunk is a bounded, uniquely identified slice of the candidate stream.
// A chunk is assigned to at most one worker at a time. IDs are monotonic
// and never reused; StreamStart/StreamEnd record the half-open range of
// stream indices the chunk covers so the full stream is partitioned
// exactly once across all chunks.
type Chunk struct {
	ID          int64            `json:"id"`
	Target      string           `json:"target"`
	Protocol    string           `json:"protocol"`
	Port        int              `json:"port"`
	Pairs       []CredentialPair `json:"pairs"`
	StreamStart int64            `json:"stream_start"`
	StreamEnd   int64            `json:"stream_end"`
	State       string           `json:"state"`
	AssignedTo  uuid.UUID        `json:"assigned_to,omitempty"`
	AssignedAt  time.Time        `json:"assigned_at,omitempty"`
	Deadline    time.Time        `json:"deadline,omitempty"`
}

// Size returns the number of credential pairs in the chunk.
func (c *Chunk) Size() int {
	return len(c.Pairs)
}

// Expired reports whether the chunk's execution deadline has passed.
func (c *Chunk) Expired(now time.Time) bool {
	return !c.Deadline.IsZero() && now.After(c.Deadline)
}

// UniformUsername returns the shared username and true when every pair in
// the chunk carries the same username. The wire payload uses the compact
// username+passwords form in that case.
func (c *Chunk) UniformUsername() (string, bool) {
	if len(c.Pairs) == 0 {
		return "", false
	}
	name := c.Pairs[0].Username
	for _, p := range c.Pairs[1:] {
		if p.Username != name {
			return "", false
		}
	}
	return name, true
}
