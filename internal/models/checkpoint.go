package models

import (
	"fmt"
	"time"
)

// CheckpointVersion is the current snapshot format version. Loaders accept
// any version up to this one and reject newer formats.
const CheckpointVersion = 1

// StreamCursor marks a resumable position in the candidate stream.
type StreamCursor struct {
	UsernameIndex int64 `json:"username_index"`
	PasswordIndex int64 `json:"password_index"`
	// Linear is the flat pair index; the next chunk created covers pairs
	// starting here.
	Linear int64 `json:"linear"`
}

// ChunkRange records one chunk's identity and stream coverage inside a
// snapshot, so outstanding chunks can be rebuilt on resume without
// re-deriving completed work.
type ChunkRange struct {
	ID          int64 `json:"id"`
	StreamStart int64 `json:"stream_start"`
	StreamEnd   int64 `json:"stream_end"`
	Completed   bool  `json:"completed"`
}

// CheckpointSnapshot is a persisted, monotonic snapshot of attack progress.
// A later snapshot never regresses the cursor or drops completed chunk IDs.
type CheckpointSnapshot struct {
	Version   int               `json:"version"`
	Target    string            `json:"target"`
	Cursor    StreamCursor      `json:"cursor"`
	Chunks    []ChunkRange      `json:"chunks"`
	Found     []FoundCredential `json:"found_credentials"`
	Timestamp time.Time         `json:"timestamp"`
}

// CompletedChunkIDs returns the IDs of all chunks marked completed.
func (s *CheckpointSnapshot) CompletedChunkIDs() []int64 {
	var ids []int64
	for _, c := range s.Chunks {
		if c.Completed {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Validate checks structural invariants before a snapshot is trusted on
// resume. A snapshot that fails validation is treated as corrupt.
func (s *CheckpointSnapshot) Validate() error {
	if s.Version <= 0 || s.Version > CheckpointVersion {
		return fmt.Errorf("unsupported checkpoint version %d", s.Version)
	}
	seen := make(map[int64]struct{}, len(s.Chunks))
	for _, c := range s.Chunks {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate chunk id %d in checkpoint", c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.StreamEnd < c.StreamStart {
			return fmt.Errorf("chunk %d has inverted stream range [%d,%d)", c.ID, c.StreamStart, c.StreamEnd)
		}
		if c.StreamEnd > s.Cursor.Linear {
			return fmt.Errorf("chunk %d extends past cursor %d", c.ID, s.Cursor.Linear)
		}
	}
	return nil
}
