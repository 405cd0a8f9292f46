package models

import (
	"time"

	"github.com/google/uuid"
)

// Worker state constants
const (
	WorkerStateRegistered   = "registered"
	WorkerStateActive       = "active"
	WorkerStateIdle         = "idle"
	WorkerStateDisconnected = "disconnected"
)

// WorkerHardware describes the execution capacity a worker reported at
// registration time.
type WorkerHardware struct {
	Hostname    string `json:"hostname"`
	CPUCount    int    `json:"cpu_count"`
	MemoryTotal uint64 `json:"memory_total"`
	Platform    string `json:"platform"`
}

// WorkerRecord tracks a registered worker inside the coordinator.
type WorkerRecord struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Address        string         `json:"address"`
	ThreadCapacity int            `json:"thread_capacity"`
	Hardware       WorkerHardware `json:"hardware"`
	State          string         `json:"state"`
	RegisteredAt   time.Time      `json:"registered_at"`
	LastHeartbeat  time.Time      `json:"last_heartbeat"`

	// ChunksCompleted and recent completion times feed adaptive sizing.
	ChunksCompleted int             `json:"chunks_completed"`
	RecentDurations []time.Duration `json:"-"`
	NextChunkSize   int             `json:"next_chunk_size"`
}

// Silent reports whether the worker has not heartbeated within timeout.
func (w *WorkerRecord) Silent(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.LastHeartbeat) > timeout
}

// ObserveCompletion records a chunk completion duration, keeping only the
// last few samples for adaptive sizing.
func (w *WorkerRecord) ObserveCompletion(d time.Duration, keep int) {
	w.ChunksCompleted++
	w.RecentDurations = append(w.RecentDurations, d)
	if len(w.RecentDurations) > keep {
		w.RecentDurations = w.RecentDurations[len(w.RecentDurations)-keep:]
	}
}

// AverageCompletion returns the mean of the retained completion durations,
// or zero when no completions have been observed yet.
func (w *WorkerRecord) AverageCompletion() time.Duration {
	if len(w.RecentDurations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range w.RecentDurations {
		total += d
	}
	return total / time.Duration(len(w.RecentDurations))
}
