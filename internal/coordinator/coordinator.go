// Package coordinator implements the distribution coordinator: it slices
// the candidate stream into chunks, assigns them to registered workers,
// tracks worker liveness, aggregates results, and checkpoints progress.
package coordinator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshanized/ERPCT/internal/candidates"
	"github.com/eshanized/ERPCT/internal/checkpoint"
	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/pkg/debug"
)

var (
	// ErrInvalidAuthKey rejects a registration with a bad key.
	ErrInvalidAuthKey = errors.New("invalid registration key")
	// ErrUnknownWorker rejects calls from unregistered worker IDs.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrStaleSubmission rejects a result for a chunk the worker no longer
	// owns, typically after a timeout-triggered requeue won the race.
	ErrStaleSubmission = errors.New("stale result submission")
)

// Config tunes the coordinator for one attack.
type Config struct {
	Target   string
	Protocol string
	Port     int

	// ChunkSize is the base number of pairs per chunk.
	ChunkSize int
	// MinChunkSize and MaxChunkSize clamp adaptive sizing.
	MinChunkSize int
	MaxChunkSize int
	// TargetChunkDuration enables adaptive per-worker sizing when set:
	// next = clamp(base * target/observed, min, max).
	TargetChunkDuration time.Duration
	// CompletionSamples is how many recent completions feed the average.
	CompletionSamples int

	// WorkerTimeout bounds worker silence before its chunks are requeued.
	WorkerTimeout time.Duration
	// StopOnFirst halts assignment after the first confirmed credential.
	StopOnFirst bool
	// AuthKey, when set, must accompany every registration.
	AuthKey string

	// Options is forwarded to workers with every chunk.
	Options models.TargetOptions
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = 50
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 5000
	}
	if c.CompletionSamples <= 0 {
		c.CompletionSamples = 5
	}
	if c.WorkerTimeout <= 0 {
		c.WorkerTimeout = 60 * time.Second
	}
	return c
}

// Coordinator owns the chunk queue and worker registry. A single mutex
// serializes every state transition so chunk lifecycle changes stay
// atomic.
type Coordinator struct {
	cfg    Config
	stream *candidates.Stream
	store  checkpoint.Store

	mu          sync.Mutex
	workers     map[uuid.UUID]*models.WorkerRecord
	chunks      map[int64]*models.Chunk
	pending     []int64
	nextChunkID int64
	halted      bool
	found       []models.FoundCredential
	stats       models.AttackStats
}

// New creates a coordinator over a candidate stream. store may be nil when
// checkpointing is disabled.
func New(cfg Config, stream *candidates.Stream, store checkpoint.Store) *Coordinator {
	return &Coordinator{
		cfg:         cfg.withDefaults(),
		stream:      stream,
		store:       store,
		workers:     make(map[uuid.UUID]*models.WorkerRecord),
		chunks:      make(map[int64]*models.Chunk),
		nextChunkID: 1,
		stats:       models.AttackStats{StartedAt: time.Now()},
	}
}

// Resume creates a coordinator restored from a persisted snapshot:
// completed chunks are never reissued, outstanding chunks are rebuilt as
// pending, and the stream cursor is restored for chunks not yet created.
func Resume(cfg Config, stream *candidates.Stream, store checkpoint.Store, snapshot *models.CheckpointSnapshot) (*Coordinator, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrCorrupt, err)
	}

	c := New(cfg, stream, store)
	c.found = append(c.found, snapshot.Found...)

	for _, r := range snapshot.Chunks {
		if r.ID >= c.nextChunkID {
			c.nextChunkID = r.ID + 1
		}
		chunk := &models.Chunk{
			ID:          r.ID,
			Target:      c.cfg.Target,
			Protocol:    c.cfg.Protocol,
			Port:        c.cfg.Port,
			StreamStart: r.StreamStart,
			StreamEnd:   r.StreamEnd,
		}
		if r.Completed {
			chunk.State = models.ChunkStateCompleted
			c.stats.CompletedChunks++
		} else {
			chunk.State = models.ChunkStatePending
			chunk.Pairs = c.rebuildPairs(r.StreamStart, r.StreamEnd)
			c.pending = append(c.pending, r.ID)
		}
		c.chunks[chunk.ID] = chunk
	}

	stream.SeekLinear(snapshot.Cursor.Linear)

	debug.Info("Coordinator resumed from checkpoint: %d completed, %d requeued, cursor %d",
		c.stats.CompletedChunks, len(c.pending), snapshot.Cursor.Linear)
	return c, nil
}

// rebuildPairs re-derives the pairs for a stream index range. Only used on
// resume, before any worker traffic, so borrowing the stream cursor is
// safe.
func (c *Coordinator) rebuildPairs(start, end int64) []models.CredentialPair {
	c.stream.SeekLinear(start)
	var pairs []models.CredentialPair
	for {
		pair, ok := c.stream.Next()
		if !ok || pair.Index >= end {
			return pairs
		}
		pairs = append(pairs, pair)
	}
}

// Register validates the shared key and creates a worker record.
func (c *Coordinator) Register(info models.RegisterRequest, authKey string) (*models.WorkerRecord, error) {
	if c.cfg.AuthKey != "" && authKey != c.cfg.AuthKey {
		debug.Warning("Rejected registration from %s: invalid key", info.Address)
		return nil, ErrInvalidAuthKey
	}

	worker := &models.WorkerRecord{
		ID:             uuid.New(),
		Name:           info.Name,
		Address:        info.Address,
		ThreadCapacity: info.ThreadCapacity,
		Hardware:       info.Hardware,
		State:          models.WorkerStateRegistered,
		RegisteredAt:   time.Now(),
		LastHeartbeat:  time.Now(),
		NextChunkSize:  c.cfg.ChunkSize,
	}

	c.mu.Lock()
	c.workers[worker.ID] = worker
	count := len(c.workers)
	c.mu.Unlock()

	debug.Log("Worker registered", map[string]interface{}{
		"worker_id": worker.ID,
		"name":      worker.Name,
		"address":   worker.Address,
		"threads":   worker.ThreadCapacity,
		"workers":   count,
	})
	return worker, nil
}

// RequestWork pops the next pending chunk for a worker, transitioning it
// to in_progress with a fresh deadline. Returns nil when the stream is
// exhausted or the attack is halted.
func (c *Coordinator) RequestWork(workerID uuid.UUID) (*models.Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	worker, exists := c.workers[workerID]
	if !exists {
		return nil, ErrUnknownWorker
	}
	worker.LastHeartbeat = time.Now()

	if c.halted {
		worker.State = models.WorkerStateIdle
		return nil, nil
	}

	chunk := c.popPendingLocked(worker)
	if chunk == nil {
		worker.State = models.WorkerStateIdle
		return nil, nil
	}

	now := time.Now()
	chunk.State = models.ChunkStateAssigned
	chunk.AssignedTo = workerID
	chunk.AssignedAt = now
	chunk.Deadline = now.Add(c.cfg.WorkerTimeout)
	chunk.State = models.ChunkStateInProgress
	worker.State = models.WorkerStateActive

	debug.Debug("Chunk %d (%d pairs) assigned to worker %s, deadline %s",
		chunk.ID, chunk.Size(), workerID, chunk.Deadline.Format(time.RFC3339))
	return chunk, nil
}

// popPendingLocked returns the next pending chunk, slicing a new one from
// the stream when the requeue backlog is empty.
func (c *Coordinator) popPendingLocked(worker *models.WorkerRecord) *models.Chunk {
	for len(c.pending) > 0 {
		id := c.pending[0]
		c.pending = c.pending[1:]
		chunk := c.chunks[id]
		if chunk != nil && chunk.State == models.ChunkStatePending {
			return chunk
		}
	}
	return c.sliceChunkLocked(c.chunkSizeFor(worker))
}

// sliceChunkLocked pulls up to size pairs from the stream into a new
// pending chunk. Chunk IDs are monotonic and never reused; the slice
// records its stream range so every pair belongs to exactly one chunk.
func (c *Coordinator) sliceChunkLocked(size int) *models.Chunk {
	start := c.stream.LinearIndex()
	var pairs []models.CredentialPair
	for len(pairs) < size {
		pair, ok := c.stream.Next()
		if !ok {
			break
		}
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		return nil
	}

	chunk := &models.Chunk{
		ID:          c.nextChunkID,
		Target:      c.cfg.Target,
		Protocol:    c.cfg.Protocol,
		Port:        c.cfg.Port,
		Pairs:       pairs,
		StreamStart: start,
		StreamEnd:   c.stream.LinearIndex(),
		State:       models.ChunkStatePending,
	}
	c.nextChunkID++
	c.chunks[chunk.ID] = chunk
	return chunk
}

// SubmitResult validates that the chunk belongs to the worker and is still
// in progress, marks it completed, and merges results into the aggregate.
// First writer wins: a submission racing a timeout requeue is discarded
// with ErrStaleSubmission. Returns true when the attack is (now) halted.
func (c *Coordinator) SubmitResult(workerID uuid.UUID, chunkID int64, results []models.AttemptResult) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	worker, exists := c.workers[workerID]
	if !exists {
		return c.halted, ErrUnknownWorker
	}
	worker.LastHeartbeat = time.Now()

	chunk, exists := c.chunks[chunkID]
	if !exists {
		return c.halted, fmt.Errorf("%w: chunk %d does not exist", ErrStaleSubmission, chunkID)
	}
	if chunk.State != models.ChunkStateInProgress || chunk.AssignedTo != workerID {
		debug.Warning("Discarding stale result for chunk %d from worker %s (state=%s, owner=%s)",
			chunkID, workerID, chunk.State, chunk.AssignedTo)
		return c.halted, fmt.Errorf("%w: chunk %d is %s", ErrStaleSubmission, chunkID, chunk.State)
	}

	chunk.State = models.ChunkStateCompleted
	worker.ObserveCompletion(time.Since(chunk.AssignedAt), c.cfg.CompletionSamples)
	worker.NextChunkSize = c.chunkSizeFor(worker)
	worker.State = models.WorkerStateIdle

	c.mergeResultsLocked(results)
	c.stats.CompletedChunks++

	debug.Debug("Chunk %d completed by worker %s (%d results)", chunkID, workerID, len(results))
	return c.halted, nil
}

func (c *Coordinator) mergeResultsLocked(results []models.AttemptResult) {
	for _, r := range results {
		c.stats.TotalAttempts++
		switch r.Outcome {
		case models.OutcomeSuccess:
			c.stats.SuccessCount++
			c.found = append(c.found, models.FoundCredential{
				Username: r.Pair.Username,
				Password: r.Pair.Password,
				Target:   c.cfg.Target,
				FoundAt:  time.Now(),
			})
			if c.cfg.StopOnFirst && !c.halted {
				c.halted = true
				debug.Info("Credential found (%s); halting further assignment", r.Pair.Username)
			}
		case models.OutcomeAuthFailure:
			c.stats.AuthFailures++
		case models.OutcomeConnectionError, models.OutcomeTimeout:
			c.stats.ConnectionErrors++
		}
	}
}

// Heartbeat updates the worker's liveness timestamp. A heartbeat from a
// worker previously marked disconnected brings it back as idle.
func (c *Coordinator) Heartbeat(workerID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	worker, exists := c.workers[workerID]
	if !exists {
		return ErrUnknownWorker
	}
	worker.LastHeartbeat = time.Now()
	if worker.State == models.WorkerStateDisconnected {
		worker.State = models.WorkerStateIdle
		debug.Info("Worker %s reconnected", workerID)
	}
	return nil
}

// ReconcileLiveness scans worker records and requeues the in-progress
// chunks of any worker silent past the timeout. The chunk-state
// check-and-set guarantees each chunk is requeued exactly once, however
// many times the sweep runs before the requeue is observed.
func (c *Coordinator) ReconcileLiveness(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	requeued := 0
	for _, worker := range c.workers {
		if worker.State == models.WorkerStateDisconnected {
			continue
		}
		if !worker.Silent(now, c.cfg.WorkerTimeout) {
			continue
		}

		worker.State = models.WorkerStateDisconnected
		debug.Warning("Worker %s (%s) timed out, last heartbeat %s",
			worker.ID, worker.Name, worker.LastHeartbeat.Format(time.RFC3339))

		for _, chunk := range c.chunks {
			if chunk.AssignedTo == worker.ID && chunk.State == models.ChunkStateInProgress {
				c.requeueLocked(chunk)
				requeued++
			}
		}
	}

	// Chunks can also outlive their deadline while the worker still
	// heartbeats (stuck execution); those expire independently.
	for _, chunk := range c.chunks {
		if chunk.State == models.ChunkStateInProgress && chunk.Expired(now) {
			debug.Warning("Chunk %d expired past deadline, requeueing", chunk.ID)
			c.requeueLocked(chunk)
			requeued++
		}
	}

	return requeued
}

func (c *Coordinator) requeueLocked(chunk *models.Chunk) {
	chunk.State = models.ChunkStatePending
	chunk.AssignedTo = uuid.Nil
	chunk.AssignedAt = time.Time{}
	chunk.Deadline = time.Time{}
	c.pending = append(c.pending, chunk.ID)
}

// Workers returns a snapshot of all worker records.
func (c *Coordinator) Workers() []models.WorkerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.WorkerRecord, 0, len(c.workers))
	for _, w := range c.workers {
		out = append(out, *w)
	}
	return out
}

// Found returns the credentials confirmed so far.
func (c *Coordinator) Found() []models.FoundCredential {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.FoundCredential, len(c.found))
	copy(out, c.found)
	return out
}

// Halted reports whether stop-on-first has halted assignment.
func (c *Coordinator) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// Finished reports whether the stream is exhausted and every created
// chunk has completed.
func (c *Coordinator) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream.LinearIndex() < c.stream.Len() {
		return false
	}
	for _, chunk := range c.chunks {
		if chunk.State != models.ChunkStateCompleted {
			return false
		}
	}
	return true
}

// Options returns the per-attempt tuning forwarded with every chunk.
func (c *Coordinator) Options() models.TargetOptions {
	return c.cfg.Options
}

// Stats returns aggregate attempt counters.
func (c *Coordinator) Stats() models.AttackStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	for _, chunk := range c.chunks {
		if chunk.State != models.ChunkStateCompleted {
			stats.OutstandingChunks++
		}
	}
	return stats
}

// Snapshot builds a checkpoint of current progress. Snapshots are
// monotonic: completed chunks stay completed and the cursor never moves
// backwards.
func (c *Coordinator) Snapshot() *models.CheckpointSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	uIdx, pIdx := c.stream.Cursor()
	snapshot := &models.CheckpointSnapshot{
		Version: models.CheckpointVersion,
		Target:  c.cfg.Target,
		Cursor: models.StreamCursor{
			UsernameIndex: uIdx,
			PasswordIndex: pIdx,
			Linear:        c.stream.LinearIndex(),
		},
		Found:     append([]models.FoundCredential(nil), c.found...),
		Timestamp: time.Now(),
	}
	for _, chunk := range c.chunks {
		snapshot.Chunks = append(snapshot.Chunks, models.ChunkRange{
			ID:          chunk.ID,
			StreamStart: chunk.StreamStart,
			StreamEnd:   chunk.StreamEnd,
			Completed:   chunk.State == models.ChunkStateCompleted,
		})
	}
	sort.Slice(snapshot.Chunks, func(i, j int) bool {
		return snapshot.Chunks[i].ID < snapshot.Chunks[j].ID
	})
	return snapshot
}

// SaveCheckpoint persists a snapshot through the configured store.
func (c *Coordinator) SaveCheckpoint() error {
	if c.store == nil {
		return nil
	}
	snapshot := c.Snapshot()
	if err := c.store.Save(snapshot); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
