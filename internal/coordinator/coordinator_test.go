package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshanized/ERPCT/internal/candidates"
	"github.com/eshanized/ERPCT/internal/models"
)

func testStream(usernames, passwords int) *candidates.Stream {
	u := make(candidates.SliceSource, usernames)
	for i := range u {
		u[i] = fmt.Sprintf("user%d", i)
	}
	p := make(candidates.SliceSource, passwords)
	for i := range p {
		p[i] = fmt.Sprintf("pass%d", i)
	}
	return candidates.New(u, p, candidates.UsernameFirst)
}

func register(t *testing.T, c *Coordinator) *models.WorkerRecord {
	t.Helper()
	worker, err := c.Register(models.RegisterRequest{
		Name:           "test-worker",
		Address:        "10.0.0.2",
		ThreadCapacity: 8,
	}, c.cfg.AuthKey)
	require.NoError(t, err)
	return worker
}

func resultsFor(chunk *models.Chunk, outcome models.Outcome) []models.AttemptResult {
	out := make([]models.AttemptResult, len(chunk.Pairs))
	for i, pair := range chunk.Pairs {
		out[i] = models.AttemptResult{Pair: pair, Outcome: outcome}
	}
	return out
}

func TestRegisterRequiresAuthKey(t *testing.T) {
	c := New(Config{AuthKey: "s3cret"}, testStream(1, 1), nil)

	_, err := c.Register(models.RegisterRequest{Name: "bad"}, "wrong")
	assert.ErrorIs(t, err, ErrInvalidAuthKey)

	worker, err := c.Register(models.RegisterRequest{Name: "good"}, "s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, worker.ID)
	assert.Equal(t, models.WorkerStateRegistered, worker.State)
}

func TestRequestWorkFromUnknownWorker(t *testing.T) {
	c := New(Config{}, testStream(1, 1), nil)

	_, err := c.RequestWork(uuid.New())
	assert.ErrorIs(t, err, ErrUnknownWorker)
}

func TestChunksPartitionStreamExactlyOnce(t *testing.T) {
	c := New(Config{ChunkSize: 6}, testStream(2, 10), nil)
	worker := register(t, c)

	seen := map[int64]int{}
	for {
		chunk, err := c.RequestWork(worker.ID)
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		assert.Equal(t, models.ChunkStateInProgress, chunk.State)
		assert.Equal(t, worker.ID, chunk.AssignedTo)
		for _, pair := range chunk.Pairs {
			seen[pair.Index]++
		}
		_, err = c.SubmitResult(worker.ID, chunk.ID, resultsFor(chunk, models.OutcomeAuthFailure))
		require.NoError(t, err)
	}

	require.Len(t, seen, 20)
	for idx, count := range seen {
		assert.Equal(t, 1, count, "pair %d issued %d times", idx, count)
	}
	assert.True(t, c.Finished())
	assert.Equal(t, int64(20), c.Stats().TotalAttempts)
}

func TestChunkIDsAreMonotonic(t *testing.T) {
	c := New(Config{ChunkSize: 3}, testStream(1, 12), nil)
	worker := register(t, c)

	var last int64
	for {
		chunk, err := c.RequestWork(worker.ID)
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		assert.Greater(t, chunk.ID, last)
		last = chunk.ID
		_, err = c.SubmitResult(worker.ID, chunk.ID, nil)
		require.NoError(t, err)
	}
}

func TestStopOnFirstHaltsAssignment(t *testing.T) {
	c := New(Config{ChunkSize: 4, StopOnFirst: true}, testStream(1, 100), nil)
	worker := register(t, c)

	chunk, err := c.RequestWork(worker.ID)
	require.NoError(t, err)
	require.NotNil(t, chunk)

	results := resultsFor(chunk, models.OutcomeAuthFailure)
	results[1].Outcome = models.OutcomeSuccess
	halt, err := c.SubmitResult(worker.ID, chunk.ID, results)
	require.NoError(t, err)
	assert.True(t, halt)
	assert.True(t, c.Halted())

	next, err := c.RequestWork(worker.ID)
	require.NoError(t, err)
	assert.Nil(t, next)

	found := c.Found()
	require.Len(t, found, 1)
	assert.Equal(t, chunk.Pairs[1].Username, found[0].Username)
	assert.Equal(t, chunk.Pairs[1].Password, found[0].Password)
}

func TestTimeoutRequeuesExactlyOnceAndFirstWriterWins(t *testing.T) {
	c := New(Config{ChunkSize: 5, WorkerTimeout: time.Minute}, testStream(1, 5), nil)
	stale := register(t, c)

	chunk, err := c.RequestWork(stale.ID)
	require.NoError(t, err)
	require.NotNil(t, chunk)

	// Worker goes silent past the timeout; repeated sweeps requeue the
	// chunk exactly once.
	deadline := time.Now().Add(2 * time.Minute)
	assert.Equal(t, 1, c.ReconcileLiveness(deadline))
	assert.Equal(t, 0, c.ReconcileLiveness(deadline))

	// The requeue won the race: the original worker's late submission is
	// discarded.
	_, err = c.SubmitResult(stale.ID, chunk.ID, resultsFor(chunk, models.OutcomeSuccess))
	assert.ErrorIs(t, err, ErrStaleSubmission)
	assert.Empty(t, c.Found())

	// A fresh worker picks the chunk back up and completes it.
	replacement := register(t, c)
	requeued, err := c.RequestWork(replacement.ID)
	require.NoError(t, err)
	require.NotNil(t, requeued)
	assert.Equal(t, chunk.ID, requeued.ID)

	_, err = c.SubmitResult(replacement.ID, requeued.ID, resultsFor(requeued, models.OutcomeAuthFailure))
	require.NoError(t, err)
	assert.True(t, c.Finished())
}

func TestLateSubmitBeforeSweepWins(t *testing.T) {
	c := New(Config{ChunkSize: 5, WorkerTimeout: time.Minute}, testStream(1, 5), nil)
	worker := register(t, c)

	chunk, err := c.RequestWork(worker.ID)
	require.NoError(t, err)

	// Submission lands first, so the sweep finds nothing to requeue even
	// though the deadline has long passed.
	_, err = c.SubmitResult(worker.ID, chunk.ID, resultsFor(chunk, models.OutcomeAuthFailure))
	require.NoError(t, err)
	assert.Equal(t, 0, c.ReconcileLiveness(time.Now().Add(time.Hour)))
	assert.True(t, c.Finished())
}

func TestHeartbeatRevivesDisconnectedWorker(t *testing.T) {
	c := New(Config{WorkerTimeout: time.Minute}, testStream(1, 1), nil)
	worker := register(t, c)

	c.ReconcileLiveness(time.Now().Add(2 * time.Minute))
	assert.Equal(t, models.WorkerStateDisconnected, c.Workers()[0].State)

	require.NoError(t, c.Heartbeat(worker.ID))
	assert.Equal(t, models.WorkerStateIdle, c.Workers()[0].State)

	assert.ErrorIs(t, c.Heartbeat(uuid.New()), ErrUnknownWorker)
}

func TestSnapshotAndResumeNeverReissueCompletedChunks(t *testing.T) {
	c := New(Config{ChunkSize: 4}, testStream(2, 10), nil)
	worker := register(t, c)

	// Complete two chunks, abandon a third in progress.
	var completedIndices []int64
	for i := 0; i < 2; i++ {
		chunk, err := c.RequestWork(worker.ID)
		require.NoError(t, err)
		for _, pair := range chunk.Pairs {
			completedIndices = append(completedIndices, pair.Index)
		}
		_, err = c.SubmitResult(worker.ID, chunk.ID, resultsFor(chunk, models.OutcomeAuthFailure))
		require.NoError(t, err)
	}
	abandoned, err := c.RequestWork(worker.ID)
	require.NoError(t, err)
	require.NotNil(t, abandoned)

	snapshot := c.Snapshot()
	require.NoError(t, snapshot.Validate())
	assert.Len(t, snapshot.CompletedChunkIDs(), 2)

	// Resume on a fresh stream, as after a process restart.
	resumed, err := Resume(Config{ChunkSize: 4}, testStream(2, 10), nil, snapshot)
	require.NoError(t, err)

	worker2 := register(t, resumed)
	seen := map[int64]bool{}
	for {
		chunk, err := resumed.RequestWork(worker2.ID)
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		for _, pair := range chunk.Pairs {
			assert.False(t, seen[pair.Index], "pair %d issued twice after resume", pair.Index)
			seen[pair.Index] = true
		}
		_, err = resumed.SubmitResult(worker2.ID, chunk.ID, resultsFor(chunk, models.OutcomeAuthFailure))
		require.NoError(t, err)
	}

	// Completed work is never reissued, and everything else is.
	for _, idx := range completedIndices {
		assert.False(t, seen[idx], "completed pair %d reissued", idx)
	}
	assert.Len(t, seen, 20-len(completedIndices))
	assert.True(t, resumed.Finished())
}

func TestResumeRejectsInvalidSnapshot(t *testing.T) {
	bad := &models.CheckpointSnapshot{
		Version: models.CheckpointVersion,
		Cursor:  models.StreamCursor{Linear: 2},
		Chunks:  []models.ChunkRange{{ID: 1, StreamStart: 0, StreamEnd: 8}},
	}
	_, err := Resume(Config{}, testStream(2, 4), nil, bad)
	assert.Error(t, err)
}

func TestAdaptiveChunkSizing(t *testing.T) {
	c := New(Config{
		ChunkSize:           100,
		MinChunkSize:        10,
		MaxChunkSize:        400,
		TargetChunkDuration: 10 * time.Second,
	}, testStream(1, 1), nil)

	worker := &models.WorkerRecord{NextChunkSize: 100}

	// No completions yet: base size.
	assert.Equal(t, 100, c.chunkSizeFor(worker))

	// Completing in half the target doubles the size.
	worker.ObserveCompletion(5*time.Second, 5)
	assert.Equal(t, 200, c.chunkSizeFor(worker))

	// A very fast worker is clamped to the maximum.
	worker.RecentDurations = []time.Duration{100 * time.Millisecond}
	assert.Equal(t, 400, c.chunkSizeFor(worker))

	// A very slow worker is clamped to the minimum.
	worker.RecentDurations = []time.Duration{10 * time.Minute}
	assert.Equal(t, 10, c.chunkSizeFor(worker))
}

func TestAdaptiveSizingDisabledWithoutTarget(t *testing.T) {
	c := New(Config{ChunkSize: 250}, testStream(1, 1), nil)
	worker := &models.WorkerRecord{NextChunkSize: 250}
	worker.ObserveCompletion(time.Millisecond, 5)
	assert.Equal(t, 250, c.chunkSizeFor(worker))
}

func TestLivenessMonitorSweeps(t *testing.T) {
	c := New(Config{ChunkSize: 5, WorkerTimeout: 20 * time.Millisecond}, testStream(1, 5), nil)
	worker := register(t, c)

	_, err := c.RequestWork(worker.ID)
	require.NoError(t, err)

	monitor := NewLivenessMonitor(c, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	assert.Eventually(t, func() bool {
		return c.Workers()[0].State == models.WorkerStateDisconnected
	}, time.Second, 5*time.Millisecond)
}
