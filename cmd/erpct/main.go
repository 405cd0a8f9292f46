// erpct runs a single-machine attack: the candidate stream feeds the
// local attempt scheduler directly, with no coordinator in between.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eshanized/ERPCT/internal/candidates"
	"github.com/eshanized/ERPCT/internal/checkpoint"
	"github.com/eshanized/ERPCT/internal/config"
	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/internal/protocols"
	"github.com/eshanized/ERPCT/internal/scheduler"
	"github.com/eshanized/ERPCT/pkg/debug"
)

func main() {
	config.LoadEnv()
	debug.Reinitialize()

	cfg, err := config.LoadAttack()
	if err != nil {
		debug.Error("Invalid attack configuration: %v", err)
		os.Exit(1)
	}

	stream, err := candidates.FromFiles(cfg.UsernameFile, cfg.PasswordFile, cfg.RulesFile, cfg.Ordering)
	if err != nil {
		debug.Error("Failed to build candidate stream: %v", err)
		os.Exit(1)
	}

	store, found := resumeFromCheckpoint(stream)

	tester, err := protocols.New(cfg.Protocol, protocols.Config{Target: cfg.Target, Port: cfg.Port})
	if err != nil {
		debug.Error("Failed to build tester: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	var attempts int64
	sched := scheduler.New(tester,
		scheduler.NewDelayPolicy(cfg.DelaySeconds, cfg.DelayJitter),
		scheduler.Config{
			Threads:     cfg.Threads,
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
			StopOnFirst: cfg.StopOnFirst,
		})
	sched.OnResult(func(r models.AttemptResult) {
		mu.Lock()
		attempts++
		if r.Outcome == models.OutcomeSuccess {
			found = append(found, models.FoundCredential{
				Username: r.Pair.Username,
				Password: r.Pair.Password,
				Target:   cfg.Target,
				FoundAt:  time.Now(),
			})
			fmt.Printf("FOUND %s:%s\n", r.Pair.Username, r.Pair.Password)
		}
		mu.Unlock()
	})

	if store != nil {
		go periodicCheckpoint(ctx, store, stream, &mu, &found)
	}

	debug.Info("Testing %d candidates against %s:%d over %s with %d threads",
		stream.Len(), cfg.Target, cfg.Port, cfg.Protocol, cfg.Threads)
	start := time.Now()

	_, runErr := sched.Run(ctx, stream)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		debug.Error("Attack failed: %v", runErr)
		os.Exit(1)
	}

	if store != nil {
		mu.Lock()
		saveCheckpoint(store, stream, found)
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("Done: %d attempts in %v, %d credential(s) found\n",
		attempts, time.Since(start).Round(time.Millisecond), len(found))
	if len(found) == 0 {
		os.Exit(2)
	}
}

// resumeFromCheckpoint seeks the stream past already-tested candidates
// when a checkpoint exists. Local mode has no outstanding chunks; the
// cursor alone captures progress.
func resumeFromCheckpoint(stream *candidates.Stream) (checkpoint.Store, []models.FoundCredential) {
	path := os.Getenv("ERPCT_CHECKPOINT_PATH")
	if path == "" {
		return nil, nil
	}

	store, err := checkpoint.NewFileStore(path)
	if err != nil {
		debug.Error("Failed to open checkpoint store: %v", err)
		os.Exit(1)
	}

	snapshot, err := store.Load()
	switch {
	case err == nil:
		stream.SeekLinear(snapshot.Cursor.Linear)
		debug.Info("Resuming from checkpoint at candidate %d", snapshot.Cursor.Linear)
		return store, snapshot.Found
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		return store, nil
	case errors.Is(err, checkpoint.ErrCorrupt):
		debug.Warning("Ignoring corrupt checkpoint, starting fresh: %v", err)
		return store, nil
	default:
		debug.Error("Failed to load checkpoint: %v", err)
		os.Exit(1)
		return nil, nil
	}
}

func periodicCheckpoint(ctx context.Context, store checkpoint.Store, stream *candidates.Stream, mu *sync.Mutex, found *[]models.FoundCredential) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			saveCheckpoint(store, stream, *found)
			mu.Unlock()
		}
	}
}

func saveCheckpoint(store checkpoint.Store, stream *candidates.Stream, found []models.FoundCredential) {
	uIdx, pIdx := stream.Cursor()
	err := store.Save(&models.CheckpointSnapshot{
		Version: models.CheckpointVersion,
		Cursor: models.StreamCursor{
			UsernameIndex: uIdx,
			PasswordIndex: pIdx,
			Linear:        stream.LinearIndex(),
		},
		Found:     found,
		Timestamp: time.Now(),
	})
	if err != nil {
		debug.Error("Checkpoint save failed: %v", err)
	}
}
