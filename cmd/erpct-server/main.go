// erpct-server runs the distribution coordinator: it owns the candidate
// stream, hands out chunks to worker agents over HTTP, and checkpoints
// progress on a schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eshanized/ERPCT/internal/candidates"
	"github.com/eshanized/ERPCT/internal/checkpoint"
	"github.com/eshanized/ERPCT/internal/config"
	"github.com/eshanized/ERPCT/internal/coordinator"
	"github.com/eshanized/ERPCT/internal/db"
	"github.com/eshanized/ERPCT/internal/handlers/agentapi"
	"github.com/eshanized/ERPCT/internal/middleware"
	"github.com/eshanized/ERPCT/internal/repository"
	"github.com/eshanized/ERPCT/internal/routes"
	"github.com/eshanized/ERPCT/pkg/debug"
)

func main() {
	config.LoadEnv()
	debug.Reinitialize()

	serverCfg, err := config.LoadServer()
	if err != nil {
		debug.Error("Invalid server configuration: %v", err)
		os.Exit(1)
	}
	attackCfg, err := config.LoadAttack()
	if err != nil {
		debug.Error("Invalid attack configuration: %v", err)
		os.Exit(1)
	}

	stream, err := candidates.FromFiles(
		attackCfg.UsernameFile, attackCfg.PasswordFile, attackCfg.RulesFile, attackCfg.Ordering)
	if err != nil {
		debug.Error("Failed to build candidate stream: %v", err)
		os.Exit(1)
	}

	store, err := buildStore(serverCfg, attackCfg)
	if err != nil {
		debug.Error("Failed to set up checkpoint store: %v", err)
		os.Exit(1)
	}

	coordCfg := coordinator.Config{
		Target:        attackCfg.Target,
		Protocol:      attackCfg.Protocol,
		Port:          attackCfg.Port,
		ChunkSize:     serverCfg.ChunkSize,
		MinChunkSize:  serverCfg.MinChunkSize,
		MaxChunkSize:  serverCfg.MaxChunkSize,
		WorkerTimeout: serverCfg.WorkerTimeout,
		StopOnFirst:   attackCfg.StopOnFirst,
		AuthKey:       serverCfg.AuthKey,
		Options:       attackCfg.Options(),

		TargetChunkDuration: serverCfg.TargetChunkDuration,
	}

	coord, err := openCoordinator(coordCfg, stream, store)
	if err != nil {
		debug.Error("Failed to start coordinator: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := coordinator.NewLivenessMonitor(coord, 0)
	monitor.Start(ctx)
	defer monitor.Stop()

	checkpointCron := cron.New()
	if _, err := checkpointCron.AddFunc(serverCfg.CheckpointSchedule, func() {
		if err := coord.SaveCheckpoint(); err != nil {
			debug.Error("Scheduled checkpoint failed: %v", err)
		}
	}); err != nil {
		debug.Error("Invalid checkpoint schedule %q: %v", serverCfg.CheckpointSchedule, err)
		os.Exit(1)
	}
	checkpointCron.Start()
	defer checkpointCron.Stop()

	tokens := middleware.NewTokenService(serverCfg.JWTSecret, 0)
	handler := agentapi.NewHandler(coord, tokens)
	server := &http.Server{
		Addr:    serverCfg.ListenAddr,
		Handler: routes.Setup(handler, tokens),
	}

	go func() {
		debug.Info("Coordinator listening on %s (target %s:%d over %s)",
			serverCfg.ListenAddr, attackCfg.Target, attackCfg.Port, attackCfg.Protocol)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Error("Server failed: %v", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	debug.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		debug.Warning("Shutdown incomplete: %v", err)
	}

	if err := coord.SaveCheckpoint(); err != nil {
		debug.Error("Final checkpoint failed: %v", err)
	}

	for _, cred := range coord.Found() {
		debug.Info("FOUND %s:%s on %s", cred.Username, cred.Password, cred.Target)
	}
}

func buildStore(serverCfg *config.ServerConfig, attackCfg *config.AttackConfig) (checkpoint.Store, error) {
	if serverCfg.DatabaseURL == "" {
		return checkpoint.NewFileStore(serverCfg.CheckpointPath)
	}

	database, err := db.Connect(serverCfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	repo := repository.NewCheckpointRepository(database)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		return nil, err
	}
	return repository.NewDBStore(repo, attackCfg.Target), nil
}

// openCoordinator resumes from a persisted checkpoint when one exists. A
// corrupt checkpoint is reported and ignored; the attack restarts from
// the beginning rather than trusting partial state.
func openCoordinator(cfg coordinator.Config, stream *candidates.Stream, store checkpoint.Store) (*coordinator.Coordinator, error) {
	snapshot, err := store.Load()
	switch {
	case err == nil:
		return coordinator.Resume(cfg, stream, store, snapshot)
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		return coordinator.New(cfg, stream, store), nil
	case errors.Is(err, checkpoint.ErrCorrupt):
		debug.Warning("Ignoring corrupt checkpoint, starting fresh: %v", err)
		return coordinator.New(cfg, stream, store), nil
	default:
		return nil, err
	}
}
