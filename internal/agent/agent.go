// Package agent implements the worker agent: it registers with the
// coordinator, pulls chunks, executes them through the local attempt
// scheduler, submits results, and keeps a heartbeat channel alive.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/eshanized/ERPCT/internal/config"
	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/internal/protocols"
	"github.com/eshanized/ERPCT/internal/scheduler"
	"github.com/eshanized/ERPCT/pkg/debug"
)

const agentVersion = "1.0.0"

// Agent runs the worker side of a distributed attack.
type Agent struct {
	cfg    config.AgentConfig
	client *Client
}

// New creates an agent from its configuration.
func New(cfg config.AgentConfig) *Agent {
	return &Agent{
		cfg:    cfg,
		client: NewClient(cfg.ServerURL, cfg.AuthKey),
	}
}

// Run registers with the coordinator and processes chunks until the
// coordinator signals a halt, the stream is exhausted and stays empty, or
// the context is cancelled. Connection failures retry with a fixed
// reconnect delay.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.registerWithRetry(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.heartbeatLoop(runCtx, cancel)

	debug.Info("Agent %s registered as worker %s", a.cfg.Name, a.client.WorkerID())
	return a.workLoop(runCtx)
}

// registerWithRetry registers until it succeeds or the context ends. The
// coordinator may simply not be up yet, so every failure waits out the
// reconnect delay and tries again.
func (a *Agent) registerWithRetry(ctx context.Context) error {
	req := models.RegisterRequest{
		Name:           a.cfg.Name,
		ThreadCapacity: a.cfg.Threads,
		Hardware:       collectHardware(),
		Version:        agentVersion,
	}

	for {
		err := a.client.Register(ctx, req)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		debug.Warning("Registration failed, retrying in %v: %v", a.cfg.ReconnectDelay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.ReconnectDelay):
		}
	}
}

func (a *Agent) workLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		payload, err := a.client.RequestWork(ctx)
		if err != nil {
			debug.Warning("Work request failed, retrying in %v: %v", a.cfg.ReconnectDelay, err)
			if err := sleep(ctx, a.cfg.ReconnectDelay); err != nil {
				return err
			}
			continue
		}

		if payload == nil {
			// Idle: the stream may refill when another worker times out.
			if err := sleep(ctx, a.cfg.ReconnectDelay); err != nil {
				return err
			}
			continue
		}

		results, err := a.executeChunk(ctx, payload)
		if err != nil {
			debug.Error("Chunk %d execution failed: %v", payload.ChunkID, err)
			continue
		}

		halt, err := a.submitWithRetry(ctx, models.SubmitResultsRequest{
			ChunkID: payload.ChunkID,
			Results: results,
		})
		if err != nil {
			return err
		}
		if halt {
			debug.Info("Coordinator signalled halt, stopping")
			return nil
		}
	}
}

// executeChunk runs one chunk through the local scheduler with the
// coordinator-supplied tuning.
func (a *Agent) executeChunk(ctx context.Context, payload *models.ChunkPayload) ([]models.AttemptResult, error) {
	tester, err := protocols.New(payload.Protocol, protocols.Config{
		Target: payload.Target,
		Port:   payload.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s tester: %w", payload.Protocol, err)
	}

	opts := payload.Options
	sched := scheduler.New(tester,
		scheduler.NewDelayPolicy(opts.DelaySeconds, opts.DelayJitter),
		scheduler.Config{
			Threads:     a.cfg.Threads,
			Timeout:     time.Duration(opts.TimeoutSeconds) * time.Second,
			MaxRetries:  opts.MaxRetries,
			StopOnFirst: opts.StopOnFirst,
		})

	debug.Info("Executing chunk %d: %d pairs against %s:%d over %s",
		payload.ChunkID, len(payload.Pairs), payload.Target, payload.Port, payload.Protocol)

	chunk := &models.Chunk{ID: payload.ChunkID, Pairs: payload.Pairs}
	results, err := sched.Run(ctx, scheduler.NewChunkSource(chunk))
	if err != nil {
		// Cancelled mid-chunk: submit what completed so the coordinator
		// can account for it before requeueing the remainder elsewhere.
		debug.Warning("Chunk %d interrupted after %d results: %v", payload.ChunkID, len(results), err)
	}
	return results, nil
}

// submitWithRetry submits results until the coordinator acknowledges.
// A non-accepted acknowledgement means the chunk was requeued first; the
// results are dropped and the worker moves on.
func (a *Agent) submitWithRetry(ctx context.Context, req models.SubmitResultsRequest) (bool, error) {
	for {
		ack, err := a.client.SubmitResults(ctx, req)
		if err == nil {
			if !ack.Accepted {
				debug.Warning("Chunk %d results discarded by coordinator (requeued first)", req.ChunkID)
			}
			return ack.Halt, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		debug.Warning("Result submission failed, retrying in %v: %v", a.cfg.ReconnectDelay, err)
		if err := sleep(ctx, a.cfg.ReconnectDelay); err != nil {
			return false, err
		}
	}
}

// heartbeatLoop keeps the websocket heartbeat channel alive, falling back
// to the HTTP endpoint while the websocket is down. A halt flag in an
// acknowledgement cancels the work loop.
func (a *Agent) heartbeatLoop(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		conn, err := a.client.DialHeartbeat(ctx)
		if err != nil {
			debug.Debug("Websocket unavailable, using HTTP heartbeats: %v", err)
			if !a.httpHeartbeats(ctx, ticker) {
				return
			}
			continue
		}

		halted := a.wsHeartbeats(ctx, ticker, conn)
		conn.Close()
		if halted {
			cancel()
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// wsHeartbeats runs heartbeats over an open websocket until it breaks.
// Returns true when the coordinator signalled a halt.
func (a *Agent) wsHeartbeats(ctx context.Context, ticker *time.Ticker, conn heartbeatConn) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		msg := models.HeartbeatMessage{
			Type:      "heartbeat",
			WorkerID:  a.client.WorkerID(),
			Timestamp: time.Now(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			debug.Debug("Websocket heartbeat write failed: %v", err)
			return false
		}

		var ack struct {
			Type string `json:"type"`
			Halt bool   `json:"halt"`
		}
		if err := conn.ReadJSON(&ack); err != nil {
			debug.Debug("Websocket heartbeat read failed: %v", err)
			return false
		}
		if ack.Halt {
			return true
		}
	}
}

// httpHeartbeats sends one round of HTTP heartbeats, returning false when
// the context ended.
func (a *Agent) httpHeartbeats(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
	}

	if err := a.client.Heartbeat(ctx); err != nil {
		debug.Debug("HTTP heartbeat failed: %v", err)
	}
	return true
}

// heartbeatConn is the subset of the websocket connection the heartbeat
// loop uses; tests substitute a fake.
type heartbeatConn interface {
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
