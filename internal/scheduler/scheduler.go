// Package scheduler runs credential attempts through a bounded pool of
// execution units pulling from a shared pair source.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/internal/protocols"
	"github.com/eshanized/ERPCT/pkg/debug"
)

// PairSource hands out credential pairs to execution units. Access must be
// serialized by the implementation so each pair is dispatched exactly once;
// the candidate stream and chunk sources both guarantee this.
type PairSource interface {
	Next() (models.CredentialPair, bool)
}

// Config tunes the scheduler.
type Config struct {
	// Threads is the size of the execution unit pool.
	Threads int
	// Timeout applies to each individual authentication attempt.
	Timeout time.Duration
	// MaxRetries bounds retries for transient failures (connection errors
	// and timeouts). Auth failures are never retried.
	MaxRetries int
	// RetryBackoff is the base for exponential backoff between retries.
	RetryBackoff time.Duration
	// StopOnFirst raises a cooperative cancellation once a success is
	// recorded; in-flight attempts run to completion.
	StopOnFirst bool
}

func (c Config) withDefaults() Config {
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	return c
}

// Scheduler owns the execution pool for one target. The tester must be
// safe for concurrent use, or the caller must size Threads to 1; this is
// a precondition, not something the scheduler can verify.
type Scheduler struct {
	cfg    Config
	tester protocols.Tester
	delay  DelayPolicy

	mu       sync.Mutex
	results  []models.AttemptResult
	onResult func(models.AttemptResult)
}

// New creates a scheduler over a tester and delay policy.
func New(tester protocols.Tester, delay DelayPolicy, cfg Config) *Scheduler {
	if delay == nil {
		delay = NoDelay{}
	}
	return &Scheduler{cfg: cfg.withDefaults(), tester: tester, delay: delay}
}

// OnResult registers a callback invoked for every recorded result. Must be
// set before Run.
func (s *Scheduler) OnResult(fn func(models.AttemptResult)) {
	s.onResult = fn
}

// Run drains the source through the execution pool and returns every
// recorded result. Cancellation is cooperative: units check the context
// between dispatch decisions and never kill an in-flight attempt. Run
// returns the parent context's error when it was cancelled externally.
func (s *Scheduler) Run(ctx context.Context, source PairSource) ([]models.AttemptResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runUnit(runCtx, cancel, source)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	results := make([]models.AttemptResult, len(s.results))
	copy(results, s.results)
	s.mu.Unlock()

	debug.Debug("Scheduler run finished: %d results", len(results))
	return results, ctx.Err()
}

func (s *Scheduler) runUnit(ctx context.Context, cancel context.CancelFunc, source PairSource) {
	for {
		// Cooperative cancellation point between dispatch decisions.
		if ctx.Err() != nil {
			return
		}

		pair, ok := source.Next()
		if !ok {
			return
		}

		if err := s.delay.Wait(ctx); err != nil {
			return
		}

		result := s.attempt(ctx, pair)
		s.record(result)

		if result.Outcome == models.OutcomeSuccess && s.cfg.StopOnFirst {
			debug.Info("Credential found for %s, raising stop flag", pair.Username)
			cancel()
			return
		}
	}
}

// attempt tests one pair, retrying transient failures with exponential
// backoff up to MaxRetries before recording a permanent failure.
func (s *Scheduler) attempt(ctx context.Context, pair models.CredentialPair) models.AttemptResult {
	var outcome models.Outcome
	var message string
	started := time.Now()

	for try := 0; ; try++ {
		attemptStart := time.Now()
		outcome, message = s.tester.Test(ctx, pair.Username, pair.Password, s.cfg.Timeout)

		if !outcome.Retryable() || try >= s.cfg.MaxRetries {
			return models.AttemptResult{
				Pair:    pair,
				Outcome: outcome,
				Message: message,
				Latency: time.Since(attemptStart),
			}
		}

		backoff := s.cfg.RetryBackoff << uint(try)
		debug.Debug("Transient failure for %s (attempt %d/%d), backing off %v: %s",
			pair.Username, try+1, s.cfg.MaxRetries+1, backoff, message)
		if err := sleep(ctx, backoff); err != nil {
			// Cancelled mid-backoff: record what we saw, elapsed so far.
			return models.AttemptResult{
				Pair:    pair,
				Outcome: outcome,
				Message: message,
				Latency: time.Since(started),
			}
		}
	}
}

func (s *Scheduler) record(result models.AttemptResult) {
	s.mu.Lock()
	s.results = append(s.results, result)
	callback := s.onResult
	s.mu.Unlock()

	if callback != nil {
		callback(result)
	}
}

// pairsSource is a serialized PairSource over a fixed pair slice.
type pairsSource struct {
	mu    sync.Mutex
	pairs []models.CredentialPair
	next  int
}

// NewChunkSource wraps a chunk's pairs as a PairSource for local
// execution inside a worker.
func NewChunkSource(chunk *models.Chunk) PairSource {
	return &pairsSource{pairs: chunk.Pairs}
}

// NewPairsSource wraps a pair slice as a PairSource.
func NewPairsSource(pairs []models.CredentialPair) PairSource {
	return &pairsSource{pairs: pairs}
}

func (p *pairsSource) Next() (models.CredentialPair, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.pairs) {
		return models.CredentialPair{}, false
	}
	pair := p.pairs[p.next]
	p.next++
	return pair, true
}
