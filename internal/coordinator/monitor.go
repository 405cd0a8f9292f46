package coordinator

import (
	"context"
	"time"

	"github.com/eshanized/ERPCT/pkg/debug"
)

// LivenessMonitor periodically sweeps worker records and requeues chunks
// held by workers that stopped heartbeating.
type LivenessMonitor struct {
	coordinator *Coordinator
	interval    time.Duration
	stop        chan struct{}
	done        chan struct{}
}

// NewLivenessMonitor creates a monitor sweeping at the given interval.
// A non-positive interval defaults to one quarter of the worker timeout,
// so a silent worker is detected within roughly one timeout period.
func NewLivenessMonitor(c *Coordinator, interval time.Duration) *LivenessMonitor {
	if interval <= 0 {
		interval = c.cfg.WorkerTimeout / 4
		if interval < time.Second {
			interval = time.Second
		}
	}
	return &LivenessMonitor{
		coordinator: c,
		interval:    interval,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately; the loop runs
// until Stop is called or the context is cancelled.
func (m *LivenessMonitor) Start(ctx context.Context) {
	debug.Info("Starting worker liveness monitor (interval: %v)", m.interval)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				debug.Info("Liveness monitor stopping: %v", ctx.Err())
				return
			case <-m.stop:
				debug.Info("Liveness monitor stopped")
				return
			case now := <-ticker.C:
				if n := m.coordinator.ReconcileLiveness(now); n > 0 {
					debug.Warning("Liveness sweep requeued %d chunk(s)", n)
				}
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (m *LivenessMonitor) Stop() {
	close(m.stop)
	<-m.done
}
