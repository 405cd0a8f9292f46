// erpct-agent runs a worker agent: it registers with a coordinator, pulls
// candidate chunks, tests them against the target, and reports results.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshanized/ERPCT/internal/agent"
	"github.com/eshanized/ERPCT/internal/config"
	"github.com/eshanized/ERPCT/pkg/debug"
)

func main() {
	config.LoadEnv()
	debug.Reinitialize()

	cfg, err := config.LoadAgent()
	if err != nil {
		debug.Error("Invalid agent configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug.Info("Agent %s connecting to %s with %d threads", cfg.Name, cfg.ServerURL, cfg.Threads)

	if err := agent.New(*cfg).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		debug.Error("Agent stopped with error: %v", err)
		os.Exit(1)
	}
	debug.Info("Agent finished")
}
