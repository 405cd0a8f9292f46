// Package protocols defines the credential tester capability consumed by
// the attempt scheduler, and a registry mapping protocol names to tester
// factories. Protocol selection is resolved at startup; there is no
// runtime code loading.
package protocols

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eshanized/ERPCT/internal/models"
)

// Tester attempts one authentication against a target and classifies the
// outcome. Implementations must either be safe for concurrent use or be
// constructed per execution unit; the scheduler documents this as a caller
// precondition.
type Tester interface {
	Test(ctx context.Context, username, password string, timeout time.Duration) (models.Outcome, string)
}

// Config carries the target descriptor a factory needs to build a tester.
type Config struct {
	Target  string
	Port    int
	Options map[string]string
}

// Factory builds a tester for one target.
type Factory func(cfg Config) (Tester, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a protocol factory under a name. Registration happens in
// package init functions; duplicate names panic early.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("protocols: duplicate registration for %q", name))
	}
	registry[name] = factory
}

// New resolves a protocol name to a tester for the given target.
func New(name string, cfg Config) (Tester, error) {
	registryMu.RLock()
	factory, exists := registry[name]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown protocol %q (registered: %v)", name, Names())
	}
	return factory(cfg)
}

// Names returns the registered protocol names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
