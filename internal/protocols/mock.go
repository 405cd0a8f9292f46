package protocols

import (
	"context"
	"sync"
	"time"

	"github.com/eshanized/ERPCT/internal/models"
)

// MockTester is a scripted tester for tests. Unknown pairs fail
// authentication; scripted pairs return their configured outcome, with
// transient outcomes optionally clearing after a number of attempts.
type MockTester struct {
	mu       sync.Mutex
	outcomes map[string]scriptedOutcome
	calls    map[string]int
	total    int
	delay    time.Duration
}

type scriptedOutcome struct {
	outcome models.Outcome
	// clearAfter > 0 makes the scripted outcome give way to auth_failure
	// once the pair has been attempted that many times. Used to exercise
	// retry paths.
	clearAfter int
	clearTo    models.Outcome
}

// NewMockTester creates an empty scripted tester.
func NewMockTester() *MockTester {
	return &MockTester{
		outcomes: make(map[string]scriptedOutcome),
		calls:    make(map[string]int),
	}
}

func key(username, password string) string {
	return username + "\x00" + password
}

// Script sets the outcome for one credential pair.
func (m *MockTester) Script(username, password string, outcome models.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[key(username, password)] = scriptedOutcome{outcome: outcome}
}

// ScriptTransient makes a pair return a transient outcome until it has
// been attempted attempts times, then settle on final.
func (m *MockTester) ScriptTransient(username, password string, transient models.Outcome, attempts int, final models.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[key(username, password)] = scriptedOutcome{outcome: transient, clearAfter: attempts, clearTo: final}
}

// SetDelay makes every call block for d, honoring context cancellation.
func (m *MockTester) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times a pair was attempted.
func (m *MockTester) Calls(username, password string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key(username, password)]
}

// TotalCalls returns the total number of attempts across all pairs.
func (m *MockTester) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Test implements Tester.
func (m *MockTester) Test(ctx context.Context, username, password string, timeout time.Duration) (models.Outcome, string) {
	m.mu.Lock()
	k := key(username, password)
	m.calls[k]++
	m.total++
	attempt := m.calls[k]
	scripted, exists := m.outcomes[k]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return models.OutcomeConnectionError, "cancelled"
		case <-time.After(delay):
		}
	}

	if !exists {
		return models.OutcomeAuthFailure, "invalid credentials"
	}
	if scripted.clearAfter > 0 && attempt > scripted.clearAfter {
		return scripted.clearTo, "recovered"
	}
	return scripted.outcome, string(scripted.outcome)
}
