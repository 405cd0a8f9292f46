package agent

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshanized/ERPCT/internal/candidates"
	"github.com/eshanized/ERPCT/internal/config"
	"github.com/eshanized/ERPCT/internal/coordinator"
	"github.com/eshanized/ERPCT/internal/handlers/agentapi"
	"github.com/eshanized/ERPCT/internal/middleware"
	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/internal/protocols"
	"github.com/eshanized/ERPCT/internal/routes"
)

// stubTester is shared by every test in the package; the protocol registry
// allows a name to be registered once per process.
var stubTester = protocols.NewMockTester()

func init() {
	protocols.Register("stub", func(cfg protocols.Config) (protocols.Tester, error) {
		return stubTester, nil
	})
}

func startCoordinator(t *testing.T, cfg coordinator.Config, passwords int) (*httptest.Server, *coordinator.Coordinator) {
	t.Helper()

	p := make(candidates.SliceSource, passwords)
	for i := range p {
		p[i] = fmt.Sprintf("pw%d", i)
	}
	stream := candidates.New(candidates.SliceSource{"admin"}, p, candidates.UsernameFirst)

	c := coordinator.New(cfg, stream, nil)
	tokens := middleware.NewTokenService("agent-test-secret", time.Hour)
	server := httptest.NewServer(routes.Setup(agentapi.NewHandler(c, tokens), tokens))
	t.Cleanup(server.Close)
	return server, c
}

func testAgentConfig(serverURL, authKey string) config.AgentConfig {
	return config.AgentConfig{
		ServerURL:         serverURL,
		Name:              "test-agent",
		AuthKey:           authKey,
		Threads:           2,
		HeartbeatInterval: 50 * time.Millisecond,
		ReconnectDelay:    20 * time.Millisecond,
	}
}

func TestAgentRunsAttackToHalt(t *testing.T) {
	server, c := startCoordinator(t, coordinator.Config{
		Target:   "198.51.100.7",
		Protocol: "stub",
		Port:     22,
		AuthKey:  "shared-key",
		// Small chunks so the halt lands mid-stream.
		ChunkSize:   5,
		StopOnFirst: true,
	}, 20)

	stubTester.Script("admin", "pw7", models.OutcomeSuccess)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := New(testAgentConfig(server.URL, "shared-key"))
	require.NoError(t, a.Run(ctx))

	assert.True(t, c.Halted())
	found := c.Found()
	require.Len(t, found, 1)
	assert.Equal(t, "admin", found[0].Username)
	assert.Equal(t, "pw7", found[0].Password)

	// Every pair up to and including the successful chunk was attempted
	// exactly once.
	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.TotalAttempts, int64(6))
	assert.Equal(t, int64(1), stats.SuccessCount)
}

func TestAgentRegistrationRejectedWithBadKey(t *testing.T) {
	server, _ := startCoordinator(t, coordinator.Config{AuthKey: "shared-key"}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The wrong key is rejected every attempt; Run gives up when the
	// context expires.
	a := New(testAgentConfig(server.URL, "wrong-key"))
	err := a.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientRequestWorkReturnsNilWhenIdle(t *testing.T) {
	server, c := startCoordinator(t, coordinator.Config{Protocol: "stub", ChunkSize: 10}, 3)

	client := NewClient(server.URL, "")
	ctx := context.Background()
	require.NoError(t, client.Register(ctx, models.RegisterRequest{Name: "c1"}))

	payload, err := client.RequestWork(ctx)
	require.NoError(t, err)
	require.NotNil(t, payload)
	require.Len(t, payload.Pairs, 3)

	_, err = client.SubmitResults(ctx, models.SubmitResultsRequest{ChunkID: payload.ChunkID})
	require.NoError(t, err)

	// Exhausted stream: 204 maps to a nil payload.
	payload, err = client.RequestWork(ctx)
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.True(t, c.Finished())
}

func TestClientHeartbeat(t *testing.T) {
	server, _ := startCoordinator(t, coordinator.Config{}, 1)

	client := NewClient(server.URL, "")
	ctx := context.Background()
	require.NoError(t, client.Register(ctx, models.RegisterRequest{Name: "hb"}))
	assert.NoError(t, client.Heartbeat(ctx))
}

func TestCollectHardwareReportsSomething(t *testing.T) {
	hw := collectHardware()
	assert.Greater(t, hw.CPUCount, 0)
	assert.NotEmpty(t, hw.Platform)
}
