package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("ERPCT_JWT_SECRET", "test-secret")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":31600", cfg.ListenAddr)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 60*time.Second, cfg.WorkerTimeout)
	assert.Equal(t, "@every 30s", cfg.CheckpointSchedule)
}

func TestLoadServerRequiresJWTSecret(t *testing.T) {
	t.Setenv("ERPCT_JWT_SECRET", "")

	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadServerRejectsInvertedChunkBounds(t *testing.T) {
	t.Setenv("ERPCT_JWT_SECRET", "test-secret")
	t.Setenv("ERPCT_MIN_CHUNK_SIZE", "1000")
	t.Setenv("ERPCT_MAX_CHUNK_SIZE", "100")

	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadAttack(t *testing.T) {
	t.Setenv("ERPCT_TARGET", "198.51.100.7")
	t.Setenv("ERPCT_THREADS", "4")
	t.Setenv("ERPCT_DELAY_SECONDS", "0.5")
	t.Setenv("ERPCT_STOP_ON_FIRST", "true")
	t.Setenv("ERPCT_TIMEOUT", "5s")

	cfg, err := LoadAttack()
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", cfg.Target)
	assert.Equal(t, "ssh", cfg.Protocol)
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, 0.5, cfg.DelaySeconds)
	assert.True(t, cfg.StopOnFirst)

	opts := cfg.Options()
	assert.Equal(t, 5, opts.TimeoutSeconds)
	assert.True(t, opts.StopOnFirst)
}

func TestLoadAttackRequiresTarget(t *testing.T) {
	t.Setenv("ERPCT_TARGET", "")

	_, err := LoadAttack()
	assert.Error(t, err)
}

func TestLoadAttackRejectsUnknownOrdering(t *testing.T) {
	t.Setenv("ERPCT_TARGET", "198.51.100.7")
	t.Setenv("ERPCT_ORDERING", "sideways")

	_, err := LoadAttack()
	assert.Error(t, err)
}

func TestEnvParsersFallBackOnGarbage(t *testing.T) {
	t.Setenv("ERPCT_JWT_SECRET", "test-secret")
	t.Setenv("ERPCT_CHUNK_SIZE", "not-a-number")
	t.Setenv("ERPCT_WORKER_TIMEOUT", "eleven")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 60*time.Second, cfg.WorkerTimeout)
}
