// Package config loads runtime configuration from the environment, with
// an optional .env file for development setups.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/pkg/debug"
)

// ServerConfig configures the coordinator process.
type ServerConfig struct {
	ListenAddr string
	AuthKey    string
	JWTSecret  string

	ChunkSize           int
	MinChunkSize        int
	MaxChunkSize        int
	TargetChunkDuration time.Duration
	WorkerTimeout       time.Duration

	CheckpointPath     string
	CheckpointSchedule string
	DatabaseURL        string
}

// AgentConfig configures a worker agent process.
type AgentConfig struct {
	ServerURL         string
	Name              string
	AuthKey           string
	Threads           int
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
}

// AttackConfig configures one attack run: the target, the candidate
// sources, and the per-attempt tuning shared by local and distributed
// modes.
type AttackConfig struct {
	Target   string
	Protocol string
	Port     int

	UsernameFile string
	PasswordFile string
	RulesFile    string
	Ordering     string

	Threads      int
	Timeout      time.Duration
	MaxRetries   int
	DelaySeconds float64
	DelayJitter  float64
	StopOnFirst  bool
}

// LoadEnv loads a .env file when present. Missing files are not an
// error; real deployments set variables directly.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		debug.Debug("No .env file loaded: %v", err)
	}
}

// LoadServer reads the coordinator configuration from the environment.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{
		ListenAddr: getEnv("ERPCT_LISTEN_ADDR", ":31600"),
		AuthKey:    os.Getenv("ERPCT_AUTH_KEY"),
		JWTSecret:  os.Getenv("ERPCT_JWT_SECRET"),

		ChunkSize:           getEnvInt("ERPCT_CHUNK_SIZE", 500),
		MinChunkSize:        getEnvInt("ERPCT_MIN_CHUNK_SIZE", 50),
		MaxChunkSize:        getEnvInt("ERPCT_MAX_CHUNK_SIZE", 5000),
		TargetChunkDuration: getEnvDuration("ERPCT_TARGET_CHUNK_DURATION", 0),
		WorkerTimeout:       getEnvDuration("ERPCT_WORKER_TIMEOUT", 60*time.Second),

		CheckpointPath:     getEnv("ERPCT_CHECKPOINT_PATH", "erpct.checkpoint"),
		CheckpointSchedule: getEnv("ERPCT_CHECKPOINT_SCHEDULE", "@every 30s"),
		DatabaseURL:        os.Getenv("ERPCT_DATABASE_URL"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ERPCT_JWT_SECRET is required")
	}
	if cfg.MinChunkSize > cfg.MaxChunkSize {
		return nil, fmt.Errorf("ERPCT_MIN_CHUNK_SIZE (%d) exceeds ERPCT_MAX_CHUNK_SIZE (%d)",
			cfg.MinChunkSize, cfg.MaxChunkSize)
	}
	return cfg, nil
}

// LoadAgent reads the worker agent configuration from the environment.
func LoadAgent() (*AgentConfig, error) {
	cfg := &AgentConfig{
		ServerURL:         getEnv("ERPCT_SERVER_URL", "http://localhost:31600"),
		Name:              getEnv("ERPCT_AGENT_NAME", hostnameOr("erpct-agent")),
		AuthKey:           os.Getenv("ERPCT_AUTH_KEY"),
		Threads:           getEnvInt("ERPCT_THREADS", 10),
		HeartbeatInterval: getEnvDuration("ERPCT_HEARTBEAT_INTERVAL", 15*time.Second),
		ReconnectDelay:    getEnvDuration("ERPCT_RECONNECT_DELAY", 5*time.Second),
	}

	if cfg.Threads <= 0 {
		return nil, fmt.Errorf("ERPCT_THREADS must be positive, got %d", cfg.Threads)
	}
	return cfg, nil
}

// LoadAttack reads the attack parameters from the environment.
func LoadAttack() (*AttackConfig, error) {
	cfg := &AttackConfig{
		Target:   os.Getenv("ERPCT_TARGET"),
		Protocol: getEnv("ERPCT_PROTOCOL", "ssh"),
		Port:     getEnvInt("ERPCT_PORT", 22),

		UsernameFile: os.Getenv("ERPCT_USERNAME_FILE"),
		PasswordFile: os.Getenv("ERPCT_PASSWORD_FILE"),
		RulesFile:    os.Getenv("ERPCT_RULES_FILE"),
		Ordering:     getEnv("ERPCT_ORDERING", "username_first"),

		Threads:      getEnvInt("ERPCT_THREADS", 10),
		Timeout:      getEnvDuration("ERPCT_TIMEOUT", 10*time.Second),
		MaxRetries:   getEnvInt("ERPCT_MAX_RETRIES", 3),
		DelaySeconds: getEnvFloat("ERPCT_DELAY_SECONDS", 0),
		DelayJitter:  getEnvFloat("ERPCT_DELAY_JITTER", 0),
		StopOnFirst:  getEnvBool("ERPCT_STOP_ON_FIRST", false),
	}

	if cfg.Target == "" {
		return nil, fmt.Errorf("ERPCT_TARGET is required")
	}
	if cfg.Ordering != "username_first" && cfg.Ordering != "password_first" {
		return nil, fmt.Errorf("ERPCT_ORDERING must be username_first or password_first, got %q", cfg.Ordering)
	}
	return cfg, nil
}

// Options converts the attack tuning to the wire form workers receive.
func (c *AttackConfig) Options() models.TargetOptions {
	return models.TargetOptions{
		TimeoutSeconds: int(c.Timeout / time.Second),
		MaxRetries:     c.MaxRetries,
		DelaySeconds:   c.DelaySeconds,
		DelayJitter:    c.DelayJitter,
		StopOnFirst:    c.StopOnFirst,
	}
}

func hostnameOr(fallback string) string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		debug.Warning("Invalid integer for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		debug.Warning("Invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		debug.Warning("Invalid boolean for %s: %q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		debug.Warning("Invalid duration for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
