package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BusModeNATS   = "nats"
	BusModeMemory = "memory"

	defaultBusMode           = BusModeNATS
	defaultNATSURL           = "nats://localhost:4222"
	defaultWorkflowDir       = "config/workflows"
	defaultOpsAddr           = ":8090"
	defaultMaxConcurrent     = 64
	defaultInvocationTimeout = 30 * time.Second
	defaultDrainTimeout      = 10 * time.Second
	defaultHistorySize       = 100

	envBusMode           = "EVENT_BUS"
	envNATSURL           = "NATS_URL"
	envRedisURL          = "REDIS_URL"
	envWorkflowDir       = "WORKFLOW_DIR"
	envReloadInterval    = "WORKFLOW_RELOAD_INTERVAL"
	envMaxConcurrent     = "ENGINE_MAX_CONCURRENT"
	envInvocationTimeout = "ENGINE_INVOCATION_TIMEOUT"
	envDrainTimeout      = "ENGINE_DRAIN_TIMEOUT"
	envHistorySize       = "EVENT_HISTORY_SIZE"
	envOpsAddr           = "OPS_ADDR"
	envLimitsPath        = "ENGINE_LIMITS_FILE"
)

// Config holds runtime configuration for the engine service.
type Config struct {
	BusMode           string
	NatsURL           string
	RedisURL          string
	WorkflowDir       string
	ReloadInterval    time.Duration
	MaxConcurrent     int
	InvocationTimeout time.Duration
	DrainTimeout      time.Duration
	HistorySize       int
	OpsAddr           string
	LimitsPath        string
}

// Load returns configuration using environment variables with sane defaults.
// Unparseable numeric values fall back to the default rather than failing.
func Load() *Config {
	cfg := &Config{
		BusMode:           defaultBusMode,
		NatsURL:           defaultNATSURL,
		RedisURL:          os.Getenv(envRedisURL),
		WorkflowDir:       defaultWorkflowDir,
		MaxConcurrent:     defaultMaxConcurrent,
		InvocationTimeout: defaultInvocationTimeout,
		DrainTimeout:      defaultDrainTimeout,
		HistorySize:       defaultHistorySize,
		OpsAddr:           defaultOpsAddr,
		LimitsPath:        os.Getenv(envLimitsPath),
	}
	if mode := strings.ToLower(strings.TrimSpace(os.Getenv(envBusMode))); mode != "" {
		cfg.BusMode = mode
	}
	if url := os.Getenv(envNATSURL); url != "" {
		cfg.NatsURL = url
	}
	if dir := os.Getenv(envWorkflowDir); dir != "" {
		cfg.WorkflowDir = dir
	}
	if addr := os.Getenv(envOpsAddr); addr != "" {
		cfg.OpsAddr = addr
	}
	cfg.ReloadInterval = durationEnv(envReloadInterval, 0)
	cfg.InvocationTimeout = durationEnv(envInvocationTimeout, defaultInvocationTimeout)
	cfg.DrainTimeout = durationEnv(envDrainTimeout, defaultDrainTimeout)
	cfg.MaxConcurrent = intEnv(envMaxConcurrent, defaultMaxConcurrent)
	cfg.HistorySize = intEnv(envHistorySize, defaultHistorySize)
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.BusMode {
	case BusModeNATS, BusModeMemory:
	default:
		return fmt.Errorf("unknown bus mode %q", c.BusMode)
	}
	if c.BusMode == BusModeNATS && c.NatsURL == "" {
		return fmt.Errorf("nats url required for nats bus")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent invocations must be positive")
	}
	if c.InvocationTimeout <= 0 {
		return fmt.Errorf("invocation timeout must be positive")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("event history size must be positive")
	}
	if c.OpsAddr == "" {
		return fmt.Errorf("ops listen address required")
	}
	return nil
}

func intEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
		return parsed
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	if parsed, err := time.ParseDuration(val); err == nil && parsed >= 0 {
		return parsed
	}
	return def
}
