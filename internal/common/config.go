// Package common provides shared utilities for Tunex
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tunex
type Config struct {
	Environment string         `toml:"environment"`
	RunTag      string         `toml:"run_tag"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Backends    BackendsConfig `toml:"backends"`
	Router      RouterConfig   `toml:"router"`
	Control     ControlConfig  `toml:"control"`
	Bandit      BanditConfig   `toml:"bandit"`
	SLA         SLAConfig      `toml:"sla"`
	Jobs        JobsConfig     `toml:"jobs"`
	Load        LoadConfig     `toml:"load"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds on-disk layout configuration. All persisted state
// (jobs.json, events/, bandit_state.json, sla_policy.yaml, logs/) lives
// under DataPath; reports live under RunsDir.
type StorageConfig struct {
	DataPath string `toml:"data_path"`
	RunsDir  string `toml:"runs_dir"`
}

// BackendsConfig configures the outbound search backends.
// Mode "sim" runs the seeded in-process simulator; "http" talks to the
// real dense/rich endpoints.
type BackendsConfig struct {
	Mode      string  `toml:"mode"` // "sim" or "http"
	DenseURL  string  `toml:"dense_url"`
	RichURL   string  `toml:"rich_url"`
	Timeout   string  `toml:"timeout"`
	RateLimit int     `toml:"rate_limit"`
	Retries   int     `toml:"retries"`
	SimSeed   int64   `toml:"sim_seed"`
	SimError  float64 `toml:"sim_error_rate"`
}

// GetTimeout parses and returns the per-request backend deadline
func (c *BackendsConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// RouterConfig holds backend routing configuration.
// Prices are illustrative defaults and always configurable; decision
// sites read them from here, never from constants.
type RouterConfig struct {
	Mode           string  `toml:"mode"` // "rules" or "cost"
	TopKThreshold  int     `toml:"topk_threshold"`
	SamplingPct    float64 `toml:"sampling_pct"`
	LatencyWeight  float64 `toml:"latency_weight"`
	DensePricePer1K float64 `toml:"dense_price_per_1k"`
	RichPricePer1K  float64 `toml:"rich_price_per_1k"`
	HistorySize    int     `toml:"history_size"`
}

// ControlConfig holds adaptive controller configuration shared by the
// AIMD and PID policies.
type ControlConfig struct {
	Policy          string  `toml:"policy"` // "aimd" or "pid"
	TargetP95MS     float64 `toml:"target_p95_ms"`
	ThresholdFactor float64 `toml:"threshold_factor"`
	IncreaseStep    float64 `toml:"increase_step"`
	DecreaseFactor  float64 `toml:"decrease_factor"`
	CooldownSec     int     `toml:"cooldown_sec"`
	Kp              float64 `toml:"kp"`
	Ki              float64 `toml:"ki"`
	Kd              float64 `toml:"kd"`
	MaxAdjustment   float64 `toml:"max_adjustment"`
	BaseConcurrency int     `toml:"base_concurrency"`
	BaseBatchSize   int     `toml:"base_batch_size"`
}

// BanditConfig holds policy-arm selection configuration.
type BanditConfig struct {
	StatePath  string        `toml:"state_path"`
	Strategy   string        `toml:"strategy"` // "ucb1" or "epsilon"
	Alpha      float64       `toml:"alpha"`
	MinSamples int           `toml:"min_samples"`
	Epsilon    float64       `toml:"epsilon"`
	EpsDecay   float64       `toml:"eps_decay"`
	Arms       []string      `toml:"arms"`
	Weights    RewardWeights `toml:"weights"`
}

// SLAConfig holds SLA policy configuration.
type SLAConfig struct {
	PolicyPath    string  `toml:"policy_path"`
	RecallAt10Min float64 `toml:"recall_at_10_min"`
	P95MSMax      float64 `toml:"p95_ms_max"`
	CostMax       float64 `toml:"cost_max"`
}

// JobsConfig holds job manager configuration.
type JobsConfig struct {
	QueueSize      int    `toml:"queue_size"`
	CancelGrace    string `toml:"cancel_grace"`
	LogTailMax     int    `toml:"log_tail_max"`
	IdempotencyTTL string `toml:"idempotency_ttl"`
}

// GetCancelGrace parses the cancel escalation grace period
func (c *JobsConfig) GetCancelGrace() time.Duration {
	d, err := time.ParseDuration(c.CancelGrace)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetIdempotencyTTL parses the window in which a finished job still
// satisfies an identical re-submit.
func (c *JobsConfig) GetIdempotencyTTL() time.Duration {
	d, err := time.ParseDuration(c.IdempotencyTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// LoadConfig holds load generator defaults (overridable per request).
type LoadConfig struct {
	QPS          float64 `toml:"qps"`
	Concurrency  int     `toml:"concurrency"`
	WindowSec    int     `toml:"window_sec"`
	Rounds       int     `toml:"rounds"`
	WarmupSec    int     `toml:"warmup_sec"`
	RecallSample float64 `toml:"recall_sample"`
	TopKMix      []int   `toml:"topk_mix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataPath: "data",
			RunsDir:  "data/reports",
		},
		Backends: BackendsConfig{
			Mode:      "sim",
			DenseURL:  "http://localhost:6333",
			RichURL:   "http://localhost:8000",
			Timeout:   "5s",
			RateLimit: 200,
			Retries:   3,
			SimSeed:   1,
			SimError:  0.01,
		},
		Router: RouterConfig{
			Mode:            "rules",
			TopKThreshold:   32,
			SamplingPct:     0.05,
			LatencyWeight:   0.7,
			DensePricePer1K: 0.02,
			RichPricePer1K:  0.05,
			HistorySize:     128,
		},
		Control: ControlConfig{
			Policy:          "aimd",
			TargetP95MS:     1200,
			ThresholdFactor: 1.2,
			IncreaseStep:    0.05,
			DecreaseFactor:  0.7,
			CooldownSec:     30,
			Kp:              0.5,
			Ki:              0.1,
			Kd:              0.05,
			MaxAdjustment:   0.3,
			BaseConcurrency: 8,
			BaseBatchSize:   16,
		},
		Bandit: BanditConfig{
			Strategy:   "ucb1",
			Alpha:      0.3,
			MinSamples: 15,
			Epsilon:    0.1,
			EpsDecay:   0.995,
			Arms:       []string{"fast", "balanced", "quality"},
			Weights:    DefaultRewardWeights(),
		},
		SLA: SLAConfig{
			RecallAt10Min: 0.94,
			P95MSMax:      1800,
			CostMax:       1e-4,
		},
		Jobs: JobsConfig{
			QueueSize:      64,
			CancelGrace:    "10s",
			LogTailMax:     2000,
			IdempotencyTTL: "10m",
		},
		Load: LoadConfig{
			QPS:          10,
			Concurrency:  8,
			WindowSec:    30,
			Rounds:       2,
			WarmupSec:    5,
			RecallSample: 0.2,
			TopKMix:      []int{10, 10, 10, 50},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfigFile loads configuration from files with environment overrides
func LoadConfigFile(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	// Resolve derived paths once so components never re-derive them
	if config.Bandit.StatePath == "" {
		config.Bandit.StatePath = filepath.Join(config.Storage.DataPath, "bandit_state.json")
	}
	if config.SLA.PolicyPath == "" {
		config.SLA.PolicyPath = filepath.Join(config.Storage.DataPath, "sla_policy.yaml")
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Unknown environment variables are ignored; malformed values in the
// recognized set are errors.
func applyEnvOverrides(config *Config) error {
	if env := os.Getenv("TUNEX_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("TUNEX_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("TUNEX_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("TUNEX_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("TUNEX_DATA_PATH"); path != "" {
		config.Storage.DataPath = path
		config.Storage.RunsDir = filepath.Join(path, "reports")
	}

	if v := os.Getenv("QDRANT_URL"); v != "" {
		config.Backends.DenseURL = v
	}
	if v := os.Getenv("RAG_API_BASE"); v != "" {
		config.Backends.RichURL = v
	}
	if v := os.Getenv("BANDIT_STATE"); v != "" {
		config.Bandit.StatePath = v
	}
	if v := os.Getenv("BANDIT_ALPHA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ErrInvalidInput("BANDIT_ALPHA: %q is not a number", v)
		}
		config.Bandit.Alpha = f
	}
	if v := os.Getenv("REWARD_WEIGHTS"); v != "" {
		w, err := ParseRewardWeights(v)
		if err != nil {
			return err
		}
		config.Bandit.Weights = w
	}
	if v := os.Getenv("TARGET_P95"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ErrInvalidInput("TARGET_P95: %q is not a number", v)
		}
		config.Control.TargetP95MS = f
	}
	if v := os.Getenv("SLA_P95"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ErrInvalidInput("SLA_P95: %q is not a number", v)
		}
		config.SLA.P95MSMax = f
	}
	if v := os.Getenv("RUN_TAG"); v != "" {
		config.RunTag = v
	}
	if v := os.Getenv("RUNS_DIR"); v != "" {
		config.Storage.RunsDir = v
	}

	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
