// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"time"
)

// Feed modes.
const (
	FeedModeAPI    = "api"
	FeedModeMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the operational HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	Worker WorkerConfig `koanf:"worker"`
	Engine EngineConfig `koanf:"engine"`
	API    APIConfig    `koanf:"api"`
	DB     DBConfig     `koanf:"db"`
	Retry  RetryConfig  `koanf:"retry"`
	Feed   FeedConfig   `koanf:"feed"`
}

// WorkerConfig controls the deep-queue workers.
type WorkerConfig struct {
	// Count is the number of parallel workers, each with its own engine.
	Count int `koanf:"count"`

	// SampleLimit bounds how many unanalysed games are scored per player.
	SampleLimit int `koanf:"sample_limit"`

	// Timeouts bound each blocking stage of an iteration. Zero disables the bound.
	FetchTimeout      time.Duration `koanf:"fetch_timeout"`
	RepositoryTimeout time.Duration `koanf:"repository_timeout"`
	ScoreTimeout      time.Duration `koanf:"score_timeout"`
	PublishTimeout    time.Duration `koanf:"publish_timeout"`
}

// EngineConfig configures the UCI engine process.
type EngineConfig struct {
	Path    string `koanf:"path"`
	Threads int    `koanf:"threads"`
	Memory  int    `koanf:"memory"`
	Nodes   int    `koanf:"nodes"`
}

// APIConfig configures the remote job and report API.
type APIConfig struct {
	URL               string        `koanf:"url"`
	Token             string        `koanf:"token"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
	PollInterval      time.Duration `koanf:"poll_interval"`
}

// DBConfig configures the SQLite repository.
type DBConfig struct {
	// Path is a file path or ":memory:".
	Path string `koanf:"path"`
}

// RetryConfig bounds retries of idempotent boundary calls.
type RetryConfig struct {
	MaxTries        uint          `koanf:"max_tries"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
}

// FeedConfig selects where player ids come from.
type FeedConfig struct {
	// Mode is "api" (remote job endpoint) or "memory" (seeded from Players).
	Mode      string   `koanf:"mode"`
	Players   []string `koanf:"players"`
	QueueSize int      `koanf:"queue_size"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Worker: WorkerConfig{
			Count:             1,
			SampleLimit:       10,
			FetchTimeout:      time.Minute,
			RepositoryTimeout: 30 * time.Second,
			ScoreTimeout:      10 * time.Minute,
			PublishTimeout:    time.Minute,
		},
		Engine: EngineConfig{
			Path:    "stockfish",
			Threads: 4,
			Memory:  2048,
			Nodes:   4_500_000,
		},
		API: APIConfig{
			URL:               "http://localhost:9663",
			RequestsPerSecond: 2,
			Timeout:           30 * time.Second,
			PollInterval:      5 * time.Second,
		},
		DB: DBConfig{
			Path: "irwin.db",
		},
		Retry: RetryConfig{
			MaxTries:        5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
		},
		Feed: FeedConfig{
			Mode:      FeedModeAPI,
			QueueSize: 1024,
		},
	}
}
