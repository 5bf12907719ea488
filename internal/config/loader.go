package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "IRWIN_"
	envConfigPath = "IRWIN_CONFIG"
	envNesting    = "__"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if IRWIN_CONFIG is set
//  3. env (prefix IRWIN_, "__" separates sections: IRWIN_ENGINE__NODES)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", envKeyValue)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKeyValue maps IRWIN_WORKER__SAMPLE_LIMIT to worker.sample_limit. The
// config file pointer itself is not a setting and is skipped.
func envKeyValue(key, value string) (string, any) {
	if key == envConfigPath {
		return "", nil
	}
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	key = strings.ReplaceAll(key, envNesting, ".")
	if key == "feed.players" {
		return key, splitList(value)
	}
	return key, value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Addr != "", "addr must not be empty")
	check(c.LogFormat == "text" || c.LogFormat == "json", "log_format must be text or json")
	check(c.Worker.Count >= 1, "worker.count must be at least 1")
	check(c.Worker.SampleLimit >= 1, "worker.sample_limit must be at least 1")
	check(c.Worker.FetchTimeout >= 0, "worker.fetch_timeout must not be negative")
	check(c.Worker.RepositoryTimeout >= 0, "worker.repository_timeout must not be negative")
	check(c.Worker.ScoreTimeout >= 0, "worker.score_timeout must not be negative")
	check(c.Worker.PublishTimeout >= 0, "worker.publish_timeout must not be negative")
	check(c.Engine.Path != "", "engine.path must not be empty")
	check(c.Engine.Threads >= 1, "engine.threads must be at least 1")
	check(c.Engine.Memory >= 1, "engine.memory must be at least 1")
	check(c.Engine.Nodes >= 1, "engine.nodes must be at least 1")
	check(c.API.RequestsPerSecond > 0, "api.requests_per_second must be positive")
	check(c.API.Timeout >= 0, "api.timeout must not be negative")
	check(c.API.PollInterval > 0, "api.poll_interval must be positive")
	check(c.DB.Path != "", "db.path must not be empty")
	check(c.Retry.MaxTries >= 1, "retry.max_tries must be at least 1")
	check(c.Retry.InitialInterval > 0, "retry.initial_interval must be positive")
	check(c.Retry.MaxInterval >= c.Retry.InitialInterval, "retry.max_interval must not be below retry.initial_interval")

	switch c.Feed.Mode {
	case FeedModeAPI:
		check(c.API.URL != "", "api.url must not be empty in api feed mode")
	case FeedModeMemory:
		check(c.Feed.QueueSize >= 1, "feed.queue_size must be at least 1")
	default:
		problems = append(problems, "feed.mode must be api or memory")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
