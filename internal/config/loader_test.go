package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/irwin/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Worker.SampleLimit, convey.ShouldEqual, 10)
				convey.So(cfg.Engine.Nodes, convey.ShouldEqual, 4_500_000)
				convey.So(cfg.Worker.ScoreTimeout, convey.ShouldEqual, 10*time.Minute)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("IRWIN_ADDR", ":8080")
			_ = os.Setenv("IRWIN_WORKER__COUNT", "3")
			_ = os.Setenv("IRWIN_WORKER__SAMPLE_LIMIT", "5")
			_ = os.Setenv("IRWIN_WORKER__SCORE_TIMEOUT", "45s")
			_ = os.Setenv("IRWIN_ENGINE__NODES", "1000")
			_ = os.Setenv("IRWIN_RETRY__MAX_TRIES", "2")
			_ = os.Setenv("IRWIN_FEED__MODE", "memory")
			_ = os.Setenv("IRWIN_FEED__PLAYERS", "alice, bob,,carol")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Worker.Count, convey.ShouldEqual, 3)
				convey.So(cfg.Worker.SampleLimit, convey.ShouldEqual, 5)
				convey.So(cfg.Worker.ScoreTimeout, convey.ShouldEqual, 45*time.Second)
				convey.So(cfg.Engine.Nodes, convey.ShouldEqual, 1000)
				convey.So(cfg.Retry.MaxTries, convey.ShouldEqual, 2)
				convey.So(cfg.Feed.Mode, convey.ShouldEqual, config.FeedModeMemory)
				convey.So(cfg.Feed.Players, convey.ShouldResemble, []string{"alice", "bob", "carol"})
			})

			convey.Convey("Then untouched nested defaults survive", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Engine.Threads, convey.ShouldEqual, 4)
				convey.So(cfg.Worker.FetchTimeout, convey.ShouldEqual, time.Minute)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
worker:
  count: 2
  sample_limit: 7
  publish_timeout: 2m
engine:
  path: /usr/local/bin/stockfish
  threads: 8
feed:
  mode: memory
  players: [u1, u2]
`)
			_ = os.Setenv("IRWIN_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Worker.Count, convey.ShouldEqual, 2)
				convey.So(cfg.Worker.SampleLimit, convey.ShouldEqual, 7)
				convey.So(cfg.Worker.PublishTimeout, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.Engine.Path, convey.ShouldEqual, "/usr/local/bin/stockfish")
				convey.So(cfg.Engine.Threads, convey.ShouldEqual, 8)
				convey.So(cfg.Engine.Memory, convey.ShouldEqual, 2048)
				convey.So(cfg.Feed.Players, convey.ShouldResemble, []string{"u1", "u2"})
			})

			convey.Convey("And env vars are set too", func() {
				_ = os.Setenv("IRWIN_WORKER__SAMPLE_LIMIT", "3")
				_ = os.Setenv("IRWIN_ADDR", ":7070")

				cfg, err := config.Load(ctx)

				convey.Convey("Then env vars take precedence over the file", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
					convey.So(cfg.Worker.SampleLimit, convey.ShouldEqual, 3)
					convey.So(cfg.Worker.Count, convey.ShouldEqual, 2)
				})
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("IRWIN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then it fails with ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the environment produces an invalid config", func() {
			_ = os.Setenv("IRWIN_WORKER__SAMPLE_LIMIT", "0")

			_, err := config.Load(ctx)

			convey.Convey("Then it fails with ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "irwin.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "IRWIN_") {
			_ = os.Unsetenv(key)
		}
	}
}
