package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchpulse/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.MaxSubscribersTotal, convey.ShouldEqual, 100)
			convey.So(cfg.MaxSubscribersPerMatch, convey.ShouldEqual, 20)
			convey.So(cfg.SendTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.IngestRateLimit, convey.ShouldEqual, 0)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"per-match above total", func(c *config.Config) { c.MaxSubscribersPerMatch = 101 }},
			{"zero send timeout", func(c *config.Config) { c.SendTimeoutMS = 0 }},
			{"negative rate limit", func(c *config.Config) { c.IngestRateLimit = -1 }},
			{"rate limit without window", func(c *config.Config) { c.IngestRateLimit = 5; c.IngestRateWindowMS = 0 }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"unknown store", func(c *config.Config) { c.Store = "redis" }},
			{"badger without dir", func(c *config.Config) { c.Store = config.StoreBadger; c.BadgerDir = "" }},
			{"postgres without dsn", func(c *config.Config) { c.Store = config.StorePostgres }},
		}

		for _, tc := range cases {
			convey.Convey("It rejects "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("It accepts a postgres store with a dsn", func() {
			cfg.Store = config.StorePostgres
			cfg.PostgresDSN = "postgres://localhost/matchpulse"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
