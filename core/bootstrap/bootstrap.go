// Package bootstrap brings up what every nudge binary needs before its own
// wiring: configuration, telemetry, logging, ids and the optional stores.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/nudge/common/id"
	"basegraph.app/nudge/common/logger"
	"basegraph.app/nudge/common/otel"
	"basegraph.app/nudge/core/config"
	"basegraph.app/nudge/core/db"
)

const closeTimeout = 10 * time.Second

// Runtime holds process-wide resources. DB and Redis stay nil until opened,
// and DB stays nil when no DATABASE_URL is configured.
type Runtime struct {
	Config config.Config
	DB     *db.DB
	Redis  *redis.Client

	telemetry *otel.Telemetry
}

// Start loads config for serviceType, installs telemetry before the logger so
// the OTLP handler can pick up the provider, and seeds the id generator.
func Start(ctx context.Context, serviceType config.ServiceType, node int64) (*Runtime, error) {
	cfg, err := config.Load(serviceType)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		return nil, fmt.Errorf("initializing otel: %w", err)
	}
	rt := &Runtime{Config: cfg, telemetry: telemetry}

	logger.Setup(cfg)
	slog.InfoContext(ctx, "nudge starting",
		"service", cfg.OTel.ServiceName,
		"env", cfg.Env,
		"otel", telemetry != nil,
		"database", cfg.DB.Enabled())

	if err := id.Init(node); err != nil {
		rt.Close()
		return nil, fmt.Errorf("initializing id generator: %w", err)
	}
	return rt, nil
}

// OpenDatabase connects to Postgres when one is configured.
func (r *Runtime) OpenDatabase(ctx context.Context) error {
	if !r.Config.DB.Enabled() {
		slog.InfoContext(ctx, "no database configured, auditing the environment target",
			"channel_id", r.Config.Audit.ChannelID)
		return nil
	}
	database, err := db.New(ctx, r.Config.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	r.DB = database
	return nil
}

// OpenRedis connects to the task stream's Redis.
func (r *Runtime) OpenRedis(ctx context.Context) error {
	opts, err := redis.ParseURL(r.Config.Pipeline.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connecting to redis: %w", err)
	}
	r.Redis = client
	slog.InfoContext(ctx, "redis connected", "stream", r.Config.Pipeline.RedisStream)
	return nil
}

// Close releases stores and flushes telemetry. It is safe on a partly
// started Runtime.
func (r *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			slog.WarnContext(ctx, "closing redis", "error", err)
		}
	}
	if r.DB != nil {
		r.DB.Close()
	}
	if r.telemetry != nil {
		if err := r.telemetry.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown error", "error", err)
		}
	}
}
