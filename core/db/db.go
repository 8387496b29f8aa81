package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so stores can run
// inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a pgxpool.Pool.
type DB struct {
	pool *pgxpool.Pool
}

type Config struct {
	DSN string

	// AutoMigrate applies embedded migrations on startup.
	AutoMigrate bool

	// Audits are short and mostly wait on Slack, a handful of connections is plenty.
	MaxConns int32

	MinConns int32
}

// Enabled reports whether a database is configured. Without one, audit
// targets come from the environment.
func (c Config) Enabled() bool {
	return c.DSN != ""
}

// New creates a new DB instance with the given configuration, applying
// migrations first when AutoMigrate is set.
func New(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.AutoMigrate {
		applied, err := Migrate(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if applied {
			slog.InfoContext(ctx, "database migrations applied")
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 1
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// Querier returns the pool for non-transactional operations.
func (db *DB) Querier() Querier {
	return db.pool
}
