package database

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is a type alias for pgxpool.Pool for use in other packages.
type Pool = pgxpool.Pool

const applicationName = "coursegrid"

// Option adjusts the pool configuration before it is opened.
type Option func(*pgxpool.Config)

// WithStatementTimeout makes the server cancel any statement running longer
// than d. Zero leaves the server default.
func WithStatementTimeout(d time.Duration) Option {
	return func(c *pgxpool.Config) {
		if d > 0 {
			c.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(d.Milliseconds(), 10)
		}
	}
}

// Connect opens a pool and checks it with a ping. maxConns <= 0 keeps the
// pgxpool default.
func Connect(ctx context.Context, databaseURL string, maxConns int, opts ...Option) (*pgxpool.Pool, error) {
	config, err := poolConfig(databaseURL, maxConns, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

func poolConfig(databaseURL string, maxConns int, opts ...Option) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if maxConns > 0 && maxConns <= math.MaxInt32 {
		config.MaxConns = int32(maxConns) // #nosec G115 -- bounds checked above
	}
	if _, set := config.ConnConfig.RuntimeParams["application_name"]; !set {
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	// Audit timestamps and token expiry comparisons assume UTC sessions.
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"

	for _, opt := range opts {
		opt(config)
	}
	return config, nil
}
