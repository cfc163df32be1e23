// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default connection settings.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
	maxConnectBackoff      = 10 * time.Second
)

// ConnectConfig controls pool creation and the startup readiness probe.
type ConnectConfig struct {
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
	// Attempts is how many times the database is pinged before giving up.
	Attempts uint64
	// Backoff is the initial delay between pings; it doubles each attempt.
	Backoff time.Duration
	Logger  *slog.Logger
}

func (c ConnectConfig) withDefaults() ConnectConfig {
	if c.Attempts == 0 {
		c.Attempts = DefaultConnectAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultConnectBackoff
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// pinger is the part of pgxpool.Pool used by the readiness probe.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect creates a connection pool for databaseURL and waits until the
// database answers. The caller owns the pool and must Close it.
func Connect(ctx context.Context, databaseURL string, cfg ConnectConfig) (*pgxpool.Pool, error) {
	cfg = cfg.withDefaults()

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitReady(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitReady pings p with exponential backoff until it succeeds, the
// attempts are used up or ctx is done.
func waitReady(ctx context.Context, p pinger, cfg ConnectConfig) error {
	backoff := retry.WithMaxRetries(cfg.Attempts-1,
		retry.WithCappedDuration(maxConnectBackoff, retry.NewExponential(cfg.Backoff)))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			cfg.Logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"max_attempts", cfg.Attempts,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
