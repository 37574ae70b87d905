// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

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

// Connection retry defaults.
const (
	DefaultConnectAttempts  = 8
	DefaultConnectBaseDelay = 250 * time.Millisecond
	DefaultConnectMaxDelay  = 5 * time.Second
)

// ConnectConfig controls how Connect reaches the database.
type ConnectConfig struct {
	URL string
	// Attempts bounds the number of pings, including the first.
	Attempts  uint64
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Logger    *slog.Logger
}

// pinger is the part of *pgxpool.Pool used to wait for the database.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool and pings it with exponential backoff until the
// database answers, the attempts run out, or ctx ends. A malformed URL fails
// immediately.
func Connect(ctx context.Context, cfg ConnectConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, cfg ConnectConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	base := cfg.BaseDelay
	if base <= 0 {
		base = DefaultConnectBaseDelay
	}
	ceiling := cfg.MaxDelay
	if ceiling <= 0 {
		ceiling = DefaultConnectMaxDelay
	}

	backoff := retry.NewExponential(base)
	backoff = retry.WithCappedDuration(ceiling, backoff)
	backoff = retry.WithMaxRetries(attempts-1, backoff)

	var attempt uint64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
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

// Readiness returns a readiness probe that pings the pool.
func Readiness(db pinger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return oops.Code("DB_NOT_READY").Wrap(err)
		}
		return nil
	}
}
