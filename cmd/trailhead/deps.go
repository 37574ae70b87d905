// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trailhead/trailhead/internal/api"
	"github.com/trailhead/trailhead/internal/observability"
	"github.com/trailhead/trailhead/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// ConnectDB opens the database pool.
	// Default: store.Connect
	ConnectDB func(ctx context.Context, cfg store.ConnectConfig) (Database, error)

	// MigratorFactory opens a migrator for --auto-migrate.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// APIServerFactory creates the account API server.
	// Default: api.New
	APIServerFactory func(deps api.Deps) (Server, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) Server
}

// Database is the part of *pgxpool.Pool the service uses.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// Server wraps the lifecycle shared by api.Server and observability.Server.
type Server interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := &ServeDeps{}
	if d != nil {
		*out = *d
	}
	if out.ConnectDB == nil {
		out.ConnectDB = func(ctx context.Context, cfg store.ConnectConfig) (Database, error) {
			pool, err := store.Connect(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newStoreMigrator
	}
	if out.APIServerFactory == nil {
		out.APIServerFactory = func(deps api.Deps) (Server, error) {
			srv, err := api.New(deps)
			if err != nil {
				return nil, err
			}
			return srv, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) Server {
			return observability.NewServer(addr, ready, logger)
		}
	}
	return out
}

func newStoreMigrator(databaseURL string) (Migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}
