// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trailhead/trailhead/internal/config"
	"github.com/trailhead/trailhead/internal/logging"
	"github.com/trailhead/trailhead/internal/observability"
	"github.com/trailhead/trailhead/internal/store"
	"github.com/trailhead/trailhead/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of both servers.
const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API that handles signup, login, password changes and
password recovery, plus the metrics and health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: configFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, opts, cmd, nil)
		},
	}

	cmd.Flags().String("environment", defaults.Environment, "deployment environment (development or production)")
	cmd.Flags().String("http-addr", defaults.HTTP.Addr, "API listen address")
	cmd.Flags().String("metrics-addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log-format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.autoMigrate, "auto-migrate", false, "apply pending migrations before serving")

	return cmd
}

// runServeWithDeps starts the servers and blocks until ctx ends, a signal
// arrives or a server fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg config.Config, opts *serveOptions, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault(logging.Options{
		Service: "trailhead",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   logging.ParseLevel(cfg.Log.Level),
		Writer:  cmd.ErrOrStderr(),
	})
	logger.Info("starting trailhead",
		"environment", cfg.Environment,
		"http_addr", cfg.HTTP.Addr,
		"mail_driver", cfg.Mail.Driver)

	if opts.autoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps, logger); err != nil {
			return err
		}
	}

	db, err := deps.ConnectDB(ctx, store.ConnectConfig{
		URL:       cfg.Database.URL,
		Attempts:  store.DefaultConnectAttempts,
		BaseDelay: store.DefaultConnectBaseDelay,
		MaxDelay:  store.DefaultConnectMaxDelay,
		Logger:    logger,
	})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	limiter, err := newRateLimiter(cfg.RateLimit)
	if err != nil {
		return oops.With("operation", "create rate limiter").Wrap(err)
	}
	defer func() {
		if closeErr := limiter.close(); closeErr != nil {
			errutil.LogError(logger, "closing rate limiter", closeErr)
		}
	}()

	apiDeps, err := buildAPIDeps(cfg, db, limiter.limiter, logger)
	if err != nil {
		return oops.With("operation", "wire services").Wrap(err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	apiServer, err := deps.APIServerFactory(apiDeps)
	if err != nil {
		return oops.With("operation", "create api server").Wrap(err)
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)

	var obsServer Server
	if cfg.Metrics.Addr != "" {
		ready := allReady(store.Readiness(db), limiter.ping)
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopServer(apiServer, "api", logger)
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	cmd.Println("Trailhead started on " + apiServer.Addr())
	<-ctx.Done()
	logger.Info("shutting down", "cause", context.Cause(ctx))

	if obsServer != nil {
		stopServer(obsServer, "observability", logger)
	}
	stopServer(apiServer, "api", logger)

	logger.Info("shutdown complete")
	return nil
}

func autoMigrate(databaseURL string, deps *ServeDeps, logger *slog.Logger) error {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			errutil.LogError(logger, "closing migrator", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	v, _, err := m.Version()
	if err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("schema up to date", "version", v)
	return nil
}

// allReady passes only when every non-nil check passes.
func allReady(checks ...func(context.Context) error) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func stopServer(s Server, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error. It
// returns when the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
