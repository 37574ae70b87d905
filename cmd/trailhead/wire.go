// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/access"
	"github.com/trailhead/trailhead/internal/api"
	"github.com/trailhead/trailhead/internal/auth"
	"github.com/trailhead/trailhead/internal/auth/postgres"
	"github.com/trailhead/trailhead/internal/config"
	"github.com/trailhead/trailhead/internal/mail"
	"github.com/trailhead/trailhead/internal/ratelimit"
)

// buildAPIDeps wires the auth services, the access gate and the mailer on
// top of db. limiter may be nil.
func buildAPIDeps(cfg config.Config, db Database, limiter ratelimit.Limiter, logger *slog.Logger) (api.Deps, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(auth.HashParams{
		Memory:  cfg.Hash.MemoryKiB,
		Time:    cfg.Hash.Time,
		Threads: cfg.Hash.Threads,
	})
	if err != nil {
		return api.Deps{}, err
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte(cfg.JWT.Secret), TTL: cfg.JWT.TTL})
	if err != nil {
		return api.Deps{}, err
	}
	sessions, err := auth.NewSessionIssuer(tokens, auth.SessionConfig{
		CookieName: cfg.JWT.CookieName,
		CookieTTL:  cfg.JWT.CookieTTL,
		Secure:     cfg.Production(),
	})
	if err != nil {
		return api.Deps{}, err
	}

	mailer, err := newMailer(cfg.Mail, logger)
	if err != nil {
		return api.Deps{}, err
	}

	repo := postgres.NewCredentialRepository(db)

	accounts, err := auth.NewAuthService(repo, hasher, sessions,
		auth.WithServiceLogger(logger),
		auth.WithServiceMailer(mailer))
	if err != nil {
		return api.Deps{}, err
	}

	manager, err := auth.NewResetTokenManager(repo, auth.WithResetTTL(cfg.Reset.TTL))
	if err != nil {
		return api.Deps{}, err
	}
	resets, err := auth.NewPasswordResetService(auth.ResetServiceConfig{
		Repo:     repo,
		Hasher:   hasher,
		Manager:  manager,
		Mailer:   mailer,
		Sessions: sessions,
		BaseURL:  cfg.Reset.BaseURL,
		Logger:   logger,
	})
	if err != nil {
		return api.Deps{}, err
	}

	gate, err := access.NewGate(access.GateConfig{
		Tokens:     tokens,
		Subjects:   repo,
		CookieName: cfg.JWT.CookieName,
		Policy:     access.NewStaticPolicy(logger),
		WriteError: api.NewErrorWriter(logger),
		Logger:     logger,
	})
	if err != nil {
		return api.Deps{}, err
	}

	return api.Deps{
		Addr:           cfg.HTTP.Addr,
		Accounts:       accounts,
		Resets:         resets,
		Gate:           gate,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Limiter:        limiter,
		HSTS:           cfg.Production(),
		Logger:         logger,
		Version:        version,
	}, nil
}

func newMailer(cfg config.MailConfig, logger *slog.Logger) (auth.Mailer, error) {
	switch cfg.Driver {
	case config.MailDriverSMTP:
		m, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			From:     cfg.From,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.MailDriverLog:
		return mail.NewLogMailer(logger), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// rateLimiter is the configured limiter with what serve must probe and release.
type rateLimiter struct {
	limiter ratelimit.Limiter
	ping    func(context.Context) error
	close   func() error
}

func newRateLimiter(cfg config.RateLimit) (rateLimiter, error) {
	noop := func() error { return nil }
	if !cfg.Enabled() {
		return rateLimiter{close: noop}, nil
	}
	budget := ratelimit.Config{Requests: cfg.Requests, Window: cfg.Window}

	if cfg.RedisURL == "" {
		l, err := ratelimit.NewMemoryLimiter(budget)
		if err != nil {
			return rateLimiter{}, err
		}
		return rateLimiter{limiter: l, close: noop}, nil
	}

	client, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return rateLimiter{}, err
	}
	l, err := ratelimit.NewRedisLimiter(client, budget, "")
	if err != nil {
		_ = client.Close()
		return rateLimiter{}, err
	}
	return rateLimiter{limiter: l, ping: l.Ping, close: client.Close}, nil
}
