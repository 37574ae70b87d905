// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trailhead/trailhead/internal/access"
	"github.com/trailhead/trailhead/internal/api"
	"github.com/trailhead/trailhead/internal/auth"
	authpg "github.com/trailhead/trailhead/internal/auth/postgres"
	"github.com/trailhead/trailhead/internal/store"
)

const testSecret = "integration-secret-0123456789abcdef"

// outbox is a Mailer that keeps every message for inspection.
type outbox struct {
	mu   sync.Mutex
	sent []auth.Message
}

func (o *outbox) Send(_ context.Context, msg auth.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

var resetLink = regexp.MustCompile(`/api/v1/users/resetPassword/(\S+)`)

// lastResetSecret returns the secret from the newest reset email to addr.
func (o *outbox) lastResetSecret(addr string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To != addr {
			continue
		}
		if m := resetLink.FindStringSubmatch(o.sent[i].Body); m != nil {
			return m[1]
		}
	}
	return ""
}

// testEnv holds the database container and an API server wired to it.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pool      *pgxpool.Pool
	mail      *outbox
	server    *httptest.Server
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel, mail: &outbox{}}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("trailhead_test"),
		postgres.WithUsername("trailhead"),
		postgres.WithPassword("trailhead"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	_ = migrator.Close()

	env.pool, err = store.Connect(ctx, store.ConnectConfig{URL: connStr})
	if err != nil {
		env.cleanup()
		return nil, err
	}

	handler, err := env.wire()
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.server = httptest.NewServer(handler)
	return env, nil
}

// wire builds the same service graph the serve command does, with cheap
// hashing and the outbox as mailer.
func (e *testEnv) wire() (http.Handler, error) {
	logger := slog.New(slog.DiscardHandler)

	hasher, err := auth.NewArgon2idHasherWithParams(auth.HashParams{Memory: 2048, Time: 1, Threads: 1})
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte(testSecret), TTL: time.Hour})
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionIssuer(tokens, auth.SessionConfig{CookieName: "jwt", CookieTTL: time.Hour})
	if err != nil {
		return nil, err
	}

	repo := authpg.NewCredentialRepository(e.pool)
	accounts, err := auth.NewAuthService(repo, hasher, sessions,
		auth.WithServiceLogger(logger), auth.WithServiceMailer(e.mail))
	if err != nil {
		return nil, err
	}
	manager, err := auth.NewResetTokenManager(repo)
	if err != nil {
		return nil, err
	}
	resets, err := auth.NewPasswordResetService(auth.ResetServiceConfig{
		Repo:     repo,
		Hasher:   hasher,
		Manager:  manager,
		Mailer:   e.mail,
		Sessions: sessions,
		BaseURL:  "http://trailhead.test",
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	gate, err := access.NewGate(access.GateConfig{
		Tokens:     tokens,
		Subjects:   repo,
		CookieName: "jwt",
		Policy:     access.NewStaticPolicy(logger),
		WriteError: api.NewErrorWriter(logger),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	srv, err := api.New(api.Deps{Addr: "127.0.0.1:0", Accounts: accounts, Resets: resets, Gate: gate, Logger: logger})
	if err != nil {
		return nil, err
	}
	return srv.Handler(), nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

// call sends a JSON request and decodes the envelope.
func (e *testEnv) call(method, path, token string, body any) (int, map[string]any, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(e.ctx, method, e.server.URL+path, r)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resp.StatusCode, nil, err
		}
	}
	return resp.StatusCode, out, nil
}
