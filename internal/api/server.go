// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

// Package api serves the account and session HTTP endpoints.
//
//	srv, err := api.New(deps)
//	errCh, err := srv.Start()
//	defer srv.Stop(ctx)
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/access"
	"github.com/trailhead/trailhead/internal/auth"
	"github.com/trailhead/trailhead/internal/ratelimit"
)

// AccountService is the account and session surface the handlers use.
// *auth.Service implements it.
type AccountService interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Credential, *auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Credential, *auth.Session, error)
	ChangePassword(ctx context.Context, subjectID ulid.ULID, current, newPassword, confirm string) (*auth.Session, error)
	Get(ctx context.Context, id ulid.ULID, filter auth.LookupFilter) (*auth.Credential, error)
	UpdateProfile(ctx context.Context, subjectID ulid.ULID, in auth.ProfileUpdate) (*auth.Credential, error)
	Deactivate(ctx context.Context, subjectID ulid.ULID) error
	AssignRole(ctx context.Context, id ulid.ULID, role auth.Role) (*auth.Credential, error)
	EndSession() *auth.Session
}

// ResetService is the forgotten-password surface. *auth.PasswordResetService
// implements it.
type ResetService interface {
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, secret, newPassword, confirm string) (*auth.Credential, *auth.Session, error)
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Addr     string
	Accounts AccountService
	Resets   ResetService
	Gate     *access.Gate
	// AllowedOrigins are CORS origin globs. Empty disables CORS headers.
	AllowedOrigins []string
	// Limiter budgets /api requests per client IP. Nil disables limiting.
	Limiter ratelimit.Limiter
	// HSTS adds Strict-Transport-Security to every response.
	HSTS    bool
	Logger  *slog.Logger
	Version string
}

// Server is the account API HTTP server.
type Server struct {
	addr     string
	accounts AccountService
	resets   ResetService
	gate     *access.Gate
	origins  []glob.Glob
	limiter  ratelimit.Limiter
	hsts     bool
	logger   *slog.Logger
	version  string

	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// New validates deps and builds the server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.In("api").Code("API_CONFIG_INVALID").New("account service is required")
	case deps.Resets == nil:
		return nil, oops.In("api").Code("API_CONFIG_INVALID").New("reset service is required")
	case deps.Gate == nil:
		return nil, oops.In("api").Code("API_CONFIG_INVALID").New("access gate is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	origins := make([]glob.Glob, 0, len(deps.AllowedOrigins))
	for _, pattern := range deps.AllowedOrigins {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.In("api").Code("API_CONFIG_INVALID").With("origin", pattern).Wrap(err)
		}
		origins = append(origins, g)
	}

	s := &Server{
		addr:     deps.Addr,
		accounts: deps.Accounts,
		resets:   deps.Resets,
		gate:     deps.Gate,
		origins:  origins,
		limiter:  deps.Limiter,
		hsts:     deps.HSTS,
		logger:   deps.Logger,
		version:  deps.Version,
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("API_ALREADY_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String(), "version", s.version)
	return errCh, nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
