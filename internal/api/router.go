// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/access"
	"github.com/trailhead/trailhead/internal/auth"
)

const msgRouteNotFound = "Can't find the requested route on this server!"

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, oops.With("path", r.URL.Path).
			Wrap(auth.NewError(auth.KindNotFound, "ROUTE_NOT_FOUND", msgRouteNotFound)))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimitMiddleware)
		}

		r.With(s.gate.Optional).Get("/session", s.handleSession)

		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Get("/logout", s.handleLogout)
			r.Post("/forgotPassword", s.handleForgotPassword)
			r.Patch("/resetPassword/{token}", s.handleResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(s.gate.Require)

				r.Patch("/updateMyPassword", s.handleUpdateMyPassword)
				r.Get("/me", s.handleMe)
				r.Patch("/updateMe", s.handleUpdateMe)
				r.Delete("/deleteMe", s.handleDeleteMe)

				r.With(s.gate.RequireRoles(auth.RoleAdmin)).Get("/{id}", s.handleGetUser)
				r.With(s.gate.RequirePermission("grant", access.Resource("role"))).Patch("/{id}/role", s.handleAssignRole)
			})
		})
	})

	return r
}
