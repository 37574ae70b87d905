// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/trailhead/trailhead/internal/access"
	"github.com/trailhead/trailhead/internal/auth"
	"github.com/trailhead/trailhead/pkg/errutil"
)

// Envelope statuses: fail for caller errors, error for server errors.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

const msgInternal = "Something went very wrong!"

type envelope struct {
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind auth.Kind) int {
	switch kind {
	case auth.KindNoCredential, auth.KindInvalidCredential, auth.KindExpired,
		auth.KindSubjectGone, auth.KindCredentialChanged,
		auth.KindWrongCurrentPassword, auth.KindInvalidLogin:
		return http.StatusUnauthorized
	case auth.KindForbidden:
		return http.StatusForbidden
	case auth.KindInvalidOrExpired, auth.KindInvalidInput:
		return http.StatusBadRequest
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindEmailTaken:
		return http.StatusConflict
	case auth.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorWriter returns the error renderer shared by handlers and the access gate.
func NewErrorWriter(logger *slog.Logger) access.ErrorWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		writeErrorResponse(logger, w, r, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorResponse(s.logger, w, r, err)
}

func writeErrorResponse(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	status := StatusOf(kind)

	message := auth.MessageOf(err)
	if !kind.Operational() || message == "" {
		message = msgInternal
	}

	env := envelope{Status: statusFail, Message: message}
	if status >= http.StatusInternalServerError {
		env.Status = statusError
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	} else {
		logger.DebugContext(r.Context(), "request refused", "kind", kind.String(), "status", status)
	}
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}
