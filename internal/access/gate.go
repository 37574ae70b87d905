// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/auth"
	"github.com/trailhead/trailhead/internal/logging"
	"github.com/trailhead/trailhead/internal/observability"
	"github.com/trailhead/trailhead/pkg/errutil"
)

// Gate names used in metrics and logs.
const (
	GateRequire    = "require"
	GateOptional   = "optional"
	GateRole       = "role"
	GatePermission = "permission"
)

// Outcome is the result of one gate decision.
type Outcome string

// Gate outcomes.
const (
	OutcomeAdmitted          Outcome = "admitted"
	OutcomeAnonymous         Outcome = "anonymous"
	OutcomeNoCredential      Outcome = "no_credential"
	OutcomeInvalidCredential Outcome = "invalid_credential"
	OutcomeSubjectGone       Outcome = "subject_gone"
	OutcomeCredentialChanged Outcome = "credential_changed"
	OutcomeForbidden         Outcome = "forbidden"
	OutcomeStoreUnavailable  Outcome = "store_unavailable"
)

// OutcomeOf maps an authentication error to its gate outcome. Expired
// tokens share the invalid credential outcome.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeAdmitted
	}
	switch auth.KindOf(err) {
	case auth.KindNoCredential:
		return OutcomeNoCredential
	case auth.KindInvalidCredential, auth.KindExpired:
		return OutcomeInvalidCredential
	case auth.KindSubjectGone:
		return OutcomeSubjectGone
	case auth.KindCredentialChanged:
		return OutcomeCredentialChanged
	case auth.KindForbidden:
		return OutcomeForbidden
	default:
		return OutcomeStoreUnavailable
	}
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// GateConfig wires a Gate.
type GateConfig struct {
	Tokens   TokenVerifier
	Subjects SubjectResolver
	// CookieName is the session cookie read when no Authorization header is sent.
	CookieName string
	// Policy backs RequirePermission. Nil denies every permission check.
	Policy     Authorizer
	WriteError ErrorWriter
	Logger     *slog.Logger
}

// Gate is the request middleware enforcing authentication and authorization.
type Gate struct {
	tokens     TokenVerifier
	subjects   SubjectResolver
	cookieName string
	policy     Authorizer
	writeError ErrorWriter
	logger     *slog.Logger
}

// NewGate validates cfg and builds a Gate.
func NewGate(cfg GateConfig) (*Gate, error) {
	switch {
	case cfg.Tokens == nil:
		return nil, oops.In("access").Code("GATE_CONFIG_INVALID").New("token verifier is required")
	case cfg.Subjects == nil:
		return nil, oops.In("access").Code("GATE_CONFIG_INVALID").New("subject resolver is required")
	case cfg.WriteError == nil:
		return nil, oops.In("access").Code("GATE_CONFIG_INVALID").New("error writer is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = auth.DefaultCookieName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		tokens:     cfg.Tokens,
		subjects:   cfg.Subjects,
		cookieName: cfg.CookieName,
		policy:     cfg.Policy,
		writeError: cfg.WriteError,
		logger:     cfg.Logger,
	}, nil
}

// Authenticate runs the mandatory checks against r and returns the admitted
// identity. Failures carry an auth.Kind.
func (g *Gate) Authenticate(r *http.Request) (Identity, error) {
	token := g.extractToken(r)
	if token == "" {
		return Identity{}, auth.NewError(auth.KindNoCredential, "GATE_NO_CREDENTIAL", auth.MsgNoCredential)
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	cred, err := g.subjects.FindByID(r.Context(), claims.SubjectID, auth.ActiveOnly)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return Identity{}, oops.With("subject_id", claims.SubjectID.String()).
				Wrap(auth.WrapError(auth.KindSubjectGone, "GATE_SUBJECT_GONE", auth.MsgSubjectGone, err))
		}
		return Identity{}, auth.StoreUnavailable("gate resolve subject", err)
	}

	if auth.IsStale(claims.IssuedAt, cred.PasswordChangedAt) {
		return Identity{}, oops.With("subject_id", cred.ID.String()).
			Wrap(auth.NewError(auth.KindCredentialChanged, "GATE_CREDENTIAL_CHANGED", auth.MsgCredentialChanged))
	}

	return Identity{SubjectID: cred.ID, Role: cred.Role}, nil
}

// extractToken prefers a Bearer Authorization header over the session
// cookie. Other schemes are ignored and the cookie is read instead.
func (g *Gate) extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(g.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Require admits only authenticated callers and attaches their Identity.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r)
		if err != nil {
			g.reject(w, r, GateRequire, err)
			return
		}
		g.record(r.Context(), GateRequire, OutcomeAdmitted, id)
		next.ServeHTTP(w, r.WithContext(admit(r.Context(), id)))
	})
}

// Optional attaches an Identity when the caller is authenticated and
// otherwise continues anonymously. It never rejects, so it must only guard
// read-only rendering paths.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r)
		if err != nil {
			if auth.KindOf(err) == auth.KindStoreUnavailable {
				errutil.LogErrorContext(r.Context(), g.logger, "optional gate fell back to anonymous", err)
			}
			g.record(r.Context(), GateOptional, OutcomeAnonymous, Identity{})
			next.ServeHTTP(w, r)
			return
		}
		g.record(r.Context(), GateOptional, OutcomeAdmitted, id)
		next.ServeHTTP(w, r.WithContext(admit(r.Context(), id)))
	})
}

// RequireRoles admits callers whose role is one of roles. It must run after
// Require; a request without an Identity is rejected as unauthenticated.
func (g *Gate) RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := slices.Clone(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				g.reject(w, r, GateRole, auth.NewError(auth.KindNoCredential, "GATE_NO_IDENTITY", auth.MsgNoCredential))
				return
			}
			if !slices.Contains(allowed, id.Role) {
				g.reject(w, r, GateRole, oops.With("role", string(id.Role)).
					Wrap(auth.NewError(auth.KindForbidden, "GATE_FORBIDDEN", auth.MsgForbidden)))
				return
			}
			g.record(r.Context(), GateRole, OutcomeAdmitted, id)
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits callers the policy allows to perform action on
// the resource named by resource(r). It must run after Require.
func (g *Gate) RequirePermission(action string, resource func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				g.reject(w, r, GatePermission, auth.NewError(auth.KindNoCredential, "GATE_NO_IDENTITY", auth.MsgNoCredential))
				return
			}
			res := resource(r)
			if g.policy == nil || !g.policy.Check(r.Context(), id, action, res) {
				g.reject(w, r, GatePermission, oops.With("action", action).With("resource", res).
					Wrap(auth.NewError(auth.KindForbidden, "GATE_FORBIDDEN", auth.MsgForbidden)))
				return
			}
			g.record(r.Context(), GatePermission, OutcomeAdmitted, id)
			next.ServeHTTP(w, r)
		})
	}
}

func admit(ctx context.Context, id Identity) context.Context {
	return logging.WithSubjectID(WithIdentity(ctx, id), id.SubjectID.String())
}

// Resource returns a resource function naming a fixed resource.
func Resource(name string) func(*http.Request) string {
	return func(*http.Request) string { return name }
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, gate string, err error) {
	outcome := OutcomeOf(err)
	observability.RecordGateDecision(gate, string(outcome))
	if outcome == OutcomeStoreUnavailable {
		errutil.LogErrorContext(r.Context(), g.logger, "gate could not resolve subject", err)
	} else {
		g.logger.DebugContext(r.Context(), "request rejected",
			"gate", gate,
			"outcome", string(outcome),
			"kind", auth.KindOf(err).String(),
			"path", r.URL.Path)
	}
	g.writeError(w, r, err)
}

func (g *Gate) record(ctx context.Context, gate string, outcome Outcome, id Identity) {
	observability.RecordGateDecision(gate, string(outcome))
	if outcome == OutcomeAdmitted {
		g.logger.DebugContext(ctx, "request admitted",
			"gate", gate,
			"subject_id", id.SubjectID.String(),
			"role", string(id.Role))
	}
}
