// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package access

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/auth"
)

const selfToken = "$self"

// StaticPolicy authorizes by fixed per-role permission patterns.
// It is immutable after construction.
type StaticPolicy struct {
	roles  map[auth.Role][]compiledPermission
	logger *slog.Logger
}

type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// NewStaticPolicy compiles DefaultRoles. It panics on an invalid pattern,
// which can only be a programming error.
func NewStaticPolicy(logger *slog.Logger) *StaticPolicy {
	p, err := NewStaticPolicyWithRoles(DefaultRoles(), logger)
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return p
}

// NewStaticPolicyWithRoles compiles custom role definitions.
func NewStaticPolicyWithRoles(roles map[auth.Role][]string, logger *slog.Logger) (*StaticPolicy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiledRoles := make(map[auth.Role][]compiledPermission, len(roles))
	for role, perms := range roles {
		if !role.Valid() {
			return nil, oops.In("access").Code("UNKNOWN_ROLE").With("role", string(role)).New("unknown role")
		}
		compiled := make([]compiledPermission, 0, len(perms))
		for _, p := range perms {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", string(role)).
					With("pattern", p).
					Wrap(err)
			}
			compiled = append(compiled, compiledPermission{pattern: p, glob: g})
		}
		compiledRoles[role] = compiled
	}
	return &StaticPolicy{roles: compiledRoles, logger: logger}, nil
}

// Check implements Authorizer.
func (p *StaticPolicy) Check(_ context.Context, id Identity, action, resource string) bool {
	if id.SubjectID.IsZero() || action == "" || resource == "" {
		return false
	}
	permissions, ok := p.roles[id.Role]
	if !ok {
		return false
	}

	requested := action + ":" + resource
	self := id.SubjectID.String()
	for _, perm := range permissions {
		if !strings.Contains(perm.pattern, selfToken) {
			if perm.glob.Match(requested) {
				return true
			}
			continue
		}
		resolved := strings.ReplaceAll(perm.pattern, selfToken, self)
		g, err := glob.Compile(resolved, ':')
		if err != nil {
			p.logger.Warn("failed to compile resolved permission pattern",
				"subject_id", self,
				"pattern", perm.pattern,
				"error", err)
			continue
		}
		if g.Match(requested) {
			return true
		}
	}
	return false
}

var _ Authorizer = (*StaticPolicy)(nil)
