// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package access

import "github.com/trailhead/trailhead/internal/auth"

// Permission groups define reusable sets of permissions.
// Roles compose these groups rather than inheriting.

var travellerPowers = []string{
	"read:user:$self",
	"write:user:$self",
	"delete:user:$self",
	"read:booking:$self:*",
	"write:booking:$self:*",
}

var guidePowers = []string{
	"read:booking:*:*",
	"read:tour:*",
}

var leadGuidePowers = []string{
	"write:tour:*",
	"delete:tour:*",
	"read:user:*",
}

var adminPowers = []string{
	"read:**",
	"write:**",
	"delete:**",
	"grant:**",
}

// DefaultRoles returns the permission patterns of every account role.
func DefaultRoles() map[auth.Role][]string {
	return map[auth.Role][]string{
		auth.RoleUser:      travellerPowers,
		auth.RoleGuide:     compose(travellerPowers, guidePowers),
		auth.RoleLeadGuide: compose(travellerPowers, guidePowers, leadGuidePowers),
		auth.RoleAdmin:     compose(travellerPowers, guidePowers, leadGuidePowers, adminPowers),
	}
}

func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
