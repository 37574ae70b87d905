// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

// Package ratelimit counts requests per client key in fixed windows.
//
// Two backends share the Limiter interface: MemoryLimiter for a single
// instance and RedisLimiter when several instances must share counts.
package ratelimit

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config bounds each key to Requests per Window.
type Config struct {
	Requests int
	Window   time.Duration
}

// Validate rejects a non-positive budget or window.
func (c Config) Validate() error {
	if c.Requests <= 0 {
		return oops.Code("RATE_LIMIT_CONFIG_INVALID").With("requests", c.Requests).New("requests must be positive")
	}
	if c.Window <= 0 {
		return oops.Code("RATE_LIMIT_CONFIG_INVALID").With("window", c.Window).New("window must be positive")
	}
	return nil
}

func (c Config) decide(count int, resetAt time.Time) Decision {
	return Decision{
		Allowed:   count <= c.Requests,
		Limit:     c.Requests,
		Remaining: max(0, c.Requests-count),
		ResetAt:   resetAt,
	}
}
