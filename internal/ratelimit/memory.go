// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/oops"
)

// DefaultCapacity is how many client windows a MemoryLimiter tracks before
// evicting the least recently seen.
const DefaultCapacity = 65536

type window struct {
	start time.Time
	count int
}

// MemoryLimiter keeps fixed windows in a bounded LRU. An evicted client
// starts a fresh window on its next request.
type MemoryLimiter struct {
	cfg      Config
	now      func() time.Time
	capacity int

	mu      sync.Mutex
	windows *lru.Cache[string, *window]
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock sets the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

// WithCapacity sets how many client windows are kept.
func WithCapacity(n int) MemoryOption {
	return func(l *MemoryLimiter) {
		l.capacity = n
	}
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config, opts ...MemoryOption) (*MemoryLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &MemoryLimiter{cfg: cfg, now: time.Now, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(l)
	}

	windows, err := lru.New[string, *window](l.capacity)
	if err != nil {
		return nil, oops.Code("RATE_LIMIT_CONFIG_INVALID").With("capacity", l.capacity).Wrap(err)
	}
	l.windows = windows
	return l, nil
}

// Allow counts one request for key. It never returns an error.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || !now.Before(w.start.Add(l.cfg.Window)) {
		w = &window{start: now}
		l.windows.Add(key, w)
	}
	w.count++

	return l.cfg.decide(w.count, w.start.Add(l.cfg.Window)), nil
}

// Len reports how many client windows are tracked.
func (l *MemoryLimiter) Len() int {
	return l.windows.Len()
}

var _ Limiter = (*MemoryLimiter)(nil)
