// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/samber/oops"
)

// DefaultKeyPrefix namespaces counter keys in Redis.
const DefaultKeyPrefix = "trailhead:ratelimit"

// RedisLimiter keeps one counter per key in Redis, expiring with the window,
// so every instance pointed at the same Redis shares the budget.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter on client. An empty prefix uses
// DefaultKeyPrefix.
func NewRedisLimiter(client *redis.Client, cfg Config, prefix string) (*RedisLimiter, error) {
	if client == nil {
		return nil, oops.Code("RATE_LIMIT_CONFIG_INVALID").New("redis client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix, now: time.Now}, nil
}

// NewRedisClient parses a redis:// or rediss:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("RATE_LIMIT_CONFIG_INVALID").Wrap(err)
	}
	return redis.NewClient(opts), nil
}

// Allow increments the counter for key. The window starts at the first
// request, when the key is given its expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + ":" + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, oops.Code("RATE_LIMIT_UNAVAILABLE").With("key", k).Wrap(err)
	}

	left := pttl.Val()
	if left <= 0 {
		// New key, or one whose expiry was lost.
		if err := l.client.PExpire(ctx, k, l.cfg.Window).Err(); err != nil {
			return Decision{}, oops.Code("RATE_LIMIT_UNAVAILABLE").With("key", k).Wrap(err)
		}
		left = l.cfg.Window
	}

	return l.cfg.decide(int(incr.Val()), l.now().Add(left)), nil
}

// Ping reports whether Redis is reachable.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return oops.Code("RATE_LIMIT_UNAVAILABLE").Wrap(err)
	}
	return nil
}

var _ Limiter = (*RedisLimiter)(nil)
