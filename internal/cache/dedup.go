// Package cache holds the Redis backed stores used alongside the
// relational database.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoClient is returned when the store was built without a Redis client.
var ErrNoClient = errors.New("redis client not configured")

// Dedup records keys with SET NX so that only the first writer of a key
// within its TTL wins.
type Dedup struct {
	rdb *redis.Client
}

// NewDedup returns a Dedup over rdb. rdb may be nil, in which case every
// call fails with ErrNoClient.
func NewDedup(rdb *redis.Client) *Dedup {
	return &Dedup{rdb: rdb}
}

// SetIfAbsent stores key with ttl unless it already exists and reports
// whether this call stored it.
func (d *Dedup) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if d.rdb == nil {
		return false, ErrNoClient
	}
	return d.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Forget deletes key so the next SetIfAbsent succeeds again.
func (d *Dedup) Forget(ctx context.Context, key string) error {
	if d.rdb == nil {
		return ErrNoClient
	}
	return d.rdb.Del(ctx, key).Err()
}
