// Package cache implements the best-effort cache tier on Redis. Nothing in
// here is authoritative: reads degrade to a miss on any transport failure and
// writes/deletes log and move on, so cache unavailability can never change the
// outcome of a governing mutation.
package cache

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/encoding"
)

// Options holds the Redis connection settings.
type Options struct {
	// Address is the host:port of the Redis server/cluster.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// DefaultTTL applies to Set calls with a zero expiration.
	DefaultTTL time.Duration
	// MaxReconnects caps the underlying transport's reconnect attempts per
	// call; past the ceiling the call fails (and this client degrades it).
	MaxReconnects int
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Address:       "localhost:6379",
		Password:      "", // no password set
		DB:            0,  // use default DB
		DefaultTTL:    30 * time.Minute,
		MaxReconnects: 3,
	}
}

type client struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewClient opens a Redis-backed cache client. The connection is established
// lazily on first use and reconnects with capped backoff per Options.
func NewClient(options Options) openpix.Cache {
	rc := redis.NewClient(&redis.Options{
		Addr:            options.Address,
		Password:        options.Password,
		DB:              options.DB,
		MaxRetries:      options.MaxReconnects,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	})
	ttl := options.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultOptions().DefaultTTL
	}
	return &client{rc: rc, ttl: ttl}
}

// keyNotFound will detect whether error signifies key not found by Redis.
func (c *client) keyNotFound(err error) bool {
	return err == redis.Nil
}

// Ping tests connectivity for redis (PONG should be returned).
func (c *client) Ping(ctx context.Context) error {
	return c.rc.Ping(ctx).Err()
}

// Get fetches the value under key into target. A transport failure is logged
// and reported as a miss; the only returned error is caller misuse.
func (c *client) Get(ctx context.Context, key string, target any) (bool, error) {
	if target == nil {
		return false, fmt.Errorf("target can't be nil")
	}
	ba, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !c.keyNotFound(err) {
			log.Warn(fmt.Sprintf("cache get %s failed: %v", key, err))
		}
		return false, nil
	}
	if err := encoding.DefaultMarshaler.Unmarshal(ba, target); err != nil {
		log.Warn(fmt.Sprintf("cache get %s holds undecodable payload: %v", key, err))
		return false, nil
	}
	return true, nil
}

// Set stores value under key. Zero expiration applies the default TTL; a
// negative expiration skips caching. Failures are logged, never returned.
func (c *client) Set(ctx context.Context, key string, value any, expiration time.Duration) {
	// No caching if expiration < 0.
	if expiration < 0 {
		return
	}
	if expiration == 0 {
		expiration = c.ttl
	}
	ba, err := encoding.DefaultMarshaler.Marshal(value)
	if err != nil {
		log.Warn(fmt.Sprintf("cache set %s failed to marshal: %v", key, err))
		return
	}
	if err := c.rc.Set(ctx, key, ba, expiration).Err(); err != nil {
		log.Warn(fmt.Sprintf("cache set %s failed: %v", key, err))
	}
}

// Delete removes the given keys. Failures are logged, never returned.
func (c *client) Delete(ctx context.Context, keys ...string) {
	if err := c.rc.Del(ctx, keys...).Err(); err != nil && !c.keyNotFound(err) {
		log.Warn(fmt.Sprintf("cache delete %v failed: %v", keys, err))
	}
}

// AddToSet adds members to the set under key. Best effort.
func (c *client) AddToSet(ctx context.Context, key string, members ...string) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := c.rc.SAdd(ctx, key, args...).Err(); err != nil {
		log.Warn(fmt.Sprintf("cache sadd %s failed: %v", key, err))
	}
}

// Expire sets a TTL on key. Best effort.
func (c *client) Expire(ctx context.Context, key string, ttl time.Duration) {
	if err := c.rc.Expire(ctx, key, ttl).Err(); err != nil {
		log.Warn(fmt.Sprintf("cache expire %s failed: %v", key, err))
	}
}

// Members lists the set under key, empty on any failure.
func (c *client) Members(ctx context.Context, key string) []string {
	members, err := c.rc.SMembers(ctx, key).Result()
	if err != nil {
		if !c.keyNotFound(err) {
			log.Warn(fmt.Sprintf("cache smembers %s failed: %v", key, err))
		}
		return nil
	}
	return members
}

// Close releases the underlying connection.
func (c *client) Close() error {
	return c.rc.Close()
}
