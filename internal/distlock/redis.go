// Package distlock provides an optional TTL-bounded distributed lock. The
// session manager uses it to guard its cleanup sweep (session.WithSweepLock)
// so that bridge processes sharing one session store do not archive or
// delete the same expired session twice. A single bridge process never
// needs it; a fleet of them, sharing one session store, does.
package distlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the lock was lost (expired or
// stolen) before the caller released it.
var ErrNotHeld = errors.New("distlock: lock not held")

// Locker acquires a named, TTL-bounded mutual-exclusion lock. Implementations
// must be safe to share across goroutines.
type Locker interface {
	// Lock blocks until key is acquired or ctx is canceled, returning a
	// release function. The lock auto-expires after ttl even if Unlock is
	// never called, bounding the blast radius of a crashed holder.
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

// RedisLocker implements Locker with Redis SET NX PX plus a compare-and-del
// Lua script for release, the standard single-instance Redlock building
// block.
type RedisLocker struct {
	client *redis.Client
	// RetryInterval is how often Lock polls for acquisition while blocked.
	RetryInterval time.Duration
}

// NewRedisLocker wraps an existing client. Callers own the client's
// lifecycle.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, RetryInterval: 50 * time.Millisecond}
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	interval := l.RetryInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			unlock := func(uctx context.Context) error {
				res, err := unlockScript.Run(uctx, l.client, []string{key}, token).Int64()
				if err != nil {
					return err
				}
				if res == 0 {
					return ErrNotHeld
				}
				return nil
			}
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
