package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "lease:court:"

const (
	DefaultLeaseTTL      = 10 * time.Second
	DefaultRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the lease only if it is still owned by the caller,
// so an expired lease taken over by another node is never released by mistake.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RedisLease is a Locker for multi-node deployments sharing one redis.
// A lease expires after TTL even if its holder dies, so TTL must be longer
// than the longest critical section it guards.
type RedisLease struct {
	Redis         *redis.Client
	TTL           time.Duration
	RetryInterval time.Duration

	// NewToken generates the owner token of a lease. uuid.NewString is used when nil.
	NewToken func() string
}

func (rl *RedisLease) Lock(ctx context.Context, key string) (func(), error) {
	var (
		k     = leaseKeyPrefix + key
		token = rl.token()
		ttl   = rl.ttl()
	)

	retry := rl.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}

	for {
		ok, err := rl.Redis.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: key %q: %w", ErrNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("can't set lease: %w", err)
		}

		if ok {
			return rl.unlockFunc(k, token), nil
		}

		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: key %q: %w", ErrNotAcquired, key, ctx.Err())
		case <-t.C:
		}
	}
}

func (rl *RedisLease) unlockFunc(key, token string) func() {
	return func() {
		// the caller's context may already be done, the lease must be released anyway
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := rl.Redis.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			slog.Error("can't release lease", slog.String("key", key), slog.Any("error", err))
		}
	}
}

func (rl *RedisLease) token() string {
	if rl.NewToken != nil {
		return rl.NewToken()
	}
	return uuid.NewString()
}

func (rl *RedisLease) ttl() time.Duration {
	if rl.TTL <= 0 {
		return DefaultLeaseTTL
	}
	return rl.TTL
}
