package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "limiter:"

const redisTimeout = 300 * time.Millisecond

// Limiter counts attempts per requester in hourly windows.
type Limiter struct {
	Redis *redis.Client
	Limit int

	// Now is used to pick the current window, time.Now if nil.
	Now func() time.Time
}

func (l *Limiter) Increment(ctx context.Context, requester string) (int, error) {
	key := l.counterKey(requester)

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := l.Redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("can't increment requester's counter: %w", err)
	}

	if val == 1 {
		if err := l.Redis.Expire(ctx, key, time.Hour).Err(); err != nil {
			return 0, fmt.Errorf("can't set counter expiration: %w", err)
		}
	}

	return int(val), nil
}

func (l *Limiter) LimitExceeded(ctx context.Context, requester string) (bool, error) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	c, err := l.Redis.Get(ctx, l.counterKey(requester)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		return false, err
	}

	return c >= l.Limit, nil
}

// counterKey builds key which is used to store count of requester's attempts.
// It consists of requester's ID concatenated to current timestamp rounded down to current hour.
func (l *Limiter) counterKey(requester string) string {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}

	window := now().Truncate(time.Hour).Unix()
	return cacheKeyPrefix + requester + ":" + strconv.FormatInt(window, 10)
}
