package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IlyushaZ/court-booking/pkg/ledger"
	"github.com/IlyushaZ/court-booking/pkg/metrics"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

const (
	availabilityKeyPrefix           = "availability:"
	availabilityGenerationKeyPrefix = "availability-gen:"

	availabilityGenerationTTL = 24 * time.Hour
)

// fillScript caches an answer only if no invalidation happened since the caller
// read the generation, i.e. the answer was computed from facts that are still current.
const fillScript = `
if (redis.call("get", KEYS[2]) or "0") == ARGV[1] then
	redis.call("hset", KEYS[1], ARGV[2], ARGV[3])
	redis.call("pexpire", KEYS[1], ARGV[4])
	return 1
end
return 0
`

// AvailabilityCaching is a caching layer which is intended to be called before AvailabilityGeneric.
// Bucket answers of one court and date are kept in a single redis hash keyed by bucket length,
// so that a committed reservation change drops all of them at once.
// Every invalidation also bumps the generation of the court and date, and a miss
// caches its answer only if the generation it started with is still current.
// Errors occurring when calling redis are not returned.
type AvailabilityCaching struct {
	Availability

	Redis *redis.Client
	TTL   time.Duration
}

// availability:court_id:date -> {bucket minutes -> json buckets}
func availabilityCacheKey(courtID string, date model.Date) string {
	return availabilityKeyPrefix + courtID + ":" + date.String()
}

// availability-gen:court_id:date -> number of invalidations
func availabilityGenerationKey(courtID string, date model.Date) string {
	return availabilityGenerationKeyPrefix + courtID + ":" + date.String()
}

func (ac *AvailabilityCaching) FreeBuckets(ctx context.Context, courtID string, date model.Date, length time.Duration) ([]ledger.Bucket, error) {
	key := availabilityCacheKey(courtID, date)
	field := strconv.FormatInt(int64(length/time.Minute), 10)

	val, err := ac.Redis.HGet(ctx, key, field).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.AvailabilityCache.WithLabelValues("miss").Inc()
	case err != nil:
		slog.Error("can't get availability from redis", slog.Any("error", err))

	default:
		var buckets []ledger.Bucket
		if err := json.Unmarshal(val, &buckets); err != nil {
			slog.Error("can't parse availability cache value", slog.String("key", key), slog.Any("error", err))
			break
		}

		metrics.AvailabilityCache.WithLabelValues("hit").Inc()
		return buckets, nil
	}

	genKey := availabilityGenerationKey(courtID, date)
	gen, err := ac.Redis.Get(ctx, genKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		gen = "0"
	case err != nil:
		slog.Error("can't get availability generation", slog.Any("error", err))
		return ac.Availability.FreeBuckets(ctx, courtID, date, length)
	}

	// slower path - read facts from the store
	buckets, err := ac.Availability.FreeBuckets(ctx, courtID, date, length)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(buckets)
	if err != nil {
		slog.Error("can't marshal availability", slog.Any("error", err))
		return buckets, nil
	}

	filled, err := ac.Redis.Eval(ctx, fillScript, []string{key, genKey}, gen, field, string(raw), ac.TTL.Milliseconds()).Int()
	switch {
	case err != nil:
		slog.Error("can't set availability in redis", slog.Any("error", err))
	case filled == 0:
		slog.Debug("availability changed while being read, not cached", slog.String("key", key))
	}

	return buckets, nil
}

// Invalidate drops every cached answer of the reservation's court and date.
// It has the CommitHook signature to be registered on the engine.
func (ac *AvailabilityCaching) Invalidate(ctx context.Context, r model.Reservation) {
	genKey := availabilityGenerationKey(r.CourtID, r.Interval.Date)
	if err := ac.Redis.Incr(ctx, genKey).Err(); err != nil {
		slog.Error("can't bump availability generation", slog.String("key", genKey), slog.Any("error", err))
	} else if err := ac.Redis.Expire(ctx, genKey, availabilityGenerationTTL).Err(); err != nil {
		slog.Error("can't set availability generation expiration", slog.String("key", genKey), slog.Any("error", err))
	}

	key := availabilityCacheKey(r.CourtID, r.Interval.Date)
	if err := ac.Redis.Del(ctx, key).Err(); err != nil {
		slog.Error("can't invalidate availability", slog.String("key", key), slog.Any("error", err))
	}
}
