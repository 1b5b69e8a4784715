package feeschedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/normalize"
)

// notFoundMarker is cached for negative rate lookups.
const notFoundMarker = "-"

// CachedOracle memoizes rate lookups in Redis. Encounter checks are patient
// level and pass straight through. Cache failures degrade to the wrapped
// oracle; they never surface as ErrUnavailable.
type CachedOracle struct {
	next   Oracle
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

// NewCachedOracle wraps next with a Redis-backed rate cache.
func NewCachedOracle(next Oracle, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedOracle {
	return &CachedOracle{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: "eraload:rate:",
		log:    log.With().Str("component", "fee_schedule_cache").Logger(),
	}
}

func (c *CachedOracle) key(q RateQuery) string {
	return fmt.Sprintf("%s%s:%s:%s:%d", c.prefix, q.PracticeID, normalize.NormalizeCode(q.CPTCode), q.Period.Month, q.Period.Year)
}

// LookupRate implements Oracle.
func (c *CachedOracle) LookupRate(ctx context.Context, q RateQuery) (Rate, error) {
	key := c.key(q)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if val == notFoundMarker {
			return Rate{}, ErrNotFound
		}
		var r Rate
		if jerr := json.Unmarshal([]byte(val), &r); jerr == nil {
			return r, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding corrupt cache entry")
	case errors.Is(err, redis.Nil):
	default:
		if ctx.Err() != nil {
			return Rate{}, ctx.Err()
		}
		c.log.Warn().Err(err).Msg("rate cache read failed")
	}

	r, err := c.next.LookupRate(ctx, q)
	switch {
	case err == nil:
		data, _ := json.Marshal(r)
		c.store(ctx, key, string(data))
	case errors.Is(err, ErrNotFound):
		c.store(ctx, key, notFoundMarker)
	}
	return r, err
}

func (c *CachedOracle) store(ctx context.Context, key, val string) {
	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("rate cache write failed")
	}
}

// HasEncounter implements Oracle.
func (c *CachedOracle) HasEncounter(ctx context.Context, q EncounterQuery) (bool, error) {
	return c.next.HasEncounter(ctx, q)
}

// Invalidate drops every cached rate, e.g. after a fee schedule change.
func (c *CachedOracle) Invalidate(ctx context.Context) (int, error) {
	var n int
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return n, fmt.Errorf("invalidate rate cache: %w", err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("invalidate rate cache: %w", err)
	}
	return n, nil
}

var _ Oracle = (*CachedOracle)(nil)
