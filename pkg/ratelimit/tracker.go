package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	marvelQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marvel_quota_calls_remaining",
		Help: "Calls remaining in the current Marvel API daily quota",
	})

	marvelQuotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marvel_quota_blocks_total",
		Help: "Total number of requests blocked because the daily quota is spent",
	})

	marvelQuotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marvel_quota_throttles_total",
		Help: "Total number of requests throttled near the end of the daily quota",
	})
)

// Tracker counts calls against the daily quota and gates requests.
type Tracker struct {
	redis   *redis.Client
	logger  zerolog.Logger
	account string
	limit   int
	delay   time.Duration
	now     func() time.Time
}

// NewTracker creates a quota tracker for the account identified by publicKey.
// The key itself is never written to Redis; a hash prefix identifies it.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, publicKey string, limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	sum := sha256.Sum256([]byte(publicKey))
	return &Tracker{
		redis:   redisClient,
		logger:  logger,
		account: hex.EncodeToString(sum[:4]),
		limit:   limit,
		delay:   ThrottleDelay,
		now:     time.Now,
	}
}

// WithThrottleDelay overrides the pause applied while throttling.
func (t *Tracker) WithThrottleDelay(d time.Duration) *Tracker {
	t.delay = d
	return t
}

// GetState retrieves today's quota state from Redis.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	now := t.now()

	calls, err := t.redis.Get(ctx, callsKey(t.account, now)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get call count: %w", err)
	}

	exhausted, err := t.redis.Exists(ctx, exhaustedKey(t.account, now)).Result()
	if err != nil {
		return nil, fmt.Errorf("get exhausted flag: %w", err)
	}

	return &QuotaState{
		CallsMade: calls,
		Limit:     t.limit,
		ResetAt:   NextReset(now),
		Exhausted: exhausted > 0,
	}, nil
}

// RecordCall counts one call against today's quota.
func (t *Tracker) RecordCall(ctx context.Context) (*QuotaState, error) {
	now := t.now()
	key := callsKey(t.account, now)
	reset := NextReset(now)

	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, reset.Add(time.Hour))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record call in redis: %w", err)
	}

	state := &QuotaState{
		CallsMade: int(incr.Val()),
		Limit:     t.limit,
		ResetAt:   reset,
	}
	marvelQuotaRemaining.Set(float64(state.Remaining()))

	return state, nil
}

// MarkExhausted flags today's quota as spent after the gateway returned 429.
func (t *Tracker) MarkExhausted(ctx context.Context) error {
	now := t.now()
	reset := NextReset(now)

	if err := t.redis.Set(ctx, exhaustedKey(t.account, now), 1, time.Until(reset)).Err(); err != nil {
		return fmt.Errorf("mark quota exhausted: %w", err)
	}

	marvelQuotaRemaining.Set(0)
	t.logger.Error().
		Time("reset_at", reset).
		Msg("Marvel daily quota exhausted - requests blocked until reset")

	return nil
}

// ShouldAllowRequest checks whether another call fits in today's quota.
// Returns false when the quota is spent. Near the limit it sleeps before
// allowing the call, returning early if ctx is cancelled.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("calls_made", state.CallsMade).
			Int("limit", state.Limit).
			Bool("exhausted", state.Exhausted).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Marvel daily quota spent - blocking request")

		marvelQuotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("calls_remaining", state.Remaining()).
			Msg("Marvel daily quota nearly spent - throttling request")

		marvelQuotaThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.delay):
		}
	}

	return true, nil
}
