package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when no live entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored value cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores pages in Redis. Keys expire with their entries.
type Manager struct {
	redis  *redis.Client
	maxTTL time.Duration
}

// NewManager creates a cache manager backed by redisClient.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		maxTTL: DefaultTTL,
	}
}

// WithMaxTTL caps how long any entry stays in Redis, regardless of Expires.
func (m *Manager) WithMaxTTL(ttl time.Duration) *Manager {
	if ttl > 0 {
		m.maxTTL = ttl
	}
	return m
}

// Get returns the live entry for key or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			Lookups.WithLabelValues("miss").Inc()
			return nil, ErrCacheMiss
		}
		Errors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		Errors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		Lookups.WithLabelValues("expired").Inc()
		return nil, ErrCacheMiss
	}

	Lookups.WithLabelValues("hit").Inc()
	return &entry, nil
}

// Set stores entry until its Expires time, capped by the max TTL.
// Entries that are already expired are dropped silently.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := min(entry.TTL(), m.maxTTL)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		Errors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		Errors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoredBytes.Add(float64(len(data)))
	return nil
}

// Delete removes the entry for key.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		Errors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Refresh extends the entry for key after the gateway confirmed it with a
// 304. A zero expires slides the entry forward by DefaultTTL.
func (m *Manager) Refresh(ctx context.Context, key Key, expires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	if expires.IsZero() {
		expires = time.Now().Add(DefaultTTL)
	}
	entry.Expires = expires
	return m.Set(ctx, key, entry)
}
