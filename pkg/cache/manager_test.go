package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test when none is
// running. tests/integration covers the same paths against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func pageKey(offset string) Key {
	q := url.Values{"apikey": {"pub"}, "limit": {"1"}}
	if offset != "" {
		q.Set("offset", offset)
	}
	return Key{Endpoint: "/v1/public/comics", QueryParams: q}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{
		Body:        []byte(`{"code":200,"etag":"abc123","data":{"offset":0,"limit":1}}`),
		ETag:        "abc123",
		ContentType: "application/json",
		StoredAt:    time.Now(),
		Expires:     time.Now().Add(5 * time.Minute),
	}

	if err := manager.Set(ctx, pageKey(""), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, pageKey(""))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Body) != string(entry.Body) {
		t.Errorf("Body = %s, want %s", got.Body, entry.Body)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
	}

	// Different offset is a different page
	if _, err := manager.Get(ctx, pageKey("1")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for offset=1, got %v", err)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), pageKey("3"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	if err := client.Set(ctx, pageKey("").String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	_, err := manager.Get(ctx, pageKey(""))
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_Set_DropsExpiredEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Body: []byte(`{}`), ETag: "x", Expires: time.Now().Add(-1 * time.Hour)}
	if err := manager.Set(ctx, pageKey(""), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := manager.Get(ctx, pageKey("")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	if err := manager.Set(context.Background(), pageKey(""), nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}

func TestManager_Set_CapsTTL(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client).WithMaxTTL(2 * time.Second)
	ctx := context.Background()

	entry := &Entry{Body: []byte(`{}`), ETag: "x", Expires: time.Now().Add(24 * time.Hour)}
	if err := manager.Set(ctx, pageKey(""), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := client.TTL(ctx, pageKey("").String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl > 2*time.Second {
		t.Errorf("TTL = %v, want <= 2s", ttl)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Body: []byte(`{}`), ETag: "x", Expires: time.Now().Add(5 * time.Minute)}
	if err := manager.Set(ctx, pageKey(""), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, pageKey("")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := manager.Get(ctx, pageKey("")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_Refresh(t *testing.T) {
	manager := NewManager(setupTestRedis(t)).WithMaxTTL(24 * time.Hour)
	ctx := context.Background()

	entry := &Entry{Body: []byte(`{}`), ETag: "x", Expires: time.Now().Add(5 * time.Minute)}
	if err := manager.Set(ctx, pageKey(""), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	t.Run("explicit expiry", func(t *testing.T) {
		want := time.Now().Add(10 * time.Minute)
		if err := manager.Refresh(ctx, pageKey(""), want); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		got, err := manager.Get(ctx, pageKey(""))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if diff := got.Expires.Sub(want); diff < -time.Second || diff > time.Second {
			t.Errorf("Expires = %v, want %v", got.Expires, want)
		}
	})

	t.Run("zero slides by default TTL", func(t *testing.T) {
		if err := manager.Refresh(ctx, pageKey(""), time.Time{}); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		got, err := manager.Get(ctx, pageKey(""))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ttl := got.TTL(); ttl < DefaultTTL-5*time.Second {
			t.Errorf("TTL = %v, want ~%v", ttl, DefaultTTL)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		err := manager.Refresh(ctx, pageKey("2"), time.Time{})
		if !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss, got %v", err)
		}
	})
}
