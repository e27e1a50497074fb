package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := CacheKey("yt", "dQw4w9WgXcQ", "en")
		k2 := CacheKey("yt", "dQw4w9WgXcQ", "en")
		if k1 != k2 {
			t.Errorf("CacheKey not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("different inputs differ", func(t *testing.T) {
		k1 := CacheKey("yt", "dQw4w9WgXcQ", "en")
		k2 := CacheKey("yt", "dQw4w9WgXcQ", "de")
		if k1 == k2 {
			t.Errorf("different inputs produced same key: %q", k1)
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		k := CacheKey("test")
		if k[:3] != "gn:" {
			t.Errorf("expected gn: prefix, got %q", k[:3])
		}
	})
}

func TestCacheTiers(t *testing.T) {
	// Init minimal cache (no Redis)
	InitCache("", 1*time.Minute, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "round-trip")

	if _, ok := sourceCache.get(ctx, key); ok {
		t.Error("expected cache miss on empty cache")
	}

	sourceCache.set(ctx, key, []byte("hello transcript"))

	got, ok := sourceCache.get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit after set")
	}
	if string(got) != "hello transcript" {
		t.Errorf("got %q, want %q", got, "hello transcript")
	}
}

func TestCacheNilSafe(t *testing.T) {
	prev := sourceCache
	sourceCache = nil
	t.Cleanup(func() { sourceCache = prev })

	ctx := context.Background()
	CacheStoreJSON(ctx, "k", "v")
	if _, ok := CacheLoadJSON[string](ctx, "k"); ok {
		t.Error("nil cache should always miss")
	}
}

func TestCacheJSON(t *testing.T) {
	InitCache("", 1*time.Minute, 100, 5*time.Minute)
	ctx := context.Background()

	type doc struct {
		ID    string `json:"id"`
		Pages int    `json:"pages"`
	}
	key := CacheKey("json", "doc")
	if _, ok := CacheLoadJSON[doc](ctx, key); ok {
		t.Fatal("expected miss")
	}
	CacheStoreJSON(ctx, key, doc{ID: "a", Pages: 3})
	got, ok := CacheLoadJSON[doc](ctx, key)
	if !ok || got.ID != "a" || got.Pages != 3 {
		t.Errorf("CacheLoadJSON = %+v, %v", got, ok)
	}

	sourceCache.set(ctx, key, []byte("not json"))
	if _, ok := CacheLoadJSON[doc](ctx, key); ok {
		t.Error("corrupt entry should be a miss")
	}
}

func TestCacheExpiration(t *testing.T) {
	// Init with very short TTL
	InitCache("", 1*time.Millisecond, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "expiry")

	CacheStoreJSON(ctx, key, "temp")
	time.Sleep(5 * time.Millisecond)

	if _, ok := CacheLoadJSON[string](ctx, key); ok {
		t.Error("expected cache miss after TTL expiry")
	}
}

func TestCacheEviction(t *testing.T) {
	InitCache("", 1*time.Minute, 3, 5*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := CacheKey("evict", fmt.Sprintf("item-%d", i))
		CacheStoreJSON(ctx, key, fmt.Sprintf("v%d", i))
	}

	if n := sourceCache.len(); n > 3 {
		t.Errorf("expected at most 3 entries after eviction, got %d", n)
	}
	// The newest entry survives.
	if got, ok := CacheLoadJSON[string](ctx, CacheKey("evict", "item-4")); !ok || got != "v4" {
		t.Error("newest entry was evicted")
	}
}

func TestCacheStats(t *testing.T) {
	InitCache("", 1*time.Minute, 100, 5*time.Minute)
	cacheHits.Store(0)
	cacheMisses.Store(0)

	ctx := context.Background()
	key := CacheKey("stats", "test")

	CacheLoadJSON[string](ctx, key)
	if _, misses := CacheStats(); misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}

	CacheStoreJSON(ctx, key, "x")
	CacheLoadJSON[string](ctx, key)

	hits, misses := CacheStats()
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}

func TestFormatMetrics(t *testing.T) {
	out := FormatMetrics()
	for _, k := range metricKeys {
		if !strings.Contains(out, "\n"+k+" ") && !strings.HasPrefix(out, k+" ") {
			t.Errorf("FormatMetrics missing %q", k)
		}
	}
}
