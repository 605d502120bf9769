package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewMemoryCache(t *testing.T) {
	cache := NewMemoryCache(30 * time.Second)
	if cache == nil {
		t.Fatal("NewMemoryCache returned nil")
	}
	defer cache.Close()

	if cache.defaultTTL != 30*time.Second {
		t.Errorf("Expected defaultTTL 30s, got %v", cache.defaultTTL)
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	metrics := []string{"up", "container_memory_usage_bytes"}
	cache.Set("metrics:discover", metrics)

	value, found := cache.Get("metrics:discover")
	if !found {
		t.Error("Expected to find metrics:discover")
	}
	if got, ok := value.([]string); !ok || len(got) != 2 {
		t.Errorf("Expected the stored metric list, got %v", value)
	}

	if _, found = cache.Get("metrics:other-cluster"); found {
		t.Error("Expected not to find a key that was never set")
	}
}

func TestMemoryCache_SetWithTTL(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	cache.SetWithTTL("templates", "listing", 100*time.Millisecond)

	value, found := cache.Get("templates")
	if !found || value != "listing" {
		t.Error("Expected to find templates immediately after set")
	}

	time.Sleep(150 * time.Millisecond)

	if _, found = cache.Get("templates"); found {
		t.Error("Expected templates to be expired")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	cache.Set("metrics:discover", []string{"up"})

	if _, found := cache.Get("metrics:discover"); !found {
		t.Error("Expected to find metrics:discover")
	}

	cache.Delete("metrics:discover")

	if _, found := cache.Get("metrics:discover"); found {
		t.Error("Expected metrics:discover to be deleted")
	}

	// Deleting an absent key is a no-op.
	cache.Delete("metrics:other-cluster")
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	cache.Set("metrics:discover", []string{"up"})
	cache.Set("templates", "listing")
	cache.Set("suggestions:memory", []string{"Detect memory leaks in the application"})

	cache.Clear()

	if _, found := cache.Get("metrics:discover"); found {
		t.Error("Expected cache to be cleared")
	}

	if stats := cache.GetStatistics(); stats.Entries != 0 {
		t.Errorf("Expected 0 entries after clear, got %d", stats.Entries)
	}
}

func TestMemoryCache_Statistics(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	stats := cache.GetStatistics()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Error("Expected initial stats to be zero")
	}

	cache.Get("metrics:other-cluster")
	if stats = cache.GetStatistics(); stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}

	cache.Set("metrics:discover", []string{"up"})
	cache.Get("metrics:discover")
	if stats = cache.GetStatistics(); stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}

	total := stats.Hits + stats.Misses
	expectedRate := float64(stats.Hits) / float64(total) * 100
	if stats.HitRate != expectedRate {
		t.Errorf("Expected hit rate %.2f, got %.2f", expectedRate, stats.HitRate)
	}

	cache.Delete("metrics:discover")
	if stats = cache.GetStatistics(); stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestMemoryCache_ResetStatistics(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	cache.Set("metrics:discover", []string{"up"})
	cache.Get("metrics:discover")
	cache.Get("metrics:other-cluster")

	cache.ResetStatistics()

	stats := cache.GetStatistics()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Evictions != 0 {
		t.Error("Expected statistics to be reset to zero")
	}
}

func TestMemoryCache_GetOrSet(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	ctx := context.Background()
	discoverCalls := 0

	discover := func() (interface{}, error) {
		discoverCalls++
		return []string{"up", "container_memory_usage_bytes"}, nil
	}

	value, err := cache.GetOrSet(ctx, "metrics:discover", discover)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if got, ok := value.([]string); !ok || len(got) != 2 {
		t.Errorf("Expected the discovered metric list, got %v", value)
	}
	if discoverCalls != 1 {
		t.Errorf("Expected one upstream call, got %d", discoverCalls)
	}

	// A second lookup within the TTL must not hit the upstream again.
	if _, err = cache.GetOrSet(ctx, "metrics:discover", discover); err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if discoverCalls != 1 {
		t.Errorf("Expected the cached list, got %d upstream calls", discoverCalls)
	}
}

func TestMemoryCache_GetOrSet_ComputeError(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	wantErr := errors.New("workspace unreachable")
	_, err := cache.GetOrSet(context.Background(), "metrics:discover", func() (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected the compute error, got %v", err)
	}

	// Failures are not cached.
	if _, found := cache.Get("metrics:discover"); found {
		t.Error("Expected no entry after a failed compute")
	}
}

func TestMemoryCache_GetOrSetWithTTL(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	ctx := context.Background()
	discoverCalls := 0

	discover := func() (interface{}, error) {
		discoverCalls++
		return []string{"up"}, nil
	}

	if _, err := cache.GetOrSetWithTTL(ctx, "metrics:discover", 100*time.Millisecond, discover); err != nil {
		t.Fatalf("GetOrSetWithTTL failed: %v", err)
	}

	if _, err := cache.GetOrSetWithTTL(ctx, "metrics:discover", 100*time.Millisecond, discover); err != nil {
		t.Fatalf("GetOrSetWithTTL failed: %v", err)
	}
	if discoverCalls != 1 {
		t.Errorf("Expected one upstream call while cached, got %d", discoverCalls)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := cache.GetOrSetWithTTL(ctx, "metrics:discover", 100*time.Millisecond, discover); err != nil {
		t.Fatalf("GetOrSetWithTTL failed: %v", err)
	}
	if discoverCalls != 2 {
		t.Errorf("Expected a fresh upstream call after expiry, got %d", discoverCalls)
	}
}

func TestMemoryCache_ExpiredEntriesDropOnRead(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	cache.SetWithTTL("metrics:staging", []string{"up"}, 50*time.Millisecond)
	cache.SetWithTTL("metrics:prod", []string{"up"}, 10*time.Minute)

	time.Sleep(100 * time.Millisecond)

	if _, found := cache.Get("metrics:staging"); found {
		t.Error("Expected metrics:staging to be expired")
	}

	if _, found := cache.Get("metrics:prod"); !found {
		t.Error("Expected metrics:prod to still exist")
	}
}

func TestCacheEntry_IsExpired(t *testing.T) {
	entry := &CacheEntry{
		Value:      "listing",
		Expiration: time.Now().Add(1 * time.Minute),
	}
	if entry.IsExpired() {
		t.Error("Expected entry not to be expired")
	}

	entry = &CacheEntry{
		Value:      "listing",
		Expiration: time.Now().Add(-1 * time.Minute),
	}
	if !entry.IsExpired() {
		t.Error("Expected entry to be expired")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(1 * time.Minute)
	defer cache.Close()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			cache.Set("metrics:discover", n)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if _, found := cache.Get("metrics:discover"); !found {
		t.Error("Expected the key written by concurrent setters to exist")
	}
}
