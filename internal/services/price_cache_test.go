package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codyseavey/tix-calc/internal/models"
)

// memoryStore is an in-process PriceCacheStore for tests
type memoryStore struct {
	mu       sync.Mutex
	entries  map[string]models.CacheEntry
	reads    int
	writes   int
	readErr  error
	writeErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]models.CacheEntry)}
}

func (s *memoryStore) GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *memoryStore) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.entries[entry.Key] = *entry
	return nil
}

func (s *memoryStore) ListStaleKeys(ctx context.Context, capturedBefore time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []models.CacheEntry
	for _, e := range s.entries {
		if e.CapturedAt.Before(capturedBefore) {
			stale = append(stale, e)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].CapturedAt.Equal(stale[j].CapturedAt) {
			return stale[i].CapturedAt.Before(stale[j].CapturedAt)
		}
		return stale[i].Key < stale[j].Key
	})

	keys := make([]string, 0, limit)
	for _, e := range stale {
		if len(keys) == limit {
			break
		}
		keys = append(keys, e.Key)
	}
	return keys, nil
}

func (s *memoryStore) put(entry models.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
}

func (s *memoryStore) counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

func TestIsFresh(t *testing.T) {
	captured := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &models.CacheEntry{Key: "lightning-bolt", CapturedAt: captured}

	tests := []struct {
		name     string
		asOf     time.Time
		expected bool
	}{
		{"same instant", captured, true},
		{"one hour later", captured.Add(time.Hour), true},
		{"just inside window", captured.Add(24*time.Hour - time.Nanosecond), true},
		{"exactly at window end", captured.Add(24 * time.Hour), false},
		{"two days later", captured.Add(48 * time.Hour), false},
		{"valuation before capture", captured.Add(-72 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsFresh(entry, tt.asOf, DefaultFreshnessWindow); result != tt.expected {
				t.Errorf("IsFresh(%s) = %v, want %v", tt.asOf, result, tt.expected)
			}
		})
	}

	if IsFresh(nil, captured, DefaultFreshnessWindow) {
		t.Error("nil entry should not be fresh")
	}
	if IsFresh(&models.CacheEntry{Key: "x"}, captured, DefaultFreshnessWindow) {
		t.Error("entry without capture time should not be fresh")
	}
}

func TestPriceCacheLookup(t *testing.T) {
	store := newMemoryStore()
	captured := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.put(models.CacheEntry{Key: "lightning-bolt", CapturedAt: captured, HistoryBody: boltHistory})

	cache := NewPriceCache(store, 16, 0)
	ctx := context.Background()

	entry, ok := cache.Lookup(ctx, "lightning-bolt", captured.Add(time.Hour))
	if !ok || entry == nil {
		t.Fatal("Expected a fresh hit")
	}
	if entry.HistoryBody != boltHistory {
		t.Errorf("Unexpected history body: %s", entry.HistoryBody)
	}

	// Second lookup is served from memory
	readsBefore, _ := store.counts()
	if _, ok := cache.Lookup(ctx, "lightning-bolt", captured.Add(2*time.Hour)); !ok {
		t.Error("Expected a fresh hit from memory")
	}
	if reads, _ := store.counts(); reads != readsBefore {
		t.Errorf("Expected no store read on memory hit, got %d extra", reads-readsBefore)
	}

	if _, ok := cache.Lookup(ctx, "lightning-bolt", captured.Add(25*time.Hour)); ok {
		t.Error("Expected stale entry to be a miss")
	}
	if _, ok := cache.Lookup(ctx, "counterspell", captured); ok {
		t.Error("Expected absent entry to be a miss")
	}
}

func TestPriceCacheReadErrorIsMiss(t *testing.T) {
	store := newMemoryStore()
	store.readErr = errors.New("disk on fire")

	cache := NewPriceCache(store, 16, time.Hour)
	if _, ok := cache.Lookup(context.Background(), "lightning-bolt", time.Now()); ok {
		t.Error("Expected read error to be reported as a miss")
	}

	_, err := cache.Get(context.Background(), "lightning-bolt")
	if !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("Expected ErrCacheUnavailable from Get, got %v", err)
	}
}

func TestPriceCachePut(t *testing.T) {
	store := newMemoryStore()
	cache := NewPriceCache(store, 16, time.Hour)
	ctx := context.Background()
	captured := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := cache.Put(ctx, &models.CacheEntry{Key: "negate", CapturedAt: captured, HistoryBody: "[]"}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if _, writes := store.counts(); writes != 1 {
		t.Errorf("Expected 1 store write, got %d", writes)
	}

	got, err := cache.Get(ctx, "negate")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !got.CapturedAt.Equal(captured) {
		t.Errorf("Expected captured %s, got %s", captured, got.CapturedAt)
	}

	if err := cache.Put(ctx, &models.CacheEntry{}); err == nil {
		t.Error("Expected error for entry without key")
	}
}

func TestPriceCachePutStoreFailureKeepsMemory(t *testing.T) {
	store := newMemoryStore()
	store.writeErr = errors.New("read-only filesystem")
	cache := NewPriceCache(store, 16, time.Hour)
	ctx := context.Background()
	captured := time.Now()

	err := cache.Put(ctx, &models.CacheEntry{Key: "negate", CapturedAt: captured})
	if !errors.Is(err, ErrCacheUnavailable) {
		t.Errorf("Expected ErrCacheUnavailable, got %v", err)
	}
	if _, ok := cache.Lookup(ctx, "negate", captured); !ok {
		t.Error("Expected memory tier to serve the entry after a failed store write")
	}
}

func TestPriceCacheWithoutStore(t *testing.T) {
	cache := NewPriceCache(nil, 0, 0)
	if cache.Window() != DefaultFreshnessWindow {
		t.Errorf("Expected default window, got %s", cache.Window())
	}

	ctx := context.Background()
	now := time.Now()
	if _, ok := cache.Lookup(ctx, "negate", now); ok {
		t.Error("Expected miss on empty cache")
	}
	if err := cache.Put(ctx, &models.CacheEntry{Key: "negate", CapturedAt: now}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if _, ok := cache.Lookup(ctx, "negate", now); !ok {
		t.Error("Expected hit after Put")
	}
}

func TestPriceCacheOversizedEntrySkipsMemory(t *testing.T) {
	store := newMemoryStore()
	cache := NewPriceCache(store, 16, time.Hour)
	ctx := context.Background()
	captured := time.Now()

	small := &models.CacheEntry{Key: "negate", CapturedAt: captured, HistoryBody: "[]"}
	if err := cache.Put(ctx, small); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if _, ok := cache.Lookup(ctx, "negate", captured); !ok {
		t.Fatal("Expected hit for small entry")
	}
	if reads, _ := store.counts(); reads != 0 {
		t.Errorf("Expected small entry to be served from memory, got %d store reads", reads)
	}

	large := &models.CacheEntry{Key: "negate", CapturedAt: captured, HistoryBody: strings.Repeat("x", maxMemoryEntryBytes+1)}
	if err := cache.Put(ctx, large); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, ok := cache.Lookup(ctx, "negate", captured)
		if !ok {
			t.Fatal("Expected oversized entry to be served from the store")
		}
		if len(got.HistoryBody) != len(large.HistoryBody) {
			t.Errorf("Expected the oversized body, got %d bytes", len(got.HistoryBody))
		}
	}
	if reads, _ := store.counts(); reads != 2 {
		t.Errorf("Expected every lookup of the oversized entry to read the store, got %d reads", reads)
	}
}
