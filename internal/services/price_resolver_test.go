package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tix-calc/internal/models"
)

// fakeSource serves canned history bodies and counts fetches per key
type fakeSource struct {
	mu       sync.Mutex
	bodies   map[string]string
	metadata map[string]string
	calls    map[string]int
	delay    time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bodies:   make(map[string]string),
		metadata: make(map[string]string),
		calls:    make(map[string]int),
	}
}

func (s *fakeSource) FetchPriceHistory(ctx context.Context, normalizedName string) (*models.CacheEntry, error) {
	s.mu.Lock()
	s.calls[normalizedName]++
	body, ok := s.bodies[normalizedName]
	meta := s.metadata[normalizedName]
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: no data for %s", ErrSourceUnavailable, normalizedName)
	}
	return &models.CacheEntry{Key: normalizedName, HistoryBody: body, MetadataBody: meta}, nil
}

func (s *fakeSource) callCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *fakeSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func singlePriceHistory(name, date, price string) string {
	return fmt.Sprintf(`[%q, [[[%q, %s]]]]`, name, date, price)
}

var resolverNow = time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

func newTestResolver(store PriceCacheStore, source PriceSource) *PriceResolver {
	return NewPriceResolver(NewPriceCache(store, 64, 0), source, NewFetchPolicy(0, 1, 0), PriceResolverOptions{
		FetchTimeout: time.Second,
		Now:          func() time.Time { return resolverNow },
	})
}

func TestResolveBasicLandWithoutIO(t *testing.T) {
	store := newMemoryStore()
	source := newFakeSource()
	resolver := newTestResolver(store, source)

	for _, name := range []string{"Island", "mountain", "FOREST"} {
		card := resolver.Resolve(context.Background(), models.NewCard(name, 20, 0), resolverNow)
		if card.Unavailable {
			t.Errorf("%s should not be unavailable", name)
		}
		if !card.UnitPrice.IsZero() || !card.LineTotal.IsZero() {
			t.Errorf("%s should be free, got %s / %s", name, card.UnitPrice, card.LineTotal)
		}
		if card.Quantity != 20 {
			t.Errorf("Expected quantity 20, got %d", card.Quantity)
		}
	}

	if reads, writes := store.counts(); reads != 0 || writes != 0 {
		t.Errorf("Expected no cache I/O for basic lands, got %d reads / %d writes", reads, writes)
	}
	if source.totalCalls() != 0 {
		t.Errorf("Expected no remote fetch for basic lands, got %d", source.totalCalls())
	}
}

func TestResolveCacheHit(t *testing.T) {
	store := newMemoryStore()
	store.put(models.CacheEntry{
		Key:          "lightning-bolt",
		CapturedAt:   resolverNow,
		HistoryBody:  singlePriceHistory("lightning-bolt", "2023-12-31", "0.1"),
		MetadataBody: `{"image_urls":["https://img/bolt.jpg"],"set_code":"m10","mtgo_id":31}`,
	})
	source := newFakeSource()
	resolver := newTestResolver(store, source)

	card := resolver.Resolve(context.Background(), models.NewCard("Lightning Bolt", 4, 0), resolverNow)
	if card.Unavailable {
		t.Fatal("Expected a price")
	}
	if !card.UnitPrice.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("Expected unit price 0.1, got %s", card.UnitPrice)
	}
	if !card.LineTotal.Equal(decimal.RequireFromString("0.4")) {
		t.Errorf("Expected line total 0.4, got %s", card.LineTotal)
	}
	if card.MTGOID != 31 || card.SetCode != "m10" || len(card.ImageURLs) != 1 {
		t.Errorf("Expected metadata to be applied, got %+v", card)
	}
	if source.totalCalls() != 0 {
		t.Errorf("Expected no remote fetch on a fresh hit, got %d", source.totalCalls())
	}
}

func TestResolveMissFetchesAndCaches(t *testing.T) {
	store := newMemoryStore()
	source := newFakeSource()
	source.bodies["counterspell"] = singlePriceHistory("counterspell", "2023-12-31", "0.2")
	resolver := newTestResolver(store, source)

	asOf := mustDay("2024-01-01")
	first := resolver.Resolve(context.Background(), models.NewCard("Counterspell", 2, 0), asOf)
	second := resolver.Resolve(context.Background(), models.NewCard("Counterspell", 2, 0), asOf)

	if first.Unavailable || second.Unavailable {
		t.Fatal("Expected both resolutions to be priced")
	}
	if !first.UnitPrice.Equal(second.UnitPrice) || !first.LineTotal.Equal(second.LineTotal) {
		t.Errorf("Expected identical results, got %s and %s", first.UnitPrice, second.UnitPrice)
	}
	if n := source.callCount("counterspell"); n != 1 {
		t.Errorf("Expected exactly 1 remote fetch, got %d", n)
	}

	cached, err := store.GetCacheEntry(context.Background(), "counterspell")
	if err != nil || cached == nil {
		t.Fatalf("Expected entry to be written to the store, got %v, %v", cached, err)
	}
	if !cached.CapturedAt.Equal(resolverNow) {
		t.Errorf("Expected captured at %s, got %s", resolverNow, cached.CapturedAt)
	}
}

func TestResolveStaleEntryRefetches(t *testing.T) {
	store := newMemoryStore()
	store.put(models.CacheEntry{
		Key:         "negate",
		CapturedAt:  resolverNow.Add(-72 * time.Hour),
		HistoryBody: singlePriceHistory("negate", "2023-12-01", "0.5"),
	})
	source := newFakeSource()
	source.bodies["negate"] = singlePriceHistory("negate", "2023-12-31", "0.15")
	resolver := newTestResolver(store, source)

	card := resolver.Resolve(context.Background(), models.NewCard("Negate", 1, 0), resolverNow)
	if !card.UnitPrice.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("Expected refreshed price 0.15, got %s", card.UnitPrice)
	}
	if source.callCount("negate") != 1 {
		t.Errorf("Expected 1 fetch for stale entry, got %d", source.callCount("negate"))
	}
}

func TestResolveConcurrentMissesShareFetch(t *testing.T) {
	store := newMemoryStore()
	source := newFakeSource()
	source.delay = 50 * time.Millisecond
	source.bodies["negate"] = singlePriceHistory("negate", "2023-12-31", "0.15")
	resolver := newTestResolver(store, source)

	var wg sync.WaitGroup
	results := make([]models.PricedCard, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = resolver.Resolve(context.Background(), models.NewCard("Negate", 1, 0), resolverNow)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.Unavailable {
			t.Errorf("Result %d unavailable", i)
		}
	}
	if n := source.callCount("negate"); n != 1 {
		t.Errorf("Expected concurrent misses to share 1 fetch, got %d", n)
	}
}

func TestResolveCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	store := newMemoryStore()
	source := newFakeSource()
	source.delay = 200 * time.Millisecond
	source.bodies["negate"] = singlePriceHistory("negate", "2023-12-31", "0.15")
	resolver := newTestResolver(store, source)

	cancelledCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var first models.PricedCard
	firstDone := make(chan struct{})
	go func() {
		first = resolver.Resolve(cancelledCtx, models.NewCard("Negate", 1, 0), resolverNow)
		close(firstDone)
	}()

	// Wait until the first caller owns the in-flight fetch
	deadline := time.Now().Add(time.Second)
	for source.callCount("negate") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	var second models.PricedCard
	secondDone := make(chan struct{})
	go func() {
		second = resolver.Resolve(context.Background(), models.NewCard("Negate", 2, 0), resolverNow)
		close(secondDone)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-firstDone:
	case <-time.After(100 * time.Millisecond):
		t.Error("Cancelled caller kept waiting for the shared fetch")
	}
	<-firstDone
	<-secondDone

	if !first.Unavailable {
		t.Error("Expected the cancelled caller to get an unavailable card")
	}
	if second.Unavailable {
		t.Fatal("Expected the live caller to be priced despite the other caller cancelling")
	}
	if !second.LineTotal.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("Expected line total 0.3, got %s", second.LineTotal)
	}
	if n := source.callCount("negate"); n != 1 {
		t.Errorf("Expected 1 shared fetch, got %d", n)
	}

	// The detached fetch still filled the cache
	if entry, err := store.GetCacheEntry(context.Background(), "negate"); err != nil || entry == nil {
		t.Errorf("Expected entry to be cached, got %v, %v", entry, err)
	}
}

func TestResolveFetchFailureIsUnavailable(t *testing.T) {
	resolver := newTestResolver(newMemoryStore(), newFakeSource())

	card := resolver.Resolve(context.Background(), models.NewCard("Nonexistent Card", 3, 0), resolverNow)
	if !card.Unavailable {
		t.Error("Expected card to be unavailable")
	}
	if !card.UnitPrice.IsZero() || !card.LineTotal.IsZero() {
		t.Errorf("Expected zero prices, got %s / %s", card.UnitPrice, card.LineTotal)
	}
	if card.Name != "Nonexistent Card" || card.Quantity != 3 {
		t.Errorf("Expected card identity to be kept, got %+v", card.Card)
	}
}

func TestResolveFetchTimeoutIsUnavailable(t *testing.T) {
	source := newFakeSource()
	source.delay = time.Second
	source.bodies["negate"] = singlePriceHistory("negate", "2023-12-31", "0.15")

	resolver := NewPriceResolver(NewPriceCache(newMemoryStore(), 8, 0), source, nil, PriceResolverOptions{
		FetchTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	card := resolver.Resolve(context.Background(), models.NewCard("Negate", 1, 0), resolverNow)
	if !card.Unavailable {
		t.Error("Expected timed out fetch to be unavailable")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected fetch timeout to bound resolution, took %s", elapsed)
	}
}

func TestResolveNoPriceBeforeDate(t *testing.T) {
	source := newFakeSource()
	source.bodies["new-card"] = singlePriceHistory("new-card", "2024-06-01", "1.5")
	resolver := newTestResolver(newMemoryStore(), source)

	card := resolver.Resolve(context.Background(), models.NewCard("New Card", 1, 0), mustDay("2024-01-01"))
	if !card.Unavailable {
		t.Errorf("Expected unavailable when all entries are after the valuation date, got %s", card.UnitPrice)
	}
}

func TestResolveFallbackToEarliest(t *testing.T) {
	source := newFakeSource()
	source.bodies["new-card"] = singlePriceHistory("new-card", "2024-06-01", "1.5")
	resolver := NewPriceResolver(NewPriceCache(newMemoryStore(), 8, 0), source, nil, PriceResolverOptions{
		FallbackToEarliest: true,
		Now:                func() time.Time { return resolverNow },
	})

	card := resolver.Resolve(context.Background(), models.NewCard("New Card", 2, 0), mustDay("2024-01-01"))
	if card.Unavailable {
		t.Fatal("Expected the earliest entry to price a back-dated valuation")
	}
	if !card.LineTotal.Equal(decimal.RequireFromString("3")) {
		t.Errorf("Expected line total 3, got %s", card.LineTotal)
	}
}

func TestResolveCacheWriteFailureStillPrices(t *testing.T) {
	store := newMemoryStore()
	store.writeErr = errors.New("read-only filesystem")
	source := newFakeSource()
	source.bodies["negate"] = singlePriceHistory("negate", "2023-12-31", "0.15")
	resolver := newTestResolver(store, source)

	card := resolver.Resolve(context.Background(), models.NewCard("Negate", 2, 0), resolverNow)
	if card.Unavailable {
		t.Fatal("Expected cache write failure not to affect the result")
	}
	if !card.LineTotal.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("Expected line total 0.3, got %s", card.LineTotal)
	}
}
