package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codyseavey/tix-calc/internal/metrics"
	"github.com/codyseavey/tix-calc/internal/models"
)

const defaultFetchTimeout = 15 * time.Second

// PriceResolverOptions tunes a PriceResolver. Zero values pick defaults.
type PriceResolverOptions struct {
	// FetchTimeout bounds one remote fetch. The fetch policy wait is not
	// counted against it.
	FetchTimeout time.Duration

	// FallbackToEarliest prices a series that only has entries after the
	// valuation date at its earliest entry instead of skipping it
	FallbackToEarliest bool

	// Now stamps CapturedAt on fetched entries. Defaults to time.Now.
	Now func() time.Time
}

// PriceResolver turns one decklist card into a priced card: basic lands
// are free, everything else goes through the cache and falls back to the
// remote source on a miss.
type PriceResolver struct {
	cache              *PriceCache
	source             PriceSource
	policy             *FetchPolicy
	fetchTimeout       time.Duration
	fallbackToEarliest bool
	now                func() time.Time

	// Concurrent misses on the same card share one fetch
	group singleflight.Group
}

// NewPriceResolver wires the resolver. policy may be nil to fetch without
// pacing.
func NewPriceResolver(cache *PriceCache, source PriceSource, policy *FetchPolicy, opts PriceResolverOptions) *PriceResolver {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PriceResolver{
		cache:              cache,
		source:             source,
		policy:             policy,
		fetchTimeout:       opts.FetchTimeout,
		fallbackToEarliest: opts.FallbackToEarliest,
		now:                opts.Now,
	}
}

// Resolve prices card as of asOf. It never fails: anything that prevents a
// price (fetch error, bad history, no entry before asOf) yields a card
// marked unavailable.
func (r *PriceResolver) Resolve(ctx context.Context, card models.Card, asOf time.Time) models.PricedCard {
	if IsBasicLand(card.Name) {
		metrics.CardResolutionsTotal.WithLabelValues("basic_land").Inc()
		return models.NewBasicLandCard(card)
	}

	key := NormalizeCardName(card.Name)
	if key == "" {
		return r.unavailable(card, "empty card name")
	}

	entry, ok := r.cache.Lookup(ctx, key, asOf)
	if !ok {
		fetched, err := r.fetch(ctx, key)
		if err != nil {
			return r.unavailable(card, err.Error())
		}
		entry = fetched
	}

	history, err := ParsePriceHistory(entry.HistoryBody)
	if err != nil {
		return r.unavailable(card, err.Error())
	}

	price, found := ReducePriceHistory(history, asOf, r.fallbackToEarliest)
	if !found {
		return r.unavailable(card, fmt.Sprintf("no price on or before %s", asOf.Format("2006-01-02")))
	}

	meta, err := models.DecodeCardMetadata(entry.MetadataBody)
	if err != nil {
		log.Printf("Price resolver: ignoring bad metadata for %s: %v", key, err)
	}

	metrics.CardResolutionsTotal.WithLabelValues("priced").Inc()
	return models.NewPricedCard(card, price, meta)
}

// fetch pulls fresh data for key and writes it back to the cache. Cache
// write failures are logged; the fetched entry is still used.
//
// Concurrent callers for one key share a single fetch. The shared work
// runs detached from any caller's cancellation and is bounded by the fetch
// timeout; a cancelled caller stops waiting without failing the others.
func (r *PriceResolver) fetch(ctx context.Context, key string) (*models.CacheEntry, error) {
	sharedCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		if r.policy != nil {
			if _, err := r.policy.Wait(sharedCtx); err != nil {
				return nil, err
			}
		}

		fetchCtx, cancel := context.WithTimeout(sharedCtx, r.fetchTimeout)
		defer cancel()

		entry, err := r.source.FetchPriceHistory(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		entry.Key = key
		entry.CapturedAt = r.now()

		putCtx, cancelPut := context.WithTimeout(sharedCtx, r.fetchTimeout)
		defer cancelPut()
		if err := r.cache.Put(putCtx, entry); err != nil {
			log.Printf("Price resolver: failed to cache %s: %v", key, err)
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.CacheEntry), nil
	}
}

// Refresh fetches key from the remote source and overwrites its cache
// entry whether or not the entry is still fresh
func (r *PriceResolver) Refresh(ctx context.Context, key string) error {
	_, err := r.fetch(ctx, key)
	return err
}

func (r *PriceResolver) unavailable(card models.Card, reason string) models.PricedCard {
	log.Printf("Price resolver: %s unavailable: %s", card.Name, reason)
	metrics.CardResolutionsTotal.WithLabelValues("unavailable").Inc()
	return models.NewUnavailableCard(card)
}
