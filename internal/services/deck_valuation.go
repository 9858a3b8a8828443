package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codyseavey/tix-calc/internal/metrics"
	"github.com/codyseavey/tix-calc/internal/models"
)

const defaultValuationConcurrency = 8

// CardResolver prices a single card
type CardResolver interface {
	Resolve(ctx context.Context, card models.Card, asOf time.Time) models.PricedCard
}

// DeckValuator prices every card of a decklist and totals the boards
type DeckValuator struct {
	resolver    CardResolver
	concurrency int
}

// NewDeckValuator creates a valuator resolving at most concurrency cards
// at a time
func NewDeckValuator(resolver CardResolver, concurrency int) *DeckValuator {
	if concurrency <= 0 {
		concurrency = defaultValuationConcurrency
	}
	return &DeckValuator{
		resolver:    resolver,
		concurrency: concurrency,
	}
}

// Value resolves all cards concurrently. Output order matches the input on
// both boards regardless of completion order. A card that cannot be priced
// is marked unavailable and left out of the totals.
func (v *DeckValuator) Value(ctx context.Context, decklist models.Decklist, asOf time.Time) models.ValuedDecklist {
	if decklist.IsEmpty() {
		return models.EmptyValuedDecklist(asOf)
	}

	start := time.Now()
	defer func() {
		metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.ValuationCards.Observe(float64(len(decklist.Main) + len(decklist.Sideboard)))

	main := make([]models.PricedCard, len(decklist.Main))
	side := make([]models.PricedCard, len(decklist.Sideboard))

	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i, card := range decklist.Main {
		g.Go(func() error {
			main[i] = v.resolver.Resolve(ctx, card, asOf)
			return nil
		})
	}
	for i, card := range decklist.Sideboard {
		g.Go(func() error {
			side[i] = v.resolver.Resolve(ctx, card, asOf)
			return nil
		})
	}
	_ = g.Wait()

	return models.NewValuedDecklist(main, side, asOf)
}
