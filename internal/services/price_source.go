package services

import (
	"context"
	"encoding/json"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/codyseavey/tix-calc/internal/models"
)

// PriceSource fetches the upstream data for one card. Failures wrap
// ErrSourceUnavailable. The returned entry has Key and bodies set; the
// caller stamps CapturedAt.
type PriceSource interface {
	FetchPriceHistory(ctx context.Context, normalizedName string) (*models.CacheEntry, error)
}

// RemoteCardSource combines goatbots price history (required) with Scryfall
// card metadata (best-effort). Both are requested concurrently.
type RemoteCardSource struct {
	goatbots *GoatbotsService
	scryfall *ScryfallService
}

// NewRemoteCardSource creates the upstream source. scryfall may be nil to
// skip metadata lookups.
func NewRemoteCardSource(goatbots *GoatbotsService, scryfall *ScryfallService) *RemoteCardSource {
	return &RemoteCardSource{
		goatbots: goatbots,
		scryfall: scryfall,
	}
}

// FetchPriceHistory implements PriceSource
func (s *RemoteCardSource) FetchPriceHistory(ctx context.Context, normalizedName string) (*models.CacheEntry, error) {
	var (
		history string
		meta    *models.CardMetadata
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := s.goatbots.FetchPriceHistoryBody(gctx, normalizedName)
		if err != nil {
			return err
		}
		history = body
		return nil
	})
	if s.scryfall != nil {
		g.Go(func() error {
			m, err := s.scryfall.GetCardMetadata(gctx, normalizedName)
			if err != nil {
				// Images and set codes are display-only; a price without them is still useful
				log.Printf("Remote source: metadata lookup failed for %s: %v", normalizedName, err)
				return nil
			}
			meta = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entry := &models.CacheEntry{
		Key:         normalizedName,
		HistoryBody: history,
	}
	if meta != nil {
		body, err := json.Marshal(meta)
		if err == nil {
			entry.MetadataBody = string(body)
		}
	}
	return entry, nil
}
