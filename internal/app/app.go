// Package app wires the price cache, remote sources and valuation services
// from a Config. Both the HTTP server and the CLI build through here.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codyseavey/tix-calc/internal/config"
	"github.com/codyseavey/tix-calc/internal/database"
	"github.com/codyseavey/tix-calc/internal/services"
)

// App holds the long-lived services. Call Close when done.
type App struct {
	Cache     *services.PriceCache
	Resolver  *services.PriceResolver
	Valuator  *services.DeckValuator
	Refresher *services.CacheRefresher

	closers []func() error
}

// Build opens the configured cache store and wires the services on top of it
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return a.wire(cfg, store), nil
}

// BuildWithStore wires the services on an existing store, for callers that
// manage storage themselves
func BuildWithStore(cfg *config.Config, store services.PriceCacheStore) *App {
	return (&App{}).wire(cfg, store)
}

func (a *App) wire(cfg *config.Config, store services.PriceCacheStore) *App {
	a.Cache = services.NewPriceCache(store, cfg.MemoryCacheSize, cfg.CacheFreshness)

	source := services.NewRemoteCardSource(
		services.NewGoatbotsService(cfg.GoatbotsBaseURL, cfg.FetchTimeout),
		services.NewScryfallService(cfg.ScryfallBaseURL, cfg.FetchTimeout),
	)
	policy := services.NewFetchPolicy(cfg.FetchRate, cfg.FetchBurst, cfg.FetchJitter)

	a.Resolver = services.NewPriceResolver(a.Cache, source, policy, services.PriceResolverOptions{
		FetchTimeout:       cfg.FetchTimeout,
		FallbackToEarliest: cfg.FallbackToEarliest,
	})
	a.Valuator = services.NewDeckValuator(a.Resolver, cfg.ValuationConcurrency)

	// Stores that can list stale entries get a background sweep; otherwise
	// only queued cards are refreshed
	lister, _ := store.(services.StaleKeyLister)
	a.Refresher = services.NewCacheRefresher(a.Resolver, lister, cfg.CacheFreshness, cfg.RefreshInterval, cfg.RefreshBatchSize)
	return a
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (services.PriceCacheStore, error) {
	if cfg.UsesPostgres() {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := database.OpenPostgres(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		log.Printf("Price cache: using PostgreSQL at %s", database.RedactDSN(cfg.DatabaseURL))
		return database.NewPostgresCacheStore(pool), nil
	}

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, func() error {
		return database.Close(db)
	})
	repo := database.NewPriceCacheRepository(db)
	if count, err := repo.CountEntries(ctx); err != nil {
		log.Printf("Price cache: using SQLite at %s (failed to count entries: %v)", cfg.DBPath, err)
	} else {
		log.Printf("Price cache: using SQLite at %s (%d cached cards)", cfg.DBPath, count)
	}
	return repo, nil
}

// Close releases the cache store
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
