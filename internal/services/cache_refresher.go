package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/codyseavey/tix-calc/internal/metrics"
)

const (
	defaultRefreshBatchSize = 50
	defaultRefreshInterval  = 15 * time.Minute
)

// StaleKeyLister lists cached cards whose entries were captured before a
// cutoff, oldest first
type StaleKeyLister interface {
	ListStaleKeys(ctx context.Context, capturedBefore time.Time, limit int) ([]string, error)
}

// KeyRefresher refetches one normalized card key into the cache
type KeyRefresher interface {
	Refresh(ctx context.Context, key string) error
}

// CacheRefresher keeps the price cache warm in the background so that
// valuations hit fresh entries instead of waiting on the remote source
type CacheRefresher struct {
	refresher KeyRefresher
	lister    StaleKeyLister
	window    time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time

	// Cards queued by users, refreshed before stale entries
	urgentQueue []string
	urgentMu    sync.Mutex

	// Stats (reset at midnight)
	mu             sync.RWMutex
	refreshedToday int
	failedToday    int
	lastRunTime    time.Time
	lastStatsDay   time.Time
}

// RefreshStatus reports what the refresher has done today
type RefreshStatus struct {
	LastRunTime    time.Time `json:"last_run_time"`
	NextRunTime    time.Time `json:"next_run_time"`
	RefreshedToday int       `json:"refreshed_today"`
	FailedToday    int       `json:"failed_today"`
	BatchSize      int       `json:"batch_size"`
	QueueSize      int       `json:"queue_size"`
}

// NewCacheRefresher wires a refresher. lister may be nil, in which case
// only queued cards are refreshed.
func NewCacheRefresher(refresher KeyRefresher, lister StaleKeyLister, window, interval time.Duration, batchSize int) *CacheRefresher {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if batchSize < 1 {
		batchSize = defaultRefreshBatchSize
	}
	return &CacheRefresher{
		refresher: refresher,
		lister:    lister,
		window:    window,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// QueueRefresh adds a card to the urgent queue and returns its 1-based
// position
func (w *CacheRefresher) QueueRefresh(name string) (int, error) {
	name = strings.TrimSpace(name)
	if IsBasicLand(name) {
		return 0, fmt.Errorf("%w: %s is a basic land", ErrNotRefreshable, name)
	}
	key := NormalizeCardName(name)
	if key == "" {
		return 0, fmt.Errorf("%w: empty card name", ErrNotRefreshable)
	}

	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, queued := range w.urgentQueue {
		if queued == key {
			return i + 1, nil
		}
	}
	w.urgentQueue = append(w.urgentQueue, key)
	metrics.RefreshQueueSize.Set(float64(len(w.urgentQueue)))
	log.Printf("Cache refresher: queued refresh for %s (queue size: %d)", key, len(w.urgentQueue))
	return len(w.urgentQueue), nil
}

// QueueSize returns the current urgent queue length
func (w *CacheRefresher) QueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

// Start refreshes a batch immediately and then once per interval until ctx
// is cancelled
func (w *CacheRefresher) Start(ctx context.Context) {
	log.Printf("Cache refresher started: will refresh up to %d cards every %v", w.batchSize, w.interval)

	w.runBatch(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cache refresher stopping...")
			return
		case <-ticker.C:
			w.runBatch(ctx)
		}
	}
}

func (w *CacheRefresher) runBatch(ctx context.Context) {
	refreshed, err := w.RefreshBatch(ctx)
	if err != nil {
		log.Printf("Cache refresher: batch failed: %v", err)
		return
	}
	if refreshed > 0 {
		log.Printf("Cache refresher: refreshed %d cards", refreshed)
	}
}

// RefreshBatch refreshes up to one batch of cards, in priority order:
// 1. Queued cards
// 2. Cached cards whose entries are past the freshness window, oldest first
func (w *CacheRefresher) RefreshBatch(ctx context.Context) (int, error) {
	w.resetDailyStatsIfNeeded()

	w.urgentMu.Lock()
	urgent := w.urgentQueue
	if len(urgent) > w.batchSize {
		urgent = urgent[:w.batchSize]
		w.urgentQueue = w.urgentQueue[w.batchSize:]
	} else {
		w.urgentQueue = nil
	}
	metrics.RefreshQueueSize.Set(float64(len(w.urgentQueue)))
	w.urgentMu.Unlock()

	var stale []string
	if remaining := w.batchSize - len(urgent); remaining > 0 && w.lister != nil {
		keys, err := w.lister.ListStaleKeys(ctx, w.now().Add(-w.window), remaining+len(urgent))
		if err != nil {
			// Queued cards are still refreshed
			log.Printf("Cache refresher: failed to list stale entries: %v", err)
		}
		seen := make(map[string]bool, len(urgent))
		for _, key := range urgent {
			seen[key] = true
		}
		for _, key := range keys {
			if !seen[key] && len(stale) < remaining {
				stale = append(stale, key)
			}
		}
	}

	refreshed, failed := 0, 0
	refresh := func(keys []string, trigger string) {
		for _, key := range keys {
			if ctx.Err() != nil {
				return
			}
			if err := w.refresher.Refresh(ctx, key); err != nil {
				log.Printf("Cache refresher: failed to refresh %s: %v", key, err)
				metrics.CacheRefreshesTotal.WithLabelValues(trigger, "failed").Inc()
				failed++
				continue
			}
			metrics.CacheRefreshesTotal.WithLabelValues(trigger, "success").Inc()
			refreshed++
		}
	}
	refresh(urgent, "queued")
	refresh(stale, "stale")

	w.mu.Lock()
	w.refreshedToday += refreshed
	w.failedToday += failed
	w.lastRunTime = w.now()
	w.mu.Unlock()

	return refreshed, ctx.Err()
}

// Status returns the refresher's stats for today
func (w *CacheRefresher) Status() RefreshStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := RefreshStatus{
		LastRunTime:    w.lastRunTime,
		RefreshedToday: w.refreshedToday,
		FailedToday:    w.failedToday,
		BatchSize:      w.batchSize,
		QueueSize:      w.QueueSize(),
	}
	if !w.lastRunTime.IsZero() {
		status.NextRunTime = w.lastRunTime.Add(w.interval)
	}
	return status
}

// resetDailyStatsIfNeeded zeroes the counters at midnight
func (w *CacheRefresher) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			log.Printf("Cache refresher: daily stats reset (previous day: %d refreshed, %d failed)", w.refreshedToday, w.failedToday)
		}
		w.refreshedToday = 0
		w.failedToday = 0
		w.lastStatsDay = today
	}
}
