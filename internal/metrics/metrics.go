// Package metrics provides Prometheus metrics for the tix-calc application.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixcalc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tixcalc_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Decklist Parser Metrics
	DecklistParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixcalc_decklist_parses_total",
			Help: "Decklists parsed by detected format",
		},
		[]string{"format", "result"}, // format: "xml", "csv", "text"; result: "ok" or "error"
	)

	// Price Cache Metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixcalc_price_cache_lookups_total",
			Help: "Price cache lookups by result",
		},
		[]string{"tier", "result"}, // tier: "memory" or "store"; result: "hit", "stale", "miss", "error"
	)

	CacheWriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tixcalc_price_cache_write_errors_total",
			Help: "Failed writes to the price cache store",
		},
	)

	CacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixcalc_price_cache_refreshes_total",
			Help: "Background refreshes of cached price history",
		},
		[]string{"trigger", "result"}, // trigger: "queued" or "stale"; result: "success" or "failed"
	)

	RefreshQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tixcalc_price_cache_refresh_queue_size",
			Help: "Cards waiting in the urgent refresh queue",
		},
	)

	// Remote Source Metrics
	RemoteFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixcalc_remote_fetches_total",
			Help: "Requests made to upstream card data sources",
		},
		[]string{"source", "result"}, // source: "goatbots", "scryfall"; result: "success" or "failed"
	)

	RemoteFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tixcalc_remote_fetch_duration_seconds",
			Help:    "Upstream request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	FetchPolicyWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tixcalc_fetch_policy_wait_seconds",
			Help:    "Time spent in rate limiting and jitter before a remote fetch",
			Buckets: []float64{0, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// Valuation Metrics
	CardResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixcalc_card_resolutions_total",
			Help: "Card price resolutions by outcome",
		},
		[]string{"outcome"}, // "priced", "basic_land", "unavailable"
	)

	ValuationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tixcalc_valuation_duration_seconds",
			Help:    "Time taken to value a whole decklist",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ValuationCards = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tixcalc_valuation_cards",
			Help:    "Number of distinct decklist entries per valuation",
			Buckets: []float64{1, 5, 10, 20, 40, 60, 100},
		},
	)
)
