package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tix-calc/internal/metrics"
	"github.com/codyseavey/tix-calc/internal/models"
)

const (
	goatbotsBaseURL        = "https://www.goatbots.com"
	goatbotsDefaultTimeout = 10 * time.Second
	goatbotsMaxBodyBytes   = 4 << 20
)

// priceTimestampLayouts are the date formats seen in goatbots price series
var priceTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// GoatbotsService fetches MTGO price history from goatbots
type GoatbotsService struct {
	client  *http.Client
	baseURL string
}

// NewGoatbotsService creates a goatbots client. An empty baseURL uses the
// public site.
func NewGoatbotsService(baseURL string, timeout time.Duration) *GoatbotsService {
	if baseURL == "" {
		baseURL = goatbotsBaseURL
	}
	if timeout <= 0 {
		timeout = goatbotsDefaultTimeout
	}
	return &GoatbotsService{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchPriceHistoryBody returns the raw price history document for a card.
// The body is validated before it is returned so a cache never stores a
// document that cannot be reduced to a price.
func (s *GoatbotsService) FetchPriceHistoryBody(ctx context.Context, normalizedName string) (string, error) {
	params := url.Values{}
	params.Set("search_name", normalizedName)
	reqURL := fmt.Sprintf("%s/card/ajax_card?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.RemoteFetchDuration.WithLabelValues("goatbots").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteFetchesTotal.WithLabelValues("goatbots", "failed").Inc()
		return "", fmt.Errorf("%w: failed to fetch goatbots prices for %s: %v", ErrSourceUnavailable, normalizedName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RemoteFetchesTotal.WithLabelValues("goatbots", "failed").Inc()
		return "", fmt.Errorf("%w: goatbots returned status %d for %s", ErrSourceUnavailable, resp.StatusCode, normalizedName)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, goatbotsMaxBodyBytes))
	if err != nil {
		metrics.RemoteFetchesTotal.WithLabelValues("goatbots", "failed").Inc()
		return "", fmt.Errorf("%w: failed to read goatbots response: %v", ErrSourceUnavailable, err)
	}

	if _, err := ParsePriceHistory(string(body)); err != nil {
		metrics.RemoteFetchesTotal.WithLabelValues("goatbots", "failed").Inc()
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	metrics.RemoteFetchesTotal.WithLabelValues("goatbots", "success").Inc()
	return string(body), nil
}

// ParsePriceHistory decodes a goatbots price document. The document is a
// JSON array whose second element holds one series per listing, each an
// array of [timestamp, price] pairs:
//
//	["lightning-bolt", [[["2024-01-01", 0.1], ["2024-01-02", 0.09]], [...]]]
func ParsePriceHistory(body string) (models.PriceHistory, error) {
	var doc []json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return models.PriceHistory{}, fmt.Errorf("malformed price history: %w", err)
	}
	if len(doc) < 2 {
		return models.PriceHistory{}, fmt.Errorf("malformed price history: expected at least 2 elements, got %d", len(doc))
	}

	var rawSeries [][][]json.RawMessage
	if err := json.Unmarshal(doc[1], &rawSeries); err != nil {
		return models.PriceHistory{}, fmt.Errorf("malformed price series: %w", err)
	}

	history := models.PriceHistory{Series: make([]models.PriceSeries, 0, len(rawSeries))}
	for i, rs := range rawSeries {
		series := make(models.PriceSeries, 0, len(rs))
		for j, pair := range rs {
			if len(pair) < 2 {
				return models.PriceHistory{}, fmt.Errorf("malformed price entry %d/%d: expected [timestamp, price]", i, j)
			}
			ts, err := parsePriceTimestamp(pair[0])
			if err != nil {
				return models.PriceHistory{}, fmt.Errorf("malformed price entry %d/%d: %w", i, j, err)
			}
			var price decimal.Decimal
			if err := price.UnmarshalJSON(pair[1]); err != nil {
				return models.PriceHistory{}, fmt.Errorf("malformed price entry %d/%d: %w", i, j, err)
			}
			series = append(series, models.PriceHistoryEntry{Timestamp: ts, Price: price})
		}
		history.Series = append(history.Series, series)
	}

	return history, nil
}

// parsePriceTimestamp accepts a date string or epoch milliseconds
func parsePriceTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range priceTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
