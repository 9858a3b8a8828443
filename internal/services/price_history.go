package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tix-calc/internal/models"
)

// ReducePriceHistory picks the price of a card as of a valuation date.
// For each listing series it takes the entry with the greatest timestamp not
// after asOf (the later entry wins a timestamp tie), then returns the lowest
// of those prices.
//
// A series with no entry at or before asOf is skipped, unless
// fallbackToEarliest is set, in which case its earliest entry is used.
// Callers that want a price for every back-dated valuation enable it
// through the fallback_to_earliest config key.
// ok is false when no series yields a price.
func ReducePriceHistory(history models.PriceHistory, asOf time.Time, fallbackToEarliest bool) (price decimal.Decimal, ok bool) {
	for _, series := range history.Series {
		entry, found := selectEntry(series, asOf, fallbackToEarliest)
		if !found {
			continue
		}
		if !ok || entry.Price.LessThan(price) {
			price = entry.Price
			ok = true
		}
	}
	return price, ok
}

func selectEntry(series models.PriceSeries, asOf time.Time, fallbackToEarliest bool) (models.PriceHistoryEntry, bool) {
	var best, earliest *models.PriceHistoryEntry
	for i := range series {
		e := &series[i]
		if earliest == nil || e.Timestamp.Before(earliest.Timestamp) {
			earliest = e
		}
		if e.Timestamp.After(asOf) {
			continue
		}
		if best == nil || !e.Timestamp.Before(best.Timestamp) {
			best = e
		}
	}

	switch {
	case best != nil:
		return *best, true
	case fallbackToEarliest && earliest != nil:
		return *earliest, true
	default:
		return models.PriceHistoryEntry{}, false
	}
}
