package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryEntry is one observed price at a point in time
type PriceHistoryEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// PriceSeries is the ordered history of a single listing (one seller or
// one printing of the card on the upstream site)
type PriceSeries []PriceHistoryEntry

// PriceHistory groups all listing series known for a card
type PriceHistory struct {
	Series []PriceSeries `json:"series"`
}

// CacheEntry is the cached upstream data for one card, keyed by the
// normalized card name. Bodies are stored exactly as fetched and decoded on
// read; an entry is overwritten on every successful fetch and never deleted.
type CacheEntry struct {
	Key          string    `json:"key" gorm:"column:card_key;primaryKey"`
	CapturedAt   time.Time `json:"captured_at" gorm:"not null;index"`
	HistoryBody  string    `json:"history_body" gorm:"type:text"`
	MetadataBody string    `json:"metadata_body,omitempty" gorm:"type:text"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName keeps the table name stable across struct renames
func (CacheEntry) TableName() string {
	return "card_price_cache"
}

// FreshUntil is the last valuation instant (exclusive) the entry may serve
func (e CacheEntry) FreshUntil(window time.Duration) time.Time {
	return e.CapturedAt.Add(window)
}
