package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tix-calc/internal/models"
)

// PriceCacheRepository stores cache entries through gorm (SQLite by default)
type PriceCacheRepository struct {
	db *gorm.DB
}

// NewPriceCacheRepository wraps an initialized database
func NewPriceCacheRepository(db *gorm.DB) *PriceCacheRepository {
	return &PriceCacheRepository{db: db}
}

// GetCacheEntry returns the entry for key, or nil, nil if there is none
func (r *PriceCacheRepository) GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := r.db.WithContext(ctx).Where("card_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PutCacheEntry inserts or overwrites the entry for its key
func (r *PriceCacheRepository) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"captured_at", "history_body", "metadata_body", "updated_at"}),
	}).Create(entry).Error
}

// ListStaleKeys returns up to limit keys captured before capturedBefore,
// oldest first
func (r *PriceCacheRepository) ListStaleKeys(ctx context.Context, capturedBefore time.Time, limit int) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Where("captured_at < ?", capturedBefore).
		Order("captured_at ASC, card_key ASC").
		Limit(limit).
		Pluck("card_key", &keys).Error
	return keys, err
}

// CountEntries returns the number of cached cards
func (r *PriceCacheRepository) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CacheEntry{}).Count(&count).Error
	return count, err
}
