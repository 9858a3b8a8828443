package database

import (
	"log"

	"gorm.io/gorm"
)

const cacheTable = "card_price_cache"

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	if err := cleanupDuplicateCacheKeys(db); err != nil {
		return err
	}
	return migrateLowercaseKeys(db)
}

// cleanupDuplicateCacheKeys removes entries whose key differs from another
// entry only by case, keeping the most recent capture. Older releases keyed
// the cache by the name as typed, so "Lightning-Bolt" and "lightning-bolt"
// could both exist.
func cleanupDuplicateCacheKeys(db *gorm.DB) error {
	if !db.Migrator().HasTable(cacheTable) {
		return nil
	}

	result := db.Exec(`
		DELETE FROM card_price_cache
		WHERE EXISTS (
			SELECT 1 FROM card_price_cache AS newer
			WHERE LOWER(newer.card_key) = LOWER(card_price_cache.card_key)
			  AND newer.card_key <> card_price_cache.card_key
			  AND (newer.captured_at > card_price_cache.captured_at
			       OR (newer.captured_at = card_price_cache.captured_at
			           AND newer.card_key > card_price_cache.card_key))
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d duplicate card_price_cache entries", result.RowsAffected)
	}
	return nil
}

// migrateLowercaseKeys rewrites the surviving mixed-case keys so lookups by
// normalized name find them. Safe to run repeatedly.
func migrateLowercaseKeys(db *gorm.DB) error {
	if !db.Migrator().HasTable(cacheTable) {
		return nil
	}

	result := db.Exec(`UPDATE card_price_cache SET card_key = LOWER(card_key) WHERE card_key <> LOWER(card_key)`)
	if result.Error != nil {
		log.Printf("Warning: failed to lowercase card_price_cache keys: %v", result.Error)
		return nil
	}
	if result.RowsAffected > 0 {
		log.Printf("Migrated %d card_price_cache keys to lower case", result.RowsAffected)
	}
	return nil
}
