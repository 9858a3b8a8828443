package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codyseavey/tix-calc/internal/models"
)

// PostgresCacheStore stores cache entries in PostgreSQL through a pgx pool
type PostgresCacheStore struct {
	db *pgxpool.Pool
}

// NewPostgresCacheStore wraps an open pool
func NewPostgresCacheStore(db *pgxpool.Pool) *PostgresCacheStore {
	return &PostgresCacheStore{db: db}
}

// OpenPostgres connects to dsn, checks the connection and creates the cache
// table if needed
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", RedactDSN(dsn), err)
	}
	log.Println("Database connected successfully")

	if err := EnsurePostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsurePostgresSchema creates the cache table and folds mixed-case keys
// the same way the SQLite migrations do
func EnsurePostgresSchema(ctx context.Context, db *pgxpool.Pool) error {
	const schemaSQL = `
		CREATE TABLE IF NOT EXISTS card_price_cache (
			card_key      TEXT PRIMARY KEY,
			captured_at   TIMESTAMPTZ NOT NULL,
			history_body  TEXT NOT NULL DEFAULT '',
			metadata_body TEXT NOT NULL DEFAULT '',
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create card_price_cache: %w", err)
	}

	const indexSQL = `CREATE INDEX IF NOT EXISTS idx_card_price_cache_captured_at ON card_price_cache (captured_at)`
	if _, err := db.Exec(ctx, indexSQL); err != nil {
		return fmt.Errorf("create captured_at index: %w", err)
	}

	const dedupeSQL = `
		DELETE FROM card_price_cache AS c
		WHERE EXISTS (
			SELECT 1 FROM card_price_cache AS newer
			WHERE LOWER(newer.card_key) = LOWER(c.card_key)
			  AND newer.card_key <> c.card_key
			  AND (newer.captured_at > c.captured_at
			       OR (newer.captured_at = c.captured_at AND newer.card_key > c.card_key))
		)`
	tag, err := db.Exec(ctx, dedupeSQL)
	if err != nil {
		return fmt.Errorf("dedupe card_price_cache: %w", err)
	}
	if tag.RowsAffected() > 0 {
		log.Printf("Cleaned up %d duplicate card_price_cache entries", tag.RowsAffected())
	}

	const lowerSQL = `UPDATE card_price_cache SET card_key = LOWER(card_key) WHERE card_key <> LOWER(card_key)`
	if _, err := db.Exec(ctx, lowerSQL); err != nil {
		return fmt.Errorf("lowercase card_price_cache keys: %w", err)
	}
	return nil
}

// GetCacheEntry returns the entry for key, or nil, nil if there is none
func (s *PostgresCacheStore) GetCacheEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	const query = `
		SELECT card_key, captured_at, history_body, metadata_body, updated_at
		FROM card_price_cache
		WHERE card_key = $1`

	var e models.CacheEntry
	err := s.db.QueryRow(ctx, query, key).Scan(&e.Key, &e.CapturedAt, &e.HistoryBody, &e.MetadataBody, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cache entry %s: %w", key, err)
	}
	return &e, nil
}

// PutCacheEntry inserts or overwrites the entry for its key
func (s *PostgresCacheStore) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	const query = `
		INSERT INTO card_price_cache (card_key, captured_at, history_body, metadata_body, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (card_key) DO UPDATE SET
			captured_at = EXCLUDED.captured_at,
			history_body = EXCLUDED.history_body,
			metadata_body = EXCLUDED.metadata_body,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, entry.Key, entry.CapturedAt, entry.HistoryBody, entry.MetadataBody); err != nil {
		return fmt.Errorf("upsert cache entry %s: %w", entry.Key, err)
	}
	return nil
}

// ListStaleKeys returns up to limit keys captured before capturedBefore,
// oldest first
func (s *PostgresCacheStore) ListStaleKeys(ctx context.Context, capturedBefore time.Time, limit int) ([]string, error) {
	const query = `
		SELECT card_key
		FROM card_price_cache
		WHERE captured_at < $1
		ORDER BY captured_at ASC, card_key ASC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, capturedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale cache entries: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan stale cache entries: %w", err)
	}
	return keys, nil
}

// RedactDSN hides the credentials of a connection string for logging
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
