// Package sqlite provides a SQLite-backed backend implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/louisbranch/savepoint/internal/backend"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS primary_items (
	store_id TEXT NOT NULL,
	item_key TEXT NOT NULL,
	payload  BLOB NOT NULL,
	PRIMARY KEY (store_id, item_key)
);
CREATE TABLE IF NOT EXISTS index_entries (
	store_id  TEXT    NOT NULL,
	entry_key INTEGER NOT NULL,
	score     INTEGER NOT NULL,
	PRIMARY KEY (store_id, entry_key)
);
`

// Store is a SQLite-backed Backend.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite backend at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create backend schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get fetches the payload stored at (storeID, itemKey).
func (s *Store) Get(ctx context.Context, storeID, itemKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM primary_items WHERE store_id = ? AND item_key = ?`,
		storeID, itemKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get primary item: %w", err)
	}
	return payload, nil
}

// Set upserts a payload at (storeID, itemKey).
func (s *Store) Set(ctx context.Context, storeID, itemKey string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(storeID) == "" {
		return fmt.Errorf("store id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO primary_items (store_id, item_key, payload) VALUES (?, ?, ?)
		 ON CONFLICT (store_id, item_key) DO UPDATE SET payload = excluded.payload`,
		storeID, itemKey, payload,
	)
	if err != nil {
		return fmt.Errorf("set primary item: %w", err)
	}
	return nil
}

// SetScore upserts (key, score) in the ordered index store.
func (s *Store) SetScore(ctx context.Context, storeID string, key, score int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(storeID) == "" {
		return fmt.Errorf("store id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO index_entries (store_id, entry_key, score) VALUES (?, ?, ?)
		 ON CONFLICT (store_id, entry_key) DO UPDATE SET score = excluded.score`,
		storeID, key, score,
	)
	if err != nil {
		return fmt.Errorf("set index entry: %w", err)
	}
	return nil
}

// TopPage returns up to pageSize index entries ordered by key descending.
func (s *Store) TopPage(ctx context.Context, storeID string, pageSize int) ([]backend.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		pageSize = 1
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT entry_key, score FROM index_entries
		 WHERE store_id = ? ORDER BY entry_key DESC LIMIT ?`,
		storeID, pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query index page: %w", err)
	}
	defer rows.Close()

	var page []backend.IndexEntry
	for rows.Next() {
		var entry backend.IndexEntry
		if err := rows.Scan(&entry.Key, &entry.Score); err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		page = append(page, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index page: %w", err)
	}
	return page, nil
}
