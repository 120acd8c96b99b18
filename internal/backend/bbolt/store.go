// Package bbolt provides a BoltDB-backed backend implementation.
package bbolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/savepoint/internal/backend"
	"go.etcd.io/bbolt"
)

const (
	primaryBucket = "primary"
	indexBucket   = "index"
)

// Store provides a BoltDB-backed Backend.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed backend at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get fetches the payload stored at (storeID, itemKey).
func (s *Store) Get(ctx context.Context, storeID, itemKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var payload []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(primaryBucket))
		if root == nil {
			return fmt.Errorf("primary bucket is missing")
		}
		items := root.Bucket([]byte(storeID))
		if items == nil {
			return backend.ErrNotFound
		}
		stored := items.Get([]byte(itemKey))
		if stored == nil {
			return backend.ErrNotFound
		}
		payload = make([]byte, len(stored))
		copy(payload, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Set stores a payload at (storeID, itemKey).
func (s *Store) Set(ctx context.Context, storeID, itemKey string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(storeID) == "" {
		return fmt.Errorf("store id is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(primaryBucket))
		if root == nil {
			return fmt.Errorf("primary bucket is missing")
		}
		items, err := root.CreateBucketIfNotExists([]byte(storeID))
		if err != nil {
			return fmt.Errorf("create store bucket: %w", err)
		}
		return items.Put([]byte(itemKey), payload)
	})
}

// SetScore records (key, score) in the ordered index store. Keys are stored
// big-endian so bucket order matches numeric order.
func (s *Store) SetScore(ctx context.Context, storeID string, key, score int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(storeID) == "" {
		return fmt.Errorf("store id is required")
	}
	if key < 0 {
		return fmt.Errorf("index key must not be negative")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(indexBucket))
		if root == nil {
			return fmt.Errorf("index bucket is missing")
		}
		entries, err := root.CreateBucketIfNotExists([]byte(storeID))
		if err != nil {
			return fmt.Errorf("create index bucket: %w", err)
		}
		return entries.Put(indexKey(key), indexKey(score))
	})
}

// TopPage returns up to pageSize index entries ordered by key descending.
func (s *Store) TopPage(ctx context.Context, storeID string, pageSize int) ([]backend.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		pageSize = 1
	}

	var page []backend.IndexEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(indexBucket))
		if root == nil {
			return fmt.Errorf("index bucket is missing")
		}
		entries := root.Bucket([]byte(storeID))
		if entries == nil {
			return nil
		}
		cursor := entries.Cursor()
		for k, v := cursor.Last(); k != nil && len(page) < pageSize; k, v = cursor.Prev() {
			page = append(page, backend.IndexEntry{
				Key:   int64(binary.BigEndian.Uint64(k)),
				Score: int64(binary.BigEndian.Uint64(v)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{primaryBucket, indexBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func indexKey(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}
