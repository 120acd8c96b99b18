// Package memory provides an in-memory backend implementation.
//
// It backs unit tests and dev mode. Fault and latency hooks let tests
// simulate the transient failures the engine must absorb.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/louisbranch/savepoint/internal/backend"
)

// Store is an in-memory Backend. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	primary map[string]map[string][]byte
	index   map[string]map[int64]int64

	// FaultHook, when set, runs before every operation with the operation
	// name ("primary.get", "primary.set", "index.set", "index.top"). A
	// non-nil return aborts the operation with that error.
	FaultHook func(op string) error
}

// New creates an empty in-memory backend.
func New() *Store {
	return &Store{
		primary: make(map[string]map[string][]byte),
		index:   make(map[string]map[int64]int64),
	}
}

func (s *Store) fault(op string) error {
	if s.FaultHook == nil {
		return nil
	}
	return s.FaultHook(op)
}

// Get returns the payload stored at (storeID, itemKey).
func (s *Store) Get(ctx context.Context, storeID, itemKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.fault("primary.get"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.primary[storeID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	payload, ok := items[itemKey]
	if !ok {
		return nil, backend.ErrNotFound
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)
	return copied, nil
}

// Set stores a payload at (storeID, itemKey), overwriting any previous value.
func (s *Store) Set(ctx context.Context, storeID, itemKey string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fault("primary.set"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.primary[storeID]
	if !ok {
		items = make(map[string][]byte)
		s.primary[storeID] = items
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)
	items[itemKey] = copied
	return nil
}

// SetScore records (key, score) in the ordered index store.
func (s *Store) SetScore(ctx context.Context, storeID string, key, score int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fault("index.set"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.index[storeID]
	if !ok {
		entries = make(map[int64]int64)
		s.index[storeID] = entries
	}
	entries[key] = score
	return nil
}

// TopPage returns up to pageSize index entries ordered by key descending.
func (s *Store) TopPage(ctx context.Context, storeID string, pageSize int) ([]backend.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.fault("index.top"); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.index[storeID]
	page := make([]backend.IndexEntry, 0, len(entries))
	for key, score := range entries {
		page = append(page, backend.IndexEntry{Key: key, Score: score})
	}
	sort.Slice(page, func(i, j int) bool { return page[i].Key > page[j].Key })
	if len(page) > pageSize {
		page = page[:pageSize]
	}
	return page, nil
}

// Close releases nothing; it exists to satisfy the Backend interface.
func (s *Store) Close() error {
	return nil
}
