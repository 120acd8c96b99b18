// Package backend defines the remote key-value contract consumed by the
// savepoint engine.
//
// The remote service is assumed to be eventually consistent and rate limited;
// every call may fail transiently and must be issued through the retry runner.
// Implementations (memory, sqlite, bbolt) live in subpackages.
package backend

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested item is missing from a store.
var ErrNotFound = errors.New("item not found")

// Primary stores payloads keyed by (storeID, itemKey). Version payloads are
// written under their version number and never overwritten by later saves.
type Primary interface {
	Get(ctx context.Context, storeID, itemKey string) ([]byte, error)
	Set(ctx context.Context, storeID, itemKey string, payload []byte) error
}

// IndexEntry is one (key, score) pair from an ordered index store.
type IndexEntry struct {
	Key   int64
	Score int64
}

// OrderedIndex records integer keys with scores and serves pages ordered by
// key descending. The engine uses it as the authoritative "latest version"
// pointer: the newest version is always the maximum key.
type OrderedIndex interface {
	SetScore(ctx context.Context, storeID string, key, score int64) error
	TopPage(ctx context.Context, storeID string, pageSize int) ([]IndexEntry, error)
}

// Backend combines the primary and ordered-index surfaces of one remote
// service endpoint.
type Backend interface {
	Primary
	OrderedIndex
	Close() error
}
