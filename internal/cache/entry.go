// Package cache keeps per-key player data in memory between saves.
//
// A Registry hands out at most one Entry per (logical key, scope); the Entry
// behaves like a local mutable value while loads and saves go through the
// append-only versioned store. Entries track dirtiness so clean saves cost
// zero remote writes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/louisbranch/savepoint/internal/datatree"
	"github.com/louisbranch/savepoint/internal/versioned"
)

// ErrInvalidOperand indicates an arithmetic operation on a non-numeric value.
var ErrInvalidOperand = errors.New("invalid operand")

// ErrEntryRemoved indicates a call on an entry after Remove. Callers must not
// retain entry handles past Remove.
var ErrEntryRemoved = errors.New("entry removed")

type valueState int

const (
	stateUnloaded valueState = iota
	stateNotFound
	stateLoaded
	stateRemoved
)

// Entry is one cached logical value. All methods serialize on an internal
// mutex, so an Entry may be shared across goroutines.
type Entry struct {
	mu sync.Mutex

	key      Key
	store    *versioned.Store
	registry *Registry
	opts     Options

	identityID  int64
	hasIdentity bool

	state valueState
	value datatree.Value
	dirty bool
}

// Key returns the (logical key, scope) pair identifying this entry.
func (e *Entry) Key() Key {
	if e == nil {
		return Key{}
	}
	return e.key
}

// IdentityID returns the numeric identity bound to the entry, if the logical
// key has the reserved identity form.
func (e *Entry) IdentityID() (int64, bool) {
	if e == nil {
		return 0, false
	}
	return e.identityID, e.hasIdentity
}

// Dirty reports whether the in-memory value differs from the last
// successfully persisted version.
func (e *Entry) Dirty() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Get returns the cached value deep-filled with defaultValue.
//
// The first Get on an unloaded entry loads synchronously from the versioned
// store; this is the only read-triggered suspension point. Structured values
// are merged with defaultValue recursively, filling absent keys only. When
// nothing is stored, defaultValue is returned as-is and not cached — unless
// SetCacheToFirstDefault is set, in which case the absence marker itself is
// cached (not the default; this mirrors the reference behavior).
func (e *Entry) Get(ctx context.Context, defaultValue datatree.Value) (datatree.Value, error) {
	if e == nil {
		return datatree.Nil(), fmt.Errorf("entry is not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateRemoved {
		return datatree.Nil(), ErrEntryRemoved
	}
	if e.state == stateUnloaded {
		if err := e.loadLocked(ctx); err != nil {
			return datatree.Nil(), err
		}
	}

	if e.state == stateNotFound {
		if e.opts.SetCacheToFirstDefault {
			e.state = stateLoaded
			e.value = datatree.Nil()
		}
		return defaultValue, nil
	}

	return datatree.Merge(e.value, defaultValue), nil
}

// Set replaces the in-memory value. The entry is marked dirty only when the
// new value differs from the current one.
func (e *Entry) Set(value datatree.Value) error {
	if e == nil {
		return fmt.Errorf("entry is not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateRemoved {
		return ErrEntryRemoved
	}
	if e.state == stateLoaded && datatree.Equal(e.value, value) {
		return nil
	}
	e.state = stateLoaded
	e.value = value
	e.dirty = true
	return nil
}

// Increment adds amount to a numeric value and marks the entry dirty.
// Non-numeric values, including unloaded and absent ones, fail with
// ErrInvalidOperand.
func (e *Entry) Increment(amount float64) error {
	if e == nil {
		return fmt.Errorf("entry is not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateRemoved {
		return ErrEntryRemoved
	}
	if e.state != stateLoaded {
		return fmt.Errorf("increment on value that was never set: %w", ErrInvalidOperand)
	}
	current, ok := e.value.AsNumber()
	if !ok {
		return fmt.Errorf("increment on %s value: %w", e.value.Kind(), ErrInvalidOperand)
	}
	e.value = datatree.Number(current + amount)
	e.dirty = true
	return nil
}

// Save persists the value as a new version when the entry is dirty. A clean
// entry saves nothing and reports saved=false. On failure the entry stays
// dirty and the error is returned; a lost save is never silent.
func (e *Entry) Save(ctx context.Context) (saved bool, err error) {
	if e == nil {
		return false, fmt.Errorf("entry is not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateRemoved {
		return false, ErrEntryRemoved
	}
	if !e.dirty {
		return false, nil
	}

	if err := e.store.SaveNext(ctx, e.value); err != nil {
		return false, fmt.Errorf("save %s: %w", e.key, err)
	}
	e.dirty = false
	return true, nil
}

// Remove evicts the entry from its registry and clears internal state. It
// does not save; callers flush first when they need durability. Remove is
// terminal: any later call on the entry fails with ErrEntryRemoved.
func (e *Entry) Remove() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateRemoved {
		return
	}
	if e.registry != nil {
		e.registry.evict(e.key, e)
	}
	e.state = stateRemoved
	e.value = datatree.Nil()
	e.dirty = false
	e.store = nil
	e.registry = nil
}

// ensureLoaded performs the eager initial load used by Resolve when
// LoadDataInstantly is set.
func (e *Entry) ensureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateUnloaded {
		return nil
	}
	return e.loadLocked(ctx)
}

func (e *Entry) loadLocked(ctx context.Context) error {
	value, found, err := e.store.LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", e.key, err)
	}
	if !found {
		e.state = stateNotFound
		return nil
	}
	e.state = stateLoaded
	e.value = value
	return nil
}
