package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/louisbranch/savepoint/internal/backend"
	"github.com/louisbranch/savepoint/internal/identity"
	"github.com/louisbranch/savepoint/internal/retry"
	"github.com/louisbranch/savepoint/internal/versioned"
)

// Key identifies one cached unit of data.
type Key struct {
	Logical string
	Scope   string
}

func (k Key) String() string {
	return k.Scope + "/" + k.Logical
}

// Registry owns the process-wide map from (logical key, scope) to the single
// shared Entry. Exclusive ownership of the map is what guarantees that
// concurrent callers never build divergent caches of the same remote data.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]*Entry

	remote   backend.Backend
	resolver identity.Resolver
	runner   *retry.Runner
	opts     Options
}

// NewRegistry creates a Registry over the provided backend. resolver may be
// nil when the host has no identity system.
func NewRegistry(remote backend.Backend, resolver identity.Resolver, opts Options) *Registry {
	opts = opts.normalized()
	return &Registry{
		entries:  make(map[Key]*Entry),
		remote:   remote,
		resolver: resolver,
		runner:   retry.New(opts.AttemptCount, opts.AttemptDelay),
		opts:     opts,
	}
}

// Resolve returns the entry for identifier in the global scope.
func (r *Registry) Resolve(ctx context.Context, identifier string) (*Entry, error) {
	return r.ResolveScoped(ctx, identifier, "")
}

// ResolveScoped returns the entry for (identifier, scope), constructing and
// registering it on first use. For a fixed key and scope every call returns
// the same Entry instance until the entry is removed.
//
// With LoadDataInstantly set the initial load happens here; a load failure is
// returned but the entry stays registered and retries on its next Get.
func (r *Registry) ResolveScoped(ctx context.Context, identifier, scope string) (*Entry, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is not configured")
	}
	derived, err := identity.Derive(r.resolver, r.opts.IdentityKeyPrefix, identifier)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	if scope == "" {
		scope = r.opts.GlobalScopeKey
	}
	key := Key{Logical: derived.Logical, Scope: scope}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &Entry{
			key:         key,
			store:       versioned.New(r.remote, key.String(), r.runner),
			registry:    r,
			opts:        r.opts,
			identityID:  derived.IdentityID,
			hasIdentity: derived.IsIdentity,
		}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	// The eager load runs outside the map lock; the entry is already
	// registered, so a reentrant Resolve cannot create a duplicate while
	// the load is in flight.
	if !ok && r.opts.LoadDataInstantly {
		if err := entry.ensureLoaded(ctx); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// SaveAll saves every dirty entry. Failures are collected so one bad key
// does not stop the flush; the joined error reports all of them.
func (r *Registry) SaveAll(ctx context.Context) (saved int, err error) {
	if r == nil {
		return 0, nil
	}
	var errs []error
	for _, entry := range r.snapshot() {
		ok, saveErr := entry.Save(ctx)
		if saveErr != nil {
			if errors.Is(saveErr, ErrEntryRemoved) {
				continue
			}
			errs = append(errs, saveErr)
			continue
		}
		if ok {
			saved++
		}
	}
	return saved, errors.Join(errs...)
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Keys returns the registered keys sorted by scope then logical key.
func (r *Registry) Keys() []Key {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	keys := make([]Key, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Scope != keys[j].Scope {
			return keys[i].Scope < keys[j].Scope
		}
		return keys[i].Logical < keys[j].Logical
	})
	return keys
}

func (r *Registry) snapshot() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	return entries
}

// evict removes the mapping for key when it still points at entry. A stale
// handle removed after re-registration must not evict its replacement.
func (r *Registry) evict(key Key, entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[key]; ok && current == entry {
		delete(r.entries, key)
	}
}
