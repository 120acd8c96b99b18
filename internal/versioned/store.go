// Package versioned implements append-only versioned persistence for one
// logical key.
//
// Payloads are written to the primary store under monotonically increasing
// version numbers and never overwritten; an ordered index store records
// (version -> timestamp) so the newest version is always the maximum index
// key. Loading consults the index first, which protects the last known-good
// payload from partial or corrupt writes.
package versioned

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/louisbranch/savepoint/internal/backend"
	"github.com/louisbranch/savepoint/internal/datatree"
	"github.com/louisbranch/savepoint/internal/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/savepoint/internal/versioned"

// IndexError reports a save whose payload write succeeded but whose index
// write failed after exhausting retries. The orphaned payload version is
// harmless: the index never points to it, so it never becomes latest.
type IndexError struct {
	Version int64
	Err     error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("version %d written but index not advanced: %v", e.Version, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Store persists versioned payloads for one logical key/scope pair.
//
// Store is not safe for concurrent use; the owning cache entry serializes
// access to it.
type Store struct {
	primary   backend.Primary
	index     backend.OrderedIndex
	primaryID string
	indexID   string
	runner    *retry.Runner
	clock     func() time.Time

	latest int64
	synced bool
}

// New creates a Store over the provided backend. storeID names the primary
// store; the ordered index store is derived from it.
func New(b backend.Backend, storeID string, runner *retry.Runner) *Store {
	return &Store{
		primary:   b,
		index:     b,
		primaryID: storeID,
		indexID:   storeID + "/versions",
		runner:    runner,
		clock:     time.Now,
	}
}

// WithClock replaces the timestamp source. Tests use it for stable index
// scores.
func (s *Store) WithClock(clock func() time.Time) *Store {
	if s != nil && clock != nil {
		s.clock = clock
	}
	return s
}

// Latest returns the most recent version number known to this store, zero
// when none has been discovered or written yet.
func (s *Store) Latest() int64 {
	if s == nil {
		return 0
	}
	return s.latest
}

// LoadLatest fetches the newest persisted payload.
//
// The ordered index is the authoritative pointer to the current version: the
// top entry keys the primary-store item holding the payload. An empty index
// means no version was ever saved and is reported as found=false.
func (s *Store) LoadLatest(ctx context.Context) (value datatree.Value, found bool, err error) {
	if s == nil {
		return datatree.Nil(), false, fmt.Errorf("versioned store is not configured")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "versioned.load",
		trace.WithAttributes(attribute.String("savepoint.store", s.primaryID)))
	defer span.End()

	if err := s.refreshLatest(ctx); err != nil {
		return datatree.Nil(), false, err
	}
	if s.latest == 0 {
		return datatree.Nil(), false, nil
	}
	span.SetAttributes(attribute.Int64("savepoint.version", s.latest))

	var payload []byte
	itemKey := versionKey(s.latest)
	err = s.runner.Do(ctx, "load version payload", func(ctx context.Context) error {
		fetched, getErr := s.primary.Get(ctx, s.primaryID, itemKey)
		if getErr != nil {
			return getErr
		}
		payload = fetched
		return nil
	})
	if err != nil {
		return datatree.Nil(), false, err
	}

	var decoded datatree.Value
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return datatree.Nil(), false, fmt.Errorf("decode version %d payload: %w", s.latest, err)
	}
	return decoded, true, nil
}

// SaveNext appends value as the next version.
//
// The payload write and the index write are separate remote operations. A
// payload-write failure leaves the version counter unchanged; an index-write
// failure is returned as an *IndexError and the payload slot is abandoned,
// to be overwritten by the next successful save of the same version number.
func (s *Store) SaveNext(ctx context.Context, value datatree.Value) error {
	if s == nil {
		return fmt.Errorf("versioned store is not configured")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "versioned.save",
		trace.WithAttributes(attribute.String("savepoint.store", s.primaryID)))
	defer span.End()

	// Discover the current version before the first append so a save
	// without a prior load never clobbers an existing chain.
	if !s.synced {
		if err := s.refreshLatest(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	next := s.latest + 1
	span.SetAttributes(attribute.Int64("savepoint.version", next))

	itemKey := versionKey(next)
	if err := s.runner.Do(ctx, "write version payload", func(ctx context.Context) error {
		return s.primary.Set(ctx, s.primaryID, itemKey, payload)
	}); err != nil {
		return err
	}

	timestamp := s.clock().UTC().UnixMilli()
	if err := s.runner.Do(ctx, "advance version index", func(ctx context.Context) error {
		return s.index.SetScore(ctx, s.indexID, next, timestamp)
	}); err != nil {
		return &IndexError{Version: next, Err: err}
	}

	s.latest = next
	s.synced = true
	return nil
}

// refreshLatest reads the top of the ordered index and caches the newest
// version number. An empty index sets latest to zero.
func (s *Store) refreshLatest(ctx context.Context) error {
	var page []backend.IndexEntry
	err := s.runner.Do(ctx, "read version index", func(ctx context.Context) error {
		fetched, topErr := s.index.TopPage(ctx, s.indexID, 1)
		if topErr != nil {
			return topErr
		}
		page = fetched
		return nil
	})
	if err != nil {
		return err
	}

	if len(page) == 0 {
		s.latest = 0
	} else {
		s.latest = page[0].Key
	}
	s.synced = true
	return nil
}

func versionKey(version int64) string {
	return strconv.FormatInt(version, 10)
}
