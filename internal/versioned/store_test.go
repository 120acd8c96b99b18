package versioned

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/savepoint/internal/backend/memory"
	"github.com/louisbranch/savepoint/internal/datatree"
	"github.com/louisbranch/savepoint/internal/retry"
)

func testRunner(attempts int) *retry.Runner {
	return retry.New(attempts, time.Millisecond, retry.WithSleep(func(context.Context, time.Duration) error {
		return nil
	}))
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}
}

func TestLoadLatestEmptyBackend(t *testing.T) {
	store := New(memory.New(), "players/Player1", testRunner(3))

	_, found, err := store.LoadLatest(context.Background())
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if found {
		t.Fatal("expected no payload on empty backend")
	}
	if store.Latest() != 0 {
		t.Fatalf("expected latest 0, got %d", store.Latest())
	}
}

func TestSaveNextThenLoadFromFreshStore(t *testing.T) {
	remote := memory.New()
	ctx := context.Background()

	store := New(remote, "players/Player1", testRunner(3)).WithClock(fixedClock())
	value := datatree.Map(map[string]datatree.Value{"coins": datatree.Number(50)})
	if err := store.SaveNext(ctx, value); err != nil {
		t.Fatalf("save next: %v", err)
	}
	if store.Latest() != 1 {
		t.Fatalf("expected latest 1 after first save, got %d", store.Latest())
	}

	fresh := New(remote, "players/Player1", testRunner(3))
	loaded, found, err := fresh.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if !found {
		t.Fatal("expected payload to be found")
	}
	if !datatree.Equal(loaded, value) {
		t.Fatal("expected loaded value to match saved value")
	}
}

func TestVersionMonotonicity(t *testing.T) {
	remote := memory.New()
	ctx := context.Background()
	store := New(remote, "players/Player1", testRunner(3)).WithClock(fixedClock())

	for i := 1; i <= 5; i++ {
		value := datatree.Map(map[string]datatree.Value{"coins": datatree.Number(float64(i * 10))})
		if err := store.SaveNext(ctx, value); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if store.Latest() != int64(i) {
			t.Fatalf("expected latest %d, got %d", i, store.Latest())
		}
	}

	// Every version slot 1..5 remains retrievable: the chain is append-only.
	for i := int64(1); i <= 5; i++ {
		if _, err := remote.Get(ctx, "players/Player1", versionKey(i)); err != nil {
			t.Fatalf("expected version %d payload to exist: %v", i, err)
		}
	}

	fresh := New(remote, "players/Player1", testRunner(3))
	loaded, found, err := fresh.LoadLatest(ctx)
	if err != nil || !found {
		t.Fatalf("load latest: found=%v err=%v", found, err)
	}
	coins, _ := loaded.Field("coins")
	if n, _ := coins.AsNumber(); n != 50 {
		t.Fatalf("expected newest payload (coins=50), got %v", n)
	}
}

func TestSaveNextIndexFailureKeepsPreviousLatest(t *testing.T) {
	remote := memory.New()
	ctx := context.Background()
	store := New(remote, "players/Player1", testRunner(2)).WithClock(fixedClock())

	if err := store.SaveNext(ctx, datatree.Number(1)); err != nil {
		t.Fatalf("first save: %v", err)
	}

	remote.FaultHook = func(op string) error {
		if op == "index.set" {
			return errors.New("index outage")
		}
		return nil
	}

	err := store.SaveNext(ctx, datatree.Number(2))
	var indexErr *IndexError
	if !errors.As(err, &indexErr) {
		t.Fatalf("expected IndexError, got %v", err)
	}
	if indexErr.Version != 2 {
		t.Fatalf("expected orphaned version 2, got %d", indexErr.Version)
	}
	if store.Latest() != 1 {
		t.Fatalf("expected latest to stay 1, got %d", store.Latest())
	}

	// A fresh load still sees version 1: the orphan never became latest.
	remote.FaultHook = nil
	fresh := New(remote, "players/Player1", testRunner(2))
	loaded, found, err := fresh.LoadLatest(ctx)
	if err != nil || !found {
		t.Fatalf("load latest: found=%v err=%v", found, err)
	}
	if n, _ := loaded.AsNumber(); n != 1 {
		t.Fatalf("expected payload of version 1, got %v", n)
	}

	// The next successful save reuses the abandoned slot.
	if err := store.SaveNext(ctx, datatree.Number(3)); err != nil {
		t.Fatalf("retry save: %v", err)
	}
	if store.Latest() != 2 {
		t.Fatalf("expected latest 2 after recovery, got %d", store.Latest())
	}
}

func TestSaveNextPayloadFailureDoesNotAdvance(t *testing.T) {
	remote := memory.New()
	ctx := context.Background()
	store := New(remote, "players/Player1", testRunner(2)).WithClock(fixedClock())

	remote.FaultHook = func(op string) error {
		if op == "primary.set" {
			return errors.New("primary outage")
		}
		return nil
	}

	err := store.SaveNext(ctx, datatree.Number(1))
	if err == nil {
		t.Fatal("expected save failure")
	}
	var indexErr *IndexError
	if errors.As(err, &indexErr) {
		t.Fatal("payload failure must not be reported as an index error")
	}
	if store.Latest() != 0 {
		t.Fatalf("expected latest to stay 0, got %d", store.Latest())
	}
}

func TestLoadLatestRetriesExactBudget(t *testing.T) {
	remote := memory.New()
	attempts := 0
	remote.FaultHook = func(op string) error {
		if op == "index.top" {
			attempts++
			return errors.New("transient")
		}
		return nil
	}
	store := New(remote, "players/Player1", testRunner(3))

	_, _, err := store.LoadLatest(context.Background())
	if err == nil {
		t.Fatal("expected load failure after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestSaveWithoutLoadAppendsToExistingChain(t *testing.T) {
	remote := memory.New()
	ctx := context.Background()

	first := New(remote, "players/Player1", testRunner(3)).WithClock(fixedClock())
	if err := first.SaveNext(ctx, datatree.Number(1)); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	// A second process saves without loading; the chain must not restart at 1.
	second := New(remote, "players/Player1", testRunner(3)).WithClock(fixedClock())
	if err := second.SaveNext(ctx, datatree.Number(2)); err != nil {
		t.Fatalf("save without load: %v", err)
	}
	if second.Latest() != 2 {
		t.Fatalf("expected append at version 2, got %d", second.Latest())
	}

	if _, err := remote.Get(ctx, "players/Player1", "1"); err != nil {
		t.Fatalf("expected version 1 to survive: %v", err)
	}
}

func TestIndexScoreRecordsTimestamp(t *testing.T) {
	remote := memory.New()
	ctx := context.Background()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := New(remote, "players/Player1", testRunner(3)).WithClock(func() time.Time { return now })

	if err := store.SaveNext(ctx, datatree.Number(1)); err != nil {
		t.Fatalf("save: %v", err)
	}

	page, err := remote.TopPage(ctx, "players/Player1/versions", 1)
	if err != nil || len(page) != 1 {
		t.Fatalf("top page: %v (%d entries)", err, len(page))
	}
	if page[0].Score != now.UnixMilli() {
		t.Fatalf("expected index score %d, got %d", now.UnixMilli(), page[0].Score)
	}
}
