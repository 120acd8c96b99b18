package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/savepoint/internal/backend"
)

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := New()
	_, err := store.Get(context.Background(), "players/Player1", "1")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetThenGet(t *testing.T) {
	store := New()
	if err := store.Set(context.Background(), "players/Player1", "1", []byte(`{"coins":50}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	payload, err := store.Get(context.Background(), "players/Player1", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(payload) != `{"coins":50}` {
		t.Fatalf("unexpected payload %q", payload)
	}
}

func TestTopPageOrdersDescending(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []int64{1, 3, 2} {
		if err := store.SetScore(ctx, "players/Player1/versions", key, key*100); err != nil {
			t.Fatalf("set score %d: %v", key, err)
		}
	}

	page, err := store.TopPage(ctx, "players/Player1/versions", 2)
	if err != nil {
		t.Fatalf("top page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page))
	}
	if page[0].Key != 3 || page[1].Key != 2 {
		t.Fatalf("expected keys 3,2 descending, got %d,%d", page[0].Key, page[1].Key)
	}
}

func TestTopPageEmptyStore(t *testing.T) {
	store := New()
	page, err := store.TopPage(context.Background(), "players/Nobody/versions", 1)
	if err != nil {
		t.Fatalf("top page: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty page, got %d entries", len(page))
	}
}

func TestFaultHookAbortsOperations(t *testing.T) {
	store := New()
	boom := errors.New("simulated outage")
	store.FaultHook = func(op string) error {
		if op == "primary.set" {
			return boom
		}
		return nil
	}

	err := store.Set(context.Background(), "players/Player1", "1", []byte("x"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	if _, err := store.TopPage(context.Background(), "s", 1); err != nil {
		t.Fatalf("unrelated op should pass: %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()
	if err := store.Set(ctx, "s", "k", []byte("abc")); err != nil {
		t.Fatalf("set: %v", err)
	}
	payload, err := store.Get(ctx, "s", "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload[0] = 'z'
	again, err := store.Get(ctx, "s", "k")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if string(again) != "abc" {
		t.Fatalf("expected stored payload to be isolated from caller mutation, got %q", again)
	}
}
