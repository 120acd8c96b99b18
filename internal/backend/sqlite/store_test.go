package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/louisbranch/savepoint/internal/backend"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "backend.db"))
	if err != nil {
		t.Fatalf("open sqlite backend: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close sqlite backend: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "players/Player1", "1")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetOverwritesSameVersionSlot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "players/Player1", "1", []byte("first")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "players/Player1", "1", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	payload, err := store.Get(ctx, "players/Player1", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(payload) != "second" {
		t.Fatalf("expected overwrite to win, got %q", payload)
	}
}

func TestTopPageDescendingWithLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for key := int64(1); key <= 5; key++ {
		if err := store.SetScore(ctx, "players/Player1/versions", key, key*1000); err != nil {
			t.Fatalf("set score %d: %v", key, err)
		}
	}

	page, err := store.TopPage(ctx, "players/Player1/versions", 1)
	if err != nil {
		t.Fatalf("top page: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected single entry, got %d", len(page))
	}
	if page[0].Key != 5 {
		t.Fatalf("expected newest key 5, got %d", page[0].Key)
	}
	if page[0].Score != 5000 {
		t.Fatalf("expected score 5000, got %d", page[0].Score)
	}
}

func TestStoresAreIsolatedByID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "players/Player1", "1", []byte("one")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := store.Get(ctx, "players/Player2", "1"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected not found for other store, got %v", err)
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
	if _, err := store.Get(context.Background(), "s", "k"); err == nil {
		t.Fatal("expected error from unconfigured store")
	}
}
