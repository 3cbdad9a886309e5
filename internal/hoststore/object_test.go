package hoststore

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func testObjectStoreRoundTrip(t *testing.T, store ObjectStore) {
	t.Helper()
	ctx := context.Background()

	rec := Record{
		Body:   []byte("payload"),
		Header: map[string]string{"X-Test": "yes"},
	}
	if err := store.Put(ctx, "http://example.com/a", rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Match(ctx, "http://example.com/a")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !ok {
		t.Fatal("Match failed: record not found")
	}
	if string(got.Body) != "payload" {
		t.Errorf("Body mismatch: got %s, want payload", got.Body)
	}
	if got.Header["X-Test"] != "yes" {
		t.Errorf("Header mismatch: got %q, want yes", got.Header["X-Test"])
	}

	// Absent url
	_, ok, err = store.Match(ctx, "http://example.com/missing")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if ok {
		t.Error("Match reported a record for an absent url")
	}
}

func testObjectStoreKeysOrder(t *testing.T, store ObjectStore) {
	t.Helper()
	ctx := context.Background()

	urls := []string{
		"http://example.com/1",
		"http://example.com/2",
		"http://example.com/3",
	}
	for _, u := range urls {
		if err := store.Put(ctx, u, Record{Body: []byte(u)}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	// Overwrite the first entry; it must keep its position.
	if err := store.Put(ctx, urls[0], Record{Body: []byte("updated")}); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("Expected 3 keys, got %d", len(keys))
	}
	for i, u := range urls {
		if keys[i] != u {
			t.Errorf("Key %d: got %s, want %s", i, keys[i], u)
		}
	}
}

func testObjectStoreDeleteAndDestroy(t *testing.T, store ObjectStore) {
	t.Helper()
	ctx := context.Background()

	if err := store.Put(ctx, "http://example.com/a", Record{Body: []byte("a")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	deleted, err := store.Delete(ctx, "http://example.com/a")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Delete did not report removing an existing record")
	}

	// Deleting an absent record is a no-op
	deleted, err = store.Delete(ctx, "http://example.com/a")
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if deleted {
		t.Error("Delete reported removing an absent record")
	}

	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("http://example.com/%d", i)
		if err := store.Put(ctx, url, Record{Body: []byte("x")}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := store.Destroy(ctx); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys after destroy failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected empty store after destroy, got %d keys", len(keys))
	}

	// The store must accept writes again after destroy
	if err := store.Put(ctx, "http://example.com/new", Record{Body: []byte("x")}); err != nil {
		t.Fatalf("Put after destroy failed: %v", err)
	}
}

func TestMemObject(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		testObjectStoreRoundTrip(t, NewMemObject())
	})
	t.Run("KeysOrder", func(t *testing.T) {
		testObjectStoreKeysOrder(t, NewMemObject())
	})
	t.Run("DeleteAndDestroy", func(t *testing.T) {
		testObjectStoreDeleteAndDestroy(t, NewMemObject())
	})
}

func TestDiskObject(t *testing.T) {
	newStore := func(t *testing.T) ObjectStore {
		store, err := NewDiskObject(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		return store
	}

	t.Run("RoundTrip", func(t *testing.T) {
		testObjectStoreRoundTrip(t, newStore(t))
	})
	t.Run("KeysOrder", func(t *testing.T) {
		testObjectStoreKeysOrder(t, newStore(t))
	})
	t.Run("DeleteAndDestroy", func(t *testing.T) {
		testObjectStoreDeleteAndDestroy(t, newStore(t))
	})
}

func TestDiskObject_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewDiskObject(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	rec := Record{Body: []byte("durable"), Header: map[string]string{"X-Kind": "raw"}}
	if err := store.Put(ctx, "http://example.com/a", rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	reopened, err := NewDiskObject(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}

	got, ok, err := reopened.Match(ctx, "http://example.com/a")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !ok {
		t.Fatal("Record not found after reopen")
	}
	if string(got.Body) != "durable" {
		t.Errorf("Body mismatch after reopen: got %s, want durable", got.Body)
	}
	if got.Header["X-Kind"] != "raw" {
		t.Errorf("Header mismatch after reopen: got %q, want raw", got.Header["X-Kind"])
	}
}

func TestMemObject_CancelledContext(t *testing.T) {
	store := NewMemObject()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, "http://example.com/a", Record{}); err == nil {
		t.Error("Put with cancelled context should fail")
	}
	if _, _, err := store.Match(ctx, "http://example.com/a"); err == nil {
		t.Error("Match with cancelled context should fail")
	}
}
