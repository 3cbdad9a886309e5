package hoststore

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestMemKV_BasicOperations(t *testing.T) {
	kv := NewMemKV()

	if err := kv.Set("key", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := kv.Get("key")
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if got != "value" {
		t.Errorf("Value mismatch: got %s, want value", got)
	}

	if kv.Len() != 1 {
		t.Errorf("Len mismatch: got %d, want 1", kv.Len())
	}

	if err := kv.Remove("key"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := kv.Get("key"); ok {
		t.Error("Key still exists after remove")
	}

	// Removing an absent key is not an error
	if err := kv.Remove("missing"); err != nil {
		t.Errorf("Remove of absent key returned error: %v", err)
	}
}

func TestMemKV_Clear(t *testing.T) {
	kv := NewMemKV()

	for i := 0; i < 5; i++ {
		kv.Set(fmt.Sprintf("key-%d", i), "value")
	}

	if err := kv.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("Len not zero after clear: %d", kv.Len())
	}
}

func TestMemKV_ConcurrentAccess(t *testing.T) {
	kv := NewMemKV()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("writer-%d-key-%d", id, j)
				kv.Set(key, "value")
				kv.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if kv.Len() != 500 {
		t.Errorf("Len mismatch after concurrent writes: got %d, want 500", kv.Len())
	}
}

func TestFileKV_RoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := kv.Set("key", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := kv.Get("key")
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if got != "value" {
		t.Errorf("Value mismatch: got %s, want value", got)
	}
}

func TestFileKV_Compression(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	// Highly compressible value above the threshold
	large := strings.Repeat("webstash ", 1024)
	if err := kv.Set("large", large); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := kv.Get("large")
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if got != large {
		t.Error("Large value did not round-trip through compression")
	}

	if kv.DiskUsage() >= int64(len(large)) {
		t.Errorf("Expected compressed storage, disk usage %d >= value size %d",
			kv.DiskUsage(), len(large))
	}
}

func TestFileKV_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	kv, err := NewFileKV(dir, 3)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := kv.Set("key", "durable"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := NewFileKV(dir, 3)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}

	got, ok := reopened.Get("key")
	if !ok {
		t.Fatal("Key not found after reopen")
	}
	if got != "durable" {
		t.Errorf("Value mismatch after reopen: got %s, want durable", got)
	}
}

func TestFileKV_ClearAndLen(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := kv.Set(fmt.Sprintf("key-%d", i), "value"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if kv.Len() != 3 {
		t.Errorf("Len mismatch: got %d, want 3", kv.Len())
	}

	if err := kv.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("Len not zero after clear: %d", kv.Len())
	}
	if _, ok := kv.Get("key-0"); ok {
		t.Error("Key still readable after clear")
	}
}
