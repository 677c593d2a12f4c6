package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T, capacity int64, opts ...Option) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), capacity, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestStorePutGetRoundTrip(t *testing.T) {
	store := openTestStore(t, 1<<20)

	key, err := Key("tts.synthesize", map[string]string{"text": "hello", "voice": "alloy"})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if err := store.Put(key, CategoryAPIResponses, Value{Data: []byte("payload"), TypeTag: "speech_result"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	val := store.Get(key)
	if val == nil {
		t.Fatal("expected hit")
	}
	if string(val.Data) != "payload" || val.TypeTag != "speech_result" {
		t.Fatalf("unexpected value %+v", val)
	}
}

func TestStoreConcurrentReadersSeeConsistentEntries(t *testing.T) {
	store := openTestStore(t, 1<<20)

	keys := make([]string, 8)
	for i := range keys {
		keys[i] = fmt.Sprintf("entry-%d", i)
		payload := []byte(fmt.Sprintf("payload-%d", i))
		if err := store.Put(keys[i], CategoryAPIResponses, Value{Data: payload}); err != nil {
			t.Fatalf("put %s: %v", keys[i], err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan string, len(keys)*10)
	for _, key := range keys {
		for n := 0; n < 10; n++ {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				val := store.Get(key)
				if val == nil {
					errs <- fmt.Sprintf("miss for %s", key)
					return
				}
				if want := "payload-" + key[len("entry-"):]; string(val.Data) != want {
					errs <- fmt.Sprintf("wrong payload for %s: %q", key, val.Data)
				}
			}(key)
		}
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestStoreMissReturnsNil(t *testing.T) {
	store := openTestStore(t, 1<<20)
	if val := store.Get("absent"); val != nil {
		t.Fatalf("expected miss, got %+v", val)
	}
}

func TestKeyIsDeterministicAcrossParamOrder(t *testing.T) {
	k1, err := Key("video.generate", map[string]any{"prompt": "sunset", "duration": 5})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	k2, err := Key("video.generate", map[string]any{"duration": 5, "prompt": "sunset"})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("keys differ: %s vs %s", k1, k2)
	}
	k3, err := Key("tts.synthesize", map[string]any{"prompt": "sunset", "duration": 5})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if k1 == k3 {
		t.Fatal("different api names produced the same key")
	}
}

func TestStoreExpiredEntryIsAMiss(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, 1<<20,
		WithClock(func() time.Time { return now }),
		WithTTL(CategoryTempFiles, time.Minute))

	if err := store.Put("tmp-key", CategoryTempFiles, Value{Data: []byte("scratch")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)

	if val := store.Get("tmp-key"); val != nil {
		t.Fatal("expected expired entry to miss")
	}
	if stats := store.Stats(); stats.Entries != 0 {
		t.Fatalf("expired entry still indexed: %+v", stats)
	}
}

func TestStoreEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	store := openTestStore(t, 20)

	for _, key := range []string{"first", "second"} {
		if err := store.Put(key, CategoryAPIResponses, Value{Data: []byte("0123456789")}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	// Touch "first" so "second" becomes the eviction candidate.
	if store.Get("first") == nil {
		t.Fatal("expected hit for first")
	}
	if err := store.Put("third", CategoryAPIResponses, Value{Data: []byte("0123456789")}); err != nil {
		t.Fatalf("put third: %v", err)
	}

	if store.Get("second") != nil {
		t.Fatal("second should have been evicted")
	}
	if store.Get("first") == nil || store.Get("third") == nil {
		t.Fatal("recently used entries were evicted")
	}
	if stats := store.Stats(); stats.TotalSize > 20 {
		t.Fatalf("total %d exceeds capacity", stats.TotalSize)
	}
}

func TestStoreCorruptBlobIsAMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, 1<<20)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Put("poisoned", CategoryAPIResponses, Value{Data: []byte("original")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	blob := filepath.Join(dir, string(CategoryAPIResponses), "po", "poisoned.blob")
	if err := os.WriteFile(blob, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper blob: %v", err)
	}

	if val := store.Get("poisoned"); val != nil {
		t.Fatal("checksum mismatch should be a miss")
	}
	if _, err := os.Stat(blob); !os.IsNotExist(err) {
		t.Fatal("corrupt blob was not removed")
	}
}

func TestStoreReopenRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, 1<<20)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Put("persisted", CategoryProcessedImages, Value{Data: []byte("image bytes"), TypeTag: "png"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	reopened, err := Open(dir, 1<<20)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	val := reopened.Get("persisted")
	if val == nil {
		t.Fatal("expected hit after reopen")
	}
	if string(val.Data) != "image bytes" || val.TypeTag != "png" {
		t.Fatalf("unexpected value after reopen %+v", val)
	}
}

func TestEvictExpiredSweepsOnlyStaleEntries(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, 1<<20, WithClock(func() time.Time { return now }))

	if err := store.PutTTL("short", CategoryTempFiles, Value{Data: []byte("a")}, time.Minute); err != nil {
		t.Fatalf("put short: %v", err)
	}
	if err := store.PutTTL("long", CategoryTempFiles, Value{Data: []byte("b")}, time.Hour); err != nil {
		t.Fatalf("put long: %v", err)
	}
	now = now.Add(10 * time.Minute)

	if removed := store.EvictExpired(); removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}
	if store.Get("long") == nil {
		t.Fatal("live entry was swept")
	}
}

func TestPutTTLRejectsInvalidArguments(t *testing.T) {
	store := openTestStore(t, 1<<20)
	if err := store.PutTTL("", CategoryAPIResponses, Value{Data: []byte("x")}, time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := store.PutTTL("k", CategoryAPIResponses, Value{Data: []byte("x")}, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
