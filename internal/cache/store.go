// Package cache is a content-addressed, TTL and size bounded store for
// expensive external-call results. Entries live on disk under one directory
// per category; an in-memory index tracks recency so capacity pressure
// evicts the least-recently-used entries first. Cache-layer failures are
// absorbed locally: a corrupt or expired entry is deleted and reported as a
// miss, never as an error to the caller.
package cache

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Category partitions the cache by artifact kind; each category carries its
// own TTL.
type Category string

const (
	CategoryAPIResponses    Category = "api_responses"
	CategoryProcessedImages Category = "processed_images"
	CategoryTempFiles       Category = "temp_files"
)

// Categories lists every known cache category.
var Categories = []Category{CategoryAPIResponses, CategoryProcessedImages, CategoryTempFiles}

// Value is a stored blob plus its type tag.
type Value struct {
	Data    []byte
	TypeTag string
}

// entryMeta is the JSON envelope persisted beside each blob.
type entryMeta struct {
	Key        string    `json:"key"`
	Category   Category  `json:"category"`
	TypeTag    string    `json:"type_tag,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds float64   `json:"ttl_seconds"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
}

func (m entryMeta) ttl() time.Duration {
	return time.Duration(m.TTLSeconds * float64(time.Second))
}

func (m entryMeta) expired(now time.Time) bool {
	return now.Sub(m.CreatedAt) > m.ttl()
}

type entry struct {
	meta entryMeta
	elem *list.Element
}

// Stats summarizes the live index.
type Stats struct {
	Entries   int
	TotalSize int64
	Capacity  int64
}

// Store is the cache. Index mutations are serialized through one mutex while
// blob reads happen unlocked; eviction removes an entry from the index before
// touching its files, so a concurrent reader either sees the whole entry or a
// miss.
type Store struct {
	root     string
	capacity int64
	ttls     map[Category]time.Duration
	now      func() time.Time
	logf     func(format string, args ...any)

	mu    sync.Mutex
	index map[string]*entry
	lru   *list.List // front = most recently used
	total int64
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithClock overrides the clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTTL overrides the TTL for one category.
func WithTTL(category Category, ttl time.Duration) Option {
	return func(s *Store) {
		s.ttls[category] = ttl
	}
}

// WithLogf routes cache diagnostics (corruption, eviction sweeps) to a
// logger. Absorbed failures are only ever visible here.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Store) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// Open builds a store rooted at dir with the given capacity in bytes and
// rebuilds the index from whatever entries survive on disk, oldest first, so
// recency ordering starts from creation times.
func Open(dir string, capacity int64, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: directory is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("cache: capacity must be > 0")
	}
	store := &Store{
		root:     dir,
		capacity: capacity,
		ttls: map[Category]time.Duration{
			CategoryAPIResponses:    24 * time.Hour,
			CategoryProcessedImages: 7 * 24 * time.Hour,
			CategoryTempFiles:       time.Hour,
		},
		now:   time.Now,
		logf:  func(string, ...any) {},
		index: map[string]*entry{},
		lru:   list.New(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// TTLFor returns the configured TTL for a category.
func (s *Store) TTLFor(category Category) time.Duration {
	if ttl, ok := s.ttls[category]; ok {
		return ttl
	}
	return s.ttls[CategoryAPIResponses]
}

// Get returns the stored value for key, or nil on a miss. Expired and
// corrupt entries are deleted and count as misses. A hit refreshes the
// entry's recency.
//
// The blob read and checksum run outside the index lock, so readers of
// distinct keys never wait on each other's disk I/O.
func (s *Store) Get(key string) *Value {
	s.mu.Lock()
	ent, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if ent.meta.expired(s.now()) {
		s.dropLocked(ent)
		s.mu.Unlock()
		return nil
	}
	meta := ent.meta
	s.mu.Unlock()

	data, err := os.ReadFile(s.blobPath(meta))
	if err != nil {
		s.logf("cache: read %s: %v (treating as miss)", key, err)
		s.dropIfCurrent(key, ent)
		return nil
	}
	if checksum(data) != meta.Checksum {
		s.logf("cache: checksum mismatch for %s (treating as miss)", key)
		s.dropIfCurrent(key, ent)
		return nil
	}

	s.mu.Lock()
	if cur, ok := s.index[key]; ok && cur == ent {
		s.lru.MoveToFront(cur.elem)
	}
	s.mu.Unlock()
	return &Value{Data: data, TypeTag: meta.TypeTag}
}

// dropIfCurrent deletes the entry unless the index moved on (the key was
// evicted or replaced while the caller held no lock).
func (s *Store) dropIfCurrent(key string, ent *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.index[key]; ok && cur == ent {
		s.dropLocked(cur)
	}
}

// Put stores a value under key using the category's configured TTL and then
// sweeps to capacity.
func (s *Store) Put(key string, category Category, value Value) error {
	return s.PutTTL(key, category, value, s.TTLFor(category))
}

// PutTTL stores a value with an explicit TTL. An existing entry under the
// same key is replaced.
func (s *Store) PutTTL(key string, category Category, value Value, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("cache: key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("cache: ttl must be > 0")
	}
	meta := entryMeta{
		Key:        key,
		Category:   category,
		TypeTag:    value.TypeTag,
		CreatedAt:  s.now(),
		TTLSeconds: ttl.Seconds(),
		SizeBytes:  int64(len(value.Data)),
		Checksum:   checksum(value.Data),
	}
	if err := s.writeEntry(meta, value.Data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.index[key]; ok {
		s.removeLocked(existing)
	}
	ent := &entry{meta: meta}
	ent.elem = s.lru.PushFront(ent)
	s.index[key] = ent
	s.total += meta.SizeBytes
	s.evictToCapacityLocked(s.capacity)
	return nil
}

// EvictExpired removes every entry whose TTL has elapsed and returns how
// many were dropped.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var stale []*entry
	for _, ent := range s.index {
		if ent.meta.expired(now) {
			stale = append(stale, ent)
		}
	}
	for _, ent := range stale {
		s.dropLocked(ent)
	}
	if len(stale) > 0 {
		s.logf("cache: TTL sweep removed %d entries", len(stale))
	}
	return len(stale)
}

// EvictToCapacity drops least-recently-used entries, regardless of remaining
// TTL, until the live total is at or under maxBytes.
func (s *Store) EvictToCapacity(maxBytes int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictToCapacityLocked(maxBytes)
}

func (s *Store) evictToCapacityLocked(maxBytes int64) int {
	evicted := 0
	for s.total > maxBytes {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		s.dropLocked(oldest.Value.(*entry))
		evicted++
	}
	if evicted > 0 {
		s.logf("cache: capacity sweep evicted %d entries (now %d bytes)", evicted, s.total)
	}
	return evicted
}

// Stats reports the current index size next to the configured capacity.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Entries: len(s.index), TotalSize: s.total, Capacity: s.capacity}
}

// dropLocked removes the entry from the index first, then unlinks its files;
// a reader racing the sweep sees a plain miss, never a half-deleted entry.
func (s *Store) dropLocked(ent *entry) {
	s.removeLocked(ent)
	if err := os.Remove(s.blobPath(ent.meta)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logf("cache: remove blob %s: %v", ent.meta.Key, err)
	}
	if err := os.Remove(s.metaPath(ent.meta)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logf("cache: remove meta %s: %v", ent.meta.Key, err)
	}
}

func (s *Store) removeLocked(ent *entry) {
	delete(s.index, ent.meta.Key)
	s.lru.Remove(ent.elem)
	s.total -= ent.meta.SizeBytes
}

func (s *Store) entryDir(meta entryMeta) string {
	prefix := meta.Key
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, string(meta.Category), prefix)
}

func (s *Store) blobPath(meta entryMeta) string {
	return filepath.Join(s.entryDir(meta), meta.Key+".blob")
}

func (s *Store) metaPath(meta entryMeta) string {
	return filepath.Join(s.entryDir(meta), meta.Key+".json")
}

func (s *Store) writeEntry(meta entryMeta, data []byte) error {
	if err := os.MkdirAll(s.entryDir(meta), 0o755); err != nil {
		return fmt.Errorf("cache: ensure entry dir: %w", err)
	}
	if err := os.WriteFile(s.blobPath(meta), data, 0o644); err != nil {
		return fmt.Errorf("cache: write blob %s: %w", meta.Key, err)
	}
	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode meta %s: %w", meta.Key, err)
	}
	if err := os.WriteFile(s.metaPath(meta), encoded, 0o644); err != nil {
		return fmt.Errorf("cache: write meta %s: %w", meta.Key, err)
	}
	return nil
}

// load rebuilds the index from disk. Unreadable envelopes are skipped: the
// next Put under the same key overwrites them.
func (s *Store) load() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("cache: ensure cache root: %w", err)
	}
	var metas []entryMeta
	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			s.logf("cache: skip unreadable envelope %s: %v", path, readErr)
			return nil
		}
		var meta entryMeta
		if decodeErr := json.Unmarshal(data, &meta); decodeErr != nil || meta.Key == "" {
			s.logf("cache: skip malformed envelope %s", path)
			return nil
		}
		metas = append(metas, meta)
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("cache: scan %s: %w", s.root, walkErr)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	for _, meta := range metas {
		if _, dup := s.index[meta.Key]; dup {
			continue
		}
		ent := &entry{meta: meta}
		ent.elem = s.lru.PushFront(ent)
		s.index[meta.Key] = ent
		s.total += meta.SizeBytes
	}
	return nil
}
