// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists validation results in BadgerDB.
//
// Entries are keyed by absolute path and carry the SHA-256 of the content
// they were computed for. A lookup misses when the content changed, the
// entry outlived its TTL, or the strictness differs. Least recently used
// entries are evicted once MaxEntries is reached.
//
// Store implements lint.ResultCache.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
)

const (
	keyPrefix = "result:"

	// gcDiscardRatio is the minimum garbage ratio before a value log is
	// rewritten.
	gcDiscardRatio = 0.5
)

var (
	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("cache closed")

	// ErrNilResult is returned by Put for a nil result.
	ErrNilResult = errors.New("nil result")
)

// Options configures a Store.
type Options struct {
	// Dir holds the database. Ignored when InMemory.
	Dir string

	InMemory bool

	// SyncWrites fsyncs every write to disk.
	SyncWrites bool

	// TTL is the lifetime of an entry. Zero keeps entries until evicted.
	TTL time.Duration

	// MaxEntries bounds the store. Zero is unbounded.
	MaxEntries int

	// MaxFileSize skips caching results for larger files. Zero disables
	// the limit.
	MaxFileSize int64

	// GCInterval runs value log GC periodically for on-disk stores.
	GCInterval time.Duration

	Logger *logging.Logger
}

// DefaultDir returns the per-user cache directory for results.
func DefaultDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache dir: %w", err)
	}
	return filepath.Join(dir, "synx", "results"), nil
}

// OptionsFromConfig converts the cache section of the configuration.
func OptionsFromConfig(c config.CacheConfig) (Options, error) {
	opts := Options{
		Dir:         logging.ExpandPath(c.Dir),
		TTL:         time.Duration(c.TTLSeconds) * time.Second,
		MaxEntries:  c.MaxEntries,
		MaxFileSize: int64(c.MaxFileSizeMB) * 1024 * 1024,
		SyncWrites:  c.SyncWrites,
		GCInterval:  5 * time.Minute,
	}
	if opts.Dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return opts, err
		}
		opts.Dir = dir
	}
	return opts, nil
}

// Entry is the stored record for one file.
type Entry struct {
	Hash   string           `json:"hash"`
	Valid  bool             `json:"valid"`
	Status datatypes.Status `json:"status"`
	Strict bool             `json:"strict"`

	// ConfigHash is the configuration fingerprint of the stored result.
	ConfigHash string `json:"config_hash"`

	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`

	FileSize     int64         `json:"file_size"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
	LastAccessed time.Time     `json:"last_accessed"`
	AccessCount  uint64        `json:"access_count"`

	Result *datatypes.Result `json:"result"`
}

// Stats summarises cache effectiveness.
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Expired   uint64 `json:"expired"`

	HitRatio float64 `json:"hit_ratio"`

	// AvgValidationMS is the mean validation time of stored entries.
	AvgValidationMS float64 `json:"avg_validation_ms"`

	SizeBytes int64  `json:"size_bytes"`
	Dir       string `json:"dir,omitempty"`
	InMemory  bool   `json:"in_memory"`
}

// OptimizeReport is what Optimize removed.
type OptimizeReport struct {
	Expired   int `json:"expired"`
	Evicted   int `json:"evicted"`
	Remaining int `json:"remaining"`
}

// Store is the BadgerDB-backed result cache.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	opts   Options
	logger *logging.Logger
	now    func() time.Time

	// mu serialises writers that count entries before writing.
	mu sync.Mutex

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	expired   atomic.Uint64
	closed    atomic.Bool
}

// Open opens or creates a Store.
//
// Description:
//
//	Opens BadgerDB in opts.Dir (or in memory) and starts value log GC for
//	on-disk stores when GCInterval is set.
//
// Inputs:
//
//	opts - Store options. Dir is required unless InMemory.
//
// Outputs:
//
//	*Store - Caller must Close
//	error - Non-nil if the database cannot be opened
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	db, err := openDB(dbConfig{
		Path:       opts.Dir,
		InMemory:   opts.InMemory,
		SyncWrites: opts.SyncWrites && !opts.InMemory,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, opts: opts, logger: logger, now: time.Now}

	if opts.GCInterval > 0 && !opts.InMemory {
		gc, err := newGCRunner(db, opts.GCInterval, gcDiscardRatio, logger.Slog())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = gc
		gc.start()
	}

	logger.Debug("cache opened", "dir", opts.Dir, "in_memory", opts.InMemory,
		"ttl", opts.TTL, "max_entries", opts.MaxEntries)
	return s, nil
}

// OpenInMemory opens a Store that lives only as long as the process.
func OpenInMemory(opts Options) (*Store, error) {
	opts.InMemory = true
	opts.Dir = ""
	return Open(opts)
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

func key(path string) []byte {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return []byte(keyPrefix + filepath.Clean(path))
}

func (s *Store) isExpired(e Entry, now time.Time) bool {
	return s.opts.TTL > 0 && now.Sub(e.CreatedAt) > s.opts.TTL
}

// Get returns the cached result for path when it is still usable.
//
// Description:
//
//	Misses when there is no entry, the entry expired, hash differs from
//	the stored content hash, or strict or the configuration fingerprint
//	differ. Expired and stale entries are deleted; a strict or
//	configuration mismatch keeps the entry until the next Put. A hit bumps the entry's access count for LRU eviction.
//
// Inputs:
//
//	path - File path; relative paths are resolved against the cwd
//	hash - SHA-256 hex of the current content
//	configHash - Fingerprint of the configuration in effect
//	strict - Strictness of the pending validation
//
// Outputs:
//
//	*datatypes.Result - A copy the caller may modify
//	bool - True on a hit
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Get(path, hash, configHash string, strict bool) (*datatypes.Result, bool) {
	if s.closed.Load() {
		return nil, false
	}
	k := key(path)

	e, found, err := s.read(k)
	if err != nil {
		s.logger.Warn("cache read failed", "file", path, "error", err)
		s.delete(k)
		s.misses.Add(1)
		return nil, false
	}
	if !found {
		s.misses.Add(1)
		return nil, false
	}

	now := s.now()
	switch {
	case s.isExpired(e, now):
		s.delete(k)
		s.expired.Add(1)
		s.misses.Add(1)
		return nil, false
	case e.Hash != hash || e.Result == nil:
		s.delete(k)
		s.misses.Add(1)
		return nil, false
	case e.Strict != strict || e.ConfigHash != configHash:
		s.misses.Add(1)
		return nil, false
	}

	e.AccessCount++
	e.LastAccessed = now
	if err := s.write(k, e); err != nil {
		s.logger.Debug("cache access update failed", "file", path, "error", err)
	}
	s.hits.Add(1)

	out := *e.Result
	return &out, true
}

// Put stores res for path.
//
// Description:
//
//	Skips files above MaxFileSize. When the store is full, evicts least
//	recently used entries down to 90% of MaxEntries first.
//
// Inputs:
//
//	path - File path
//	res - Result to store; ContentHash must be set
//	size - File size in bytes
//
// Outputs:
//
//	error - Non-nil on nil result, closed store or write failure
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Put(path string, res *datatypes.Result, size int64) error {
	if res == nil {
		return ErrNilResult
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if s.opts.MaxFileSize > 0 && size > s.opts.MaxFileSize {
		return nil
	}

	now := s.now()
	stored := *res
	stored.Cached = false
	e := Entry{
		Hash:         res.ContentHash,
		Valid:        res.Valid(),
		Status:       res.Status,
		Strict:       res.Strict,
		ConfigHash:   res.ConfigHash,
		Errors:       len(res.Errors),
		Warnings:     len(res.Warnings),
		Infos:        len(res.Infos),
		FileSize:     size,
		Duration:     res.Duration,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  1,
		Result:       &stored,
	}
	k := key(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.MaxEntries > 0 {
		_, exists, _ := s.read(k)
		if !exists {
			n, err := s.Len()
			if err != nil {
				return err
			}
			if n >= s.opts.MaxEntries {
				if _, err := s.evictLRU(s.opts.MaxEntries * 9 / 10); err != nil {
					return err
				}
			}
		}
	}
	return s.write(k, e)
}

// Invalidate removes the entry for path.
func (s *Store) Invalidate(path string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(path))
	})
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", path, err)
	}
	return nil
}

// Clear removes every entry and resets the counters.
func (s *Store) Clear() error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.hits.Store(0)
	s.misses.Store(0)
	s.evictions.Store(0)
	s.expired.Store(0)
	return nil
}

// Len counts stored entries.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Stats returns counters and a snapshot of the stored entries.
func (s *Store) Stats() Stats {
	st := Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Expired:   s.expired.Load(),
		Dir:       s.opts.Dir,
		InMemory:  s.opts.InMemory,
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRatio = float64(st.Hits) / float64(total)
	}
	if s.closed.Load() {
		return st
	}

	records, err := s.scan()
	if err != nil {
		s.logger.Warn("cache stats scan failed", "error", err)
		return st
	}
	var total time.Duration
	for _, r := range records {
		if r.corrupt {
			continue
		}
		st.Entries++
		total += r.entry.Duration
	}
	if st.Entries > 0 {
		st.AvgValidationMS = float64(total.Milliseconds()) / float64(st.Entries)
	}
	lsm, vlog := s.db.Size()
	st.SizeBytes = lsm + vlog
	return st
}

// Optimize drops expired and unreadable entries, then evicts least
// recently used entries beyond MaxEntries.
func (s *Store) Optimize() (OptimizeReport, error) {
	var rep OptimizeReport
	if s.closed.Load() {
		return rep, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.scan()
	if err != nil {
		return rep, err
	}
	now := s.now()
	var drop [][]byte
	for _, r := range records {
		if r.corrupt || s.isExpired(r.entry, now) {
			drop = append(drop, r.key)
		}
	}
	if err := s.deleteKeys(drop); err != nil {
		return rep, err
	}
	rep.Expired = len(drop)
	s.expired.Add(uint64(len(drop)))

	if s.opts.MaxEntries > 0 {
		if rep.Evicted, err = s.evictLRU(s.opts.MaxEntries); err != nil {
			return rep, err
		}
	}
	rep.Remaining, err = s.Len()
	s.logger.Debug("cache optimized", "expired", rep.Expired, "evicted", rep.Evicted, "remaining", rep.Remaining)
	return rep, err
}

// =============================================================================
// INTERNALS
// =============================================================================

type record struct {
	key     []byte
	entry   Entry
	corrupt bool
}

func (s *Store) read(k []byte) (Entry, bool, error) {
	var e Entry
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, found, err
}

func (s *Store) write(k []byte, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(k, data))
	}); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (s *Store) delete(k []byte) {
	if err := s.db.Update(func(txn *badger.Txn) error { return txn.Delete(k) }); err != nil {
		s.logger.Debug("cache delete failed", "key", string(k), "error", err)
	}
}

func (s *Store) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
	}
	return wb.Flush()
}

func (s *Store) scan() ([]record, error) {
	var out []record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			r := record{key: item.KeyCopy(nil)}
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &r.entry)
			})
			r.corrupt = err != nil
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// evictLRU deletes the least recently used entries until at most target
// remain. Callers hold s.mu.
func (s *Store) evictLRU(target int) (int, error) {
	records, err := s.scan()
	if err != nil {
		return 0, err
	}
	excess := len(records) - target
	if excess <= 0 {
		return 0, nil
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].entry, records[j].entry
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.Before(b.LastAccessed)
		}
		return a.AccessCount < b.AccessCount
	})
	keys := make([][]byte, 0, excess)
	for _, r := range records[:excess] {
		keys = append(keys, r.key)
	}
	if err := s.deleteKeys(keys); err != nil {
		return 0, err
	}
	s.evictions.Add(uint64(excess))
	return excess, nil
}
