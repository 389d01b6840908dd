// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/lint"
)

var _ lint.ResultCache = (*Store)(nil)

// clock is a controllable time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, opts Options) (*Store, *clock) {
	t.Helper()
	s, err := OpenInMemory(opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s.now = c.now
	return s, c
}

func result(path, hash string, status datatypes.Status, strict bool) *datatypes.Result {
	res := &datatypes.Result{
		Path:        path,
		Language:    "python",
		Status:      status,
		Strict:      strict,
		ContentHash: hash,
		Duration:    40 * time.Millisecond,
	}
	if status == datatypes.StatusInvalid {
		res.AddIssues(datatypes.Issue{File: path, Line: 3, Rule: "PY103", Severity: datatypes.SeverityError, Message: "bare except"})
	}
	return res
}

func TestStore_GetPut(t *testing.T) {
	s, _ := newTestStore(t, Options{TTL: time.Hour})

	_, ok := s.Get("/src/a.py", "h1", "", false)
	assert.False(t, ok)

	require.NoError(t, s.Put("/src/a.py", result("/src/a.py", "h1", datatypes.StatusInvalid, false), 120))

	got, ok := s.Get("/src/a.py", "h1", "", false)
	require.True(t, ok)
	assert.Equal(t, datatypes.StatusInvalid, got.Status)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "PY103", got.Errors[0].Rule)
	assert.False(t, got.Cached)

	got.Status = datatypes.StatusValid
	again, ok := s.Get("/src/a.py", "h1", "", false)
	require.True(t, ok)
	assert.Equal(t, datatypes.StatusInvalid, again.Status)

	st := s.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.InDelta(t, 2.0/3.0, st.HitRatio, 1e-9)
	assert.InDelta(t, 40.0, st.AvgValidationMS, 1e-9)
	assert.True(t, st.InMemory)
}

func TestStore_Misses(t *testing.T) {
	tests := []struct {
		name        string
		hash        string
		configHash  string
		strict      bool
		advance     time.Duration
		wantDeleted bool
		wantExpired uint64
	}{
		{name: "content changed", hash: "other", wantDeleted: true},
		{name: "strictness differs", hash: "h1", strict: true},
		{name: "configuration differs", hash: "h1", configHash: "other-config"},
		{name: "expired", hash: "h1", advance: 2 * time.Hour, wantDeleted: true, wantExpired: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newTestStore(t, Options{TTL: time.Hour})
			require.NoError(t, s.Put("/src/a.py", result("/src/a.py", "h1", datatypes.StatusValid, false), 10))

			c.advance(tt.advance)
			_, ok := s.Get("/src/a.py", tt.hash, tt.configHash, tt.strict)
			assert.False(t, ok)

			n, err := s.Len()
			require.NoError(t, err)
			if tt.wantDeleted {
				assert.Zero(t, n)
			} else {
				assert.Equal(t, 1, n)
			}
			assert.Equal(t, tt.wantExpired, s.Stats().Expired)
		})
	}
}

func TestStore_RelativeAndAbsoluteShareKey(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	abs, err := filepath.Abs("x.py")
	require.NoError(t, err)

	require.NoError(t, s.Put("x.py", result(abs, "h", datatypes.StatusValid, false), 1))
	_, ok := s.Get(abs, "h", "", false)
	assert.True(t, ok)
}

func TestStore_MaxFileSize(t *testing.T) {
	s, _ := newTestStore(t, Options{MaxFileSize: 100})
	require.NoError(t, s.Put("/big.py", result("/big.py", "h", datatypes.StatusValid, false), 101))
	n, err := s.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_LRUEviction(t *testing.T) {
	s, c := newTestStore(t, Options{MaxEntries: 10})

	for i := 0; i < 10; i++ {
		p := filepath.Join("/src", string(rune('a'+i))+".py")
		require.NoError(t, s.Put(p, result(p, "h", datatypes.StatusValid, false), 1))
		c.advance(time.Second)
	}

	// Touch a.py so b.py becomes the least recently used.
	_, ok := s.Get("/src/a.py", "h", "", false)
	require.True(t, ok)
	c.advance(time.Second)

	require.NoError(t, s.Put("/src/new.py", result("/src/new.py", "h", datatypes.StatusValid, false), 1))

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, uint64(1), s.Stats().Evictions)

	_, ok = s.Get("/src/b.py", "h", "", false)
	assert.False(t, ok)
	_, ok = s.Get("/src/a.py", "h", "", false)
	assert.True(t, ok)
	_, ok = s.Get("/src/new.py", "h", "", false)
	assert.True(t, ok)
}

func TestStore_OverwriteDoesNotEvict(t *testing.T) {
	s, _ := newTestStore(t, Options{MaxEntries: 1})
	require.NoError(t, s.Put("/a.py", result("/a.py", "h1", datatypes.StatusValid, false), 1))
	require.NoError(t, s.Put("/a.py", result("/a.py", "h2", datatypes.StatusInvalid, false), 1))

	got, ok := s.Get("/a.py", "h2", "", false)
	require.True(t, ok)
	assert.Equal(t, datatypes.StatusInvalid, got.Status)
	assert.Zero(t, s.Stats().Evictions)
}

func TestStore_InvalidateAndClear(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	require.NoError(t, s.Put("/a.py", result("/a.py", "h", datatypes.StatusValid, false), 1))
	require.NoError(t, s.Put("/b.py", result("/b.py", "h", datatypes.StatusValid, false), 1))

	require.NoError(t, s.Invalidate("/a.py"))
	_, ok := s.Get("/a.py", "h", "", false)
	assert.False(t, ok)
	_, ok = s.Get("/b.py", "h", "", false)
	assert.True(t, ok)

	require.NoError(t, s.Clear())
	n, err := s.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
	st := s.Stats()
	assert.Zero(t, st.Hits)
	assert.Zero(t, st.Misses)
}

func TestStore_Optimize(t *testing.T) {
	s, c := newTestStore(t, Options{TTL: time.Hour})
	require.NoError(t, s.Put("/old.py", result("/old.py", "h", datatypes.StatusValid, false), 1))
	c.advance(50 * time.Minute)
	require.NoError(t, s.Put("/new.py", result("/new.py", "h", datatypes.StatusValid, false), 1))
	c.advance(20 * time.Minute)

	rep, err := s.Optimize()
	require.NoError(t, err)
	assert.Equal(t, OptimizeReport{Expired: 1, Evicted: 0, Remaining: 1}, rep)

	_, ok := s.Get("/new.py", "h", "", false)
	assert.True(t, ok)
}

func TestStore_OptimizeEvictsBeyondMax(t *testing.T) {
	s, c := newTestStore(t, Options{})
	for _, p := range []string{"/a.py", "/b.py", "/c.py"} {
		require.NoError(t, s.Put(p, result(p, "h", datatypes.StatusValid, false), 1))
		c.advance(time.Second)
	}
	s.opts.MaxEntries = 2

	rep, err := s.Optimize()
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Evicted)
	assert.Equal(t, 2, rep.Remaining)

	_, ok := s.Get("/a.py", "h", "", false)
	assert.False(t, ok)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put("/a.py", result("/a.py", "h", datatypes.StatusValid, true), 1))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s2, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer s2.Close()
	got, ok := s2.Get("/a.py", "h", "", true)
	require.True(t, ok)
	assert.True(t, got.Strict)
	assert.Equal(t, dir, s2.Stats().Dir)
}

func TestStore_Closed(t *testing.T) {
	s, err := OpenInMemory(Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, ok := s.Get("/a.py", "h", "", false)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Put("/a.py", result("/a.py", "h", datatypes.StatusValid, false), 1), ErrClosed)
	assert.ErrorIs(t, s.Clear(), ErrClosed)
	assert.ErrorIs(t, s.Invalidate("/a.py"), ErrClosed)
}

func TestStore_PutNil(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	assert.ErrorIs(t, s.Put("/a.py", nil, 1), ErrNilResult)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.CacheConfig{
		Dir:           "/var/cache/synx",
		TTLSeconds:    60,
		MaxEntries:    5,
		MaxFileSizeMB: 2,
		SyncWrites:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/synx", opts.Dir)
	assert.Equal(t, time.Minute, opts.TTL)
	assert.Equal(t, 5, opts.MaxEntries)
	assert.Equal(t, int64(2*1024*1024), opts.MaxFileSize)
	assert.True(t, opts.SyncWrites)
}

func TestOpen_SyncWrites(t *testing.T) {
	s, err := Open(Options{Dir: t.TempDir(), SyncWrites: true})
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.db.Opts().SyncWrites)

	mem, err := OpenInMemory(Options{SyncWrites: true})
	require.NoError(t, err)
	defer mem.Close()
	assert.False(t, mem.db.Opts().SyncWrites)
}

func TestStore_WithRunner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1}`), 0o644))

	s, _ := newTestStore(t, Options{})
	runner := lint.NewRunner(config.DefaultConfig(), lint.WithCache(s))

	first, err := runner.Validate(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusValid, first.Status)
	assert.False(t, first.Cached)

	second, err := runner.Validate(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ContentHash, second.ContentHash)

	require.NoError(t, os.WriteFile(path, []byte(`{"a": }`), 0o644))
	third, err := runner.Validate(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, datatypes.StatusInvalid, third.Status)
}
