// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package daemon

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
)

// stubValidator marks files containing "bad" as invalid and counts calls.
type stubValidator struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
}

func newStubValidator() *stubValidator {
	return &stubValidator{calls: make(map[string]int)}
}

func (s *stubValidator) Validate(ctx context.Context, path string) (*datatypes.Result, error) {
	s.mu.Lock()
	s.calls[path]++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res := &datatypes.Result{
		Path:      path,
		Language:  "json",
		FileType:  "JSON",
		Status:    datatypes.StatusValid,
		Duration:  time.Millisecond,
		CheckedAt: time.Now(),
	}
	if bytes.Contains(content, []byte("bad")) {
		res.Status = datatypes.StatusInvalid
		res.AddIssues(datatypes.Issue{File: path, Line: 1, Severity: datatypes.SeverityError, Message: "bad content"})
	}
	return res, nil
}

func (s *stubValidator) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// stubCache records invalidations.
type stubCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *stubCache) Invalidate(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, path)
	return nil
}

func (c *stubCache) has(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.invalidated {
		if p == path {
			return true
		}
	}
	return false
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func testConfig(dir string) config.DaemonConfig {
	cfg := config.DefaultDaemonConfig()
	cfg.WatchPaths = []string{dir}
	cfg.DebounceMS = 30
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.HealthCheckInterval = 60
	return cfg
}

// runDaemon starts d and returns a stop function that cancels it and
// returns Run's error.
func runDaemon(t *testing.T, d *Daemon) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	select {
	case <-d.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon did not become ready")
	}

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-errCh:
			case <-time.After(10 * time.Second):
				t.Error("daemon did not stop")
			}
		})
		return runErr
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.DaemonConfig{WatchPaths: []string{"."}}, nil)
	assert.ErrorIs(t, err, ErrNilValidator)

	_, err = New(config.DaemonConfig{}, newStubValidator())
	assert.ErrorIs(t, err, ErrNoWatchPaths)
}

func TestNew_ResolvesRoots(t *testing.T) {
	dir := t.TempDir()
	d, err := New(config.DaemonConfig{WatchPaths: []string{dir}}, newStubValidator(), WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, d.Roots())
	assert.Equal(t, 30*time.Second, d.timeout)
	assert.Equal(t, time.Minute, d.health)
}

func TestDaemon_ValidatesChangedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	v := newStubValidator()
	cache := &stubCache{}
	cfg := testConfig(dir)
	cfg.PIDFile = filepath.Join(dir, "run", "synx.pid")

	d, err := New(cfg, v, WithLogger(quietLogger()), WithCache(cache))
	require.NoError(t, err)
	stop := runDaemon(t, d)

	pid, err := ReadPID(cfg.PIDFile)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`bad`), 0o644))

	require.Eventually(t, func() bool {
		_, g := d.Result(good)
		_, b := d.Result(bad)
		return g && b
	}, 5*time.Second, 20*time.Millisecond)

	failing := d.Results(true)
	require.Len(t, failing, 1)
	assert.Equal(t, bad, failing[0].Path)
	assert.Len(t, d.Results(false), 2)

	st := d.Stats()
	assert.GreaterOrEqual(t, st.Validations, uint64(2))
	assert.GreaterOrEqual(t, st.Passed, uint64(1))
	assert.GreaterOrEqual(t, st.Failed, uint64(1))
	assert.Equal(t, 2, st.TrackedFiles)

	require.NoError(t, os.Remove(bad))
	require.Eventually(t, func() bool {
		_, ok := d.Result(bad)
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, cache.has(bad))

	require.NoError(t, stop())
	_, err = os.Stat(cfg.PIDFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDaemon_FiltersExcludedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	v := newStubValidator()
	cfg := testConfig(dir)
	cfg.ListenAddr = ""
	cfg.ExcludePatterns = []string{"*.tmp", "gen/**"}
	cfg.IncludePatterns = []string{"gen/keep.json"}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "gen"), 0o755))

	d, err := New(cfg, v, WithLogger(quietLogger()))
	require.NoError(t, err)
	stop := runDaemon(t, d)
	assert.Empty(t, d.Addr())

	tmp := filepath.Join(dir, "scratch.tmp")
	generated := filepath.Join(dir, "gen", "out.json")
	kept := filepath.Join(dir, "gen", "keep.json")
	require.NoError(t, os.WriteFile(tmp, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(generated, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(kept, []byte("{}"), 0o644))

	require.Eventually(t, func() bool { return v.count(kept) == 1 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return d.Stats().EventsFiltered >= 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, v.count(tmp))
	assert.Zero(t, v.count(generated))

	require.NoError(t, stop())
}

func TestDaemon_DebouncesRapidChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	v := newStubValidator()
	cfg := testConfig(dir)
	cfg.ListenAddr = ""
	cfg.DebounceMS = 300

	d, err := New(cfg, v, WithLogger(quietLogger()))
	require.NoError(t, err)
	stop := runDaemon(t, d)

	path := filepath.Join(dir, "busy.json")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return v.count(path) == 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, v.count(path))

	require.NoError(t, stop())
}

func TestDaemon_EventStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	d, err := New(testConfig(dir), newStubValidator(), WithLogger(quietLogger()))
	require.NoError(t, err)
	stop := runDaemon(t, d)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+d.Addr()+"/v1/events", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Eventually(t, func() bool { return d.Stats().Subscribers == 1 }, 5*time.Second, 10*time.Millisecond)

	path := filepath.Join(dir, "streamed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventValidated, ev.Type)
	assert.Equal(t, path, ev.Path)
	assert.NotEmpty(t, ev.ID)
	require.NotNil(t, ev.Result)
	assert.Equal(t, datatypes.StatusValid, ev.Result.Status)

	require.NoError(t, stop())

	// The daemon closes subscribers on shutdown.
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	conn.Close()
}

func TestDaemon_RunTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.ListenAddr = ""
	d, err := New(cfg, newStubValidator(), WithLogger(quietLogger()))
	require.NoError(t, err)
	stop := runDaemon(t, d)

	assert.ErrorIs(t, d.Run(context.Background()), ErrRunning)
	require.NoError(t, stop())
}

func TestDaemon_HealthCheckPrunesDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	d, err := New(testConfig(dir), newStubValidator(), WithLogger(quietLogger()))
	require.NoError(t, err)

	path := filepath.Join(dir, "gone.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	_, err = d.Validate(context.Background(), path)
	require.NoError(t, err)

	d.mu.Lock()
	d.lastSeen["/old/file.json"] = time.Now().Add(-2 * d.health)
	d.mu.Unlock()

	require.NoError(t, os.Remove(path))
	d.healthCheck()

	_, ok := d.Result(path)
	assert.False(t, ok)
	d.mu.Lock()
	assert.NotContains(t, d.lastSeen, "/old/file.json")
	d.mu.Unlock()
}

func TestDaemon_ConcurrencyLimit(t *testing.T) {
	dir := t.TempDir()
	v := newStubValidator()
	v.delay = 50 * time.Millisecond
	cfg := testConfig(dir)
	cfg.MaxConcurrentValidations = 2

	d, err := New(cfg, v, WithLogger(quietLogger()))
	require.NoError(t, err)

	var paths []string
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, string(rune('a'+i))+".json")
		require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o644))
		paths = append(paths, p)
	}

	var maxSeen int64
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				n := d.stats.inflight.Load()
				mu.Lock()
				if n > maxSeen {
					maxSeen = n
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := d.Validate(context.Background(), p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()
	close(done)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxSeen, int64(2))
	assert.Equal(t, uint64(6), d.Stats().Validations)
}

func TestDaemon_RateLimit(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxValidationsPerSecond = 20

	d, err := New(cfg, newStubValidator(), WithLogger(quietLogger()))
	require.NoError(t, err)

	path := filepath.Join(dir, "r.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	// Burst is 20, so 30 validations need at least ~0.5s.
	start := time.Now()
	for i := 0; i < 30; i++ {
		_, err := d.Validate(context.Background(), path)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

// blockingHistory holds every Record call until release is closed.
type blockingHistory struct {
	entered chan string
	release chan struct{}
}

func (h *blockingHistory) Record(ctx context.Context, res *datatypes.Result) error {
	h.entered <- res.Path
	select {
	case <-h.release:
	case <-ctx.Done():
	}
	return nil
}

func (h *blockingHistory) Close() {}

func TestDaemon_HistoryDoesNotHoldSlot(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxConcurrentValidations = 1

	hist := &blockingHistory{entered: make(chan string, 2), release: make(chan struct{})}
	d, err := New(cfg, newStubValidator(), WithLogger(quietLogger()), WithHistory(hist))
	require.NoError(t, err)

	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	require.NoError(t, os.WriteFile(first, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(`{}`), 0o644))

	firstDone := make(chan error, 1)
	go func() {
		_, err := d.Validate(context.Background(), first)
		firstDone <- err
	}()
	select {
	case p := <-hist.entered:
		require.Equal(t, first, p)
	case <-time.After(5 * time.Second):
		t.Fatal("first validation never reached history")
	}

	// The only slot must be free while the first write is stuck.
	secondDone := make(chan error, 1)
	go func() {
		_, err := d.Validate(context.Background(), second)
		secondDone <- err
	}()
	select {
	case p := <-hist.entered:
		assert.Equal(t, second, p)
	case <-time.After(5 * time.Second):
		t.Fatal("second validation blocked behind history write")
	}

	close(hist.release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	assert.Equal(t, uint64(2), d.Stats().Validations)
}
