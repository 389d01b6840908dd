// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports file changes in debounced batches.
//
// Directories are watched recursively. Individual files are watched through
// their parent directory so editors that save by rename keep working.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/scan"
)

// ErrNoPaths is returned by New when there is nothing to watch.
var ErrNoPaths = errors.New("no paths to watch")

// Op is the kind of change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one file system change.
type Change struct {
	// Path is absolute.
	Path string
	Op   Op
	Time time.Time
}

// Handler receives de-duplicated batches. It is called from a single
// goroutine, so batches never overlap.
type Handler func(changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits for quiet before flushing.
	// Default: 100ms.
	Debounce time.Duration

	// Ignore holds glob patterns matched against the path relative to the
	// watched root and against the base name.
	Ignore []string

	// BufferSize bounds pending changes. Default: 1000.
	BufferSize int

	Logger *logging.Logger
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:   100 * time.Millisecond,
		Ignore:     []string{"*.swp", "*.tmp", "*~", "4913"},
		BufferSize: 1000,
	}
}

// root is one watched directory together with the files of interest in it.
// A nil files set means every file below the directory.
type root struct {
	dir   string
	files map[string]bool
}

// Watcher batches file changes under a set of paths.
//
// Thread Safety: Safe for concurrent use. The handler runs on one goroutine.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []root
	handler  Handler
	debounce time.Duration
	ignore   *scan.Matcher
	logger   *logging.Logger

	changes  chan Change
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// New creates a watcher for files and directories.
//
// Description:
//
//	Paths are resolved to absolute paths. Directories are watched
//	recursively, skipping hidden and dependency directories. A file is
//	watched through its parent directory and only its own changes are
//	reported.
//
// Inputs:
//
//	paths - Files or directories; each must exist
//	handler - Called with batched changes
//	opts - Options; zero values take defaults
//
// Outputs:
//
//	*Watcher - Call Start, then Stop when done
//	error - ErrNoPaths, a stat error, or an fsnotify error
func New(paths []string, handler Handler, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	def := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.Ignore == nil {
		opts.Ignore = def.Ignore
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	byDir := make(map[string]*root)
	var order []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
		dir, file := abs, ""
		if !info.IsDir() {
			dir, file = filepath.Dir(abs), abs
		}
		r, ok := byDir[dir]
		if !ok {
			r = &root{dir: dir, files: map[string]bool{}}
			byDir[dir] = r
			order = append(order, dir)
		}
		switch {
		case file == "":
			r.files = nil
		case r.files != nil:
			r.files[file] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		handler:  handler,
		debounce: opts.Debounce,
		ignore:   scan.NewMatcher(opts.Ignore),
		logger:   opts.Logger,
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
	}
	for _, d := range order {
		w.roots = append(w.roots, *byDir[d])
	}
	return w, nil
}

// Start registers the watches and begins delivering batches.
//
// Description:
//
//	Spawns an event processor and a debouncer. Both exit on Stop or when
//	ctx is cancelled; cancellation also releases the fsnotify watcher.
//	Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	for _, r := range w.roots {
		var err error
		if r.files == nil {
			err = w.addRecursive(r.dir)
		} else {
			err = w.fsw.Add(r.dir)
		}
		if err != nil {
			w.Stop()
			return fmt.Errorf("watching %s: %w", r.dir, err)
		}
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()

	w.logger.Debug("watching", "roots", len(w.roots), "debounce", w.debounce)
	return nil
}

// Stop halts watching, flushes the pending batch and waits for the
// goroutines to exit. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// WatchList returns the directories registered with fsnotify.
func (w *Watcher) WatchList() []string {
	return w.fsw.WatchList()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) skipDir(path string) bool {
	if scan.SkipDir(filepath.Base(path)) {
		return true
	}
	return w.ignored(path)
}

// rootFor returns the root covering path and whether the path is of
// interest.
func (w *Watcher) rootFor(path string) (root, bool) {
	for _, r := range w.roots {
		if r.files != nil {
			if r.files[path] {
				return r, true
			}
			continue
		}
		rel, err := filepath.Rel(r.dir, path)
		if err == nil && rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel) {
			return r, true
		}
	}
	return root{}, false
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

func (w *Watcher) ignored(path string) bool {
	r, ok := w.rootFor(path)
	if !ok {
		return w.ignore.Match(filepath.Base(path))
	}
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return w.ignore.Match(rel)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path := filepath.Clean(event.Name)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if r, ok := w.rootFor(path); ok && r.files == nil && !w.skipDir(path) {
				if err := w.addRecursive(path); err != nil {
					w.logger.Debug("watch add failed", "dir", path, "error", err)
				}
			}
			return
		}
	}

	if _, ok := w.rootFor(path); !ok || w.ignored(path) || w.inSkippedDir(path) {
		return
	}

	change := Change{Path: path, Op: convertOp(event.Op), Time: time.Now()}
	select {
	case w.changes <- change:
	default:
		w.logger.Warn("watch buffer full, dropping change", "file", path)
	}
}

// inSkippedDir reports whether any directory between the root and path is
// always skipped.
func (w *Watcher) inSkippedDir(path string) bool {
	r, ok := w.rootFor(path)
	if !ok || r.files != nil {
		return false
	}
	for dir := filepath.Dir(path); dir != r.dir && len(dir) > len(r.dir); dir = filepath.Dir(dir) {
		if scan.SkipDir(filepath.Base(dir)) {
			return true
		}
	}
	return false
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(Dedupe(batch))
		}
		batch = nil
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// Dedupe keeps the latest change per path, in first-seen order.
func Dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
