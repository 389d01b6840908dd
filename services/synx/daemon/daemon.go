// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package daemon runs synx as a long-lived service.
//
// The daemon watches a set of paths, validates files as they change and
// serves the latest results over HTTP.
//
// # Pipeline
//
//	fsnotify event -> filter (exclude/include) -> per-path debounce
//	    -> rate limiter -> semaphore (max concurrent) -> Validator
//	    -> results, stats, Prometheus metrics, event stream, history
//
// A path that keeps changing is validated once, debounce_ms after its last
// change. Removing a file drops its result and its cache entry.
//
// # HTTP API
//
//	GET  /health       liveness and uptime
//	GET  /v1/stats     counters (Stats)
//	GET  /v1/results   latest result per path; ?failing=true filters
//	GET  /v1/result    ?path=... one result
//	POST /v1/validate  {"path": "..."} validates now and returns the result
//	GET  /v1/events    websocket stream of Event
//	GET  /metrics      Prometheus exposition
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/watch"
)

var (
	// ErrNoWatchPaths is returned by New when the config has no watch paths.
	ErrNoWatchPaths = errors.New("daemon: no watch paths configured")

	// ErrNilValidator is returned by New without a validator.
	ErrNilValidator = errors.New("daemon: validator is required")

	// ErrRunning is returned when Run is called on a running daemon.
	ErrRunning = errors.New("daemon: already running")
)

const (
	// batchWindow coalesces raw fsnotify bursts before per-path debounce.
	batchWindow     = 50 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

// Validator validates a single file. *lint.Runner implements it.
type Validator interface {
	Validate(ctx context.Context, path string) (*datatypes.Result, error)
}

// Invalidator drops cached results. *cache.Store implements it.
type Invalidator interface {
	Invalidate(path string) error
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// WithCache lets the daemon invalidate entries for removed files.
func WithCache(c Invalidator) Option {
	return func(d *Daemon) { d.cache = c }
}

// WithHistory records every validation.
func WithHistory(h History) Option {
	return func(d *Daemon) { d.history = h }
}

// WithRegistry registers the daemon's Prometheus collectors on reg.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(d *Daemon) { d.registry = reg }
}

// WithGatherer adds another source to /metrics, e.g. the OTel exporter's
// registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(d *Daemon) { d.gatherers = append(d.gatherers, g) }
}

// Daemon watches files and validates them as they change.
//
// Thread Safety: Safe for concurrent use. Run must be called only once.
type Daemon struct {
	cfg       config.DaemonConfig
	roots     []string
	validator Validator
	cache     Invalidator
	history   History
	logger    *logging.Logger

	filter  *Filter
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	registry  *prometheus.Registry
	gatherers prometheus.Gatherers
	metrics   *metrics
	hub       *hub
	results   *resultStore
	stats     counters
	started   time.Time

	debounce time.Duration
	timeout  time.Duration
	health   time.Duration

	mu       sync.Mutex
	pending  map[string]*time.Timer
	lastSeen map[string]time.Time
	stopping bool
	runCtx   context.Context
	addr     string
	ready    chan struct{}

	readyOnce sync.Once

	wg      sync.WaitGroup
	running atomic.Bool
}

// New creates a daemon from cfg.
//
// Description:
//
//	Resolves watch paths to absolute paths and prepares the filter,
//	concurrency limit and rate limiter. Nothing is started until Run.
//
// Inputs:
//
//	cfg - Daemon section of the synx config
//	v - Validator used for every file
//	opts - Logger, cache, history and registry options
//
// Outputs:
//
//	*Daemon - Ready to Run
//	error - ErrNoWatchPaths, ErrNilValidator, or a path resolution error
func New(cfg config.DaemonConfig, v Validator, opts ...Option) (*Daemon, error) {
	if v == nil {
		return nil, ErrNilValidator
	}
	if len(cfg.WatchPaths) == 0 {
		return nil, ErrNoWatchPaths
	}

	d := &Daemon{
		cfg:       cfg,
		validator: v,
		results:   newResultStore(),
		pending:   make(map[string]*time.Timer),
		lastSeen:  make(map[string]time.Time),
		ready:     make(chan struct{}),
		debounce:  time.Duration(cfg.DebounceMS) * time.Millisecond,
		timeout:   time.Duration(cfg.ValidationTimeout) * time.Second,
		health:    time.Duration(cfg.HealthCheckInterval) * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Default()
	}
	if d.registry == nil {
		d.registry = prometheus.NewRegistry()
	}
	d.gatherers = append(prometheus.Gatherers{d.registry}, d.gatherers...)
	d.metrics = newMetrics(d.registry)
	d.hub = newHub(d.logger)

	if d.timeout <= 0 {
		d.timeout = 30 * time.Second
	}
	if d.health <= 0 {
		d.health = time.Minute
	}

	for _, p := range cfg.WatchPaths {
		abs, err := filepath.Abs(logging.ExpandPath(p))
		if err != nil {
			return nil, fmt.Errorf("resolving watch path %s: %w", p, err)
		}
		d.roots = append(d.roots, abs)
	}
	d.filter = NewFilter(d.roots, cfg.ExcludePatterns, cfg.IncludePatterns)

	workers := cfg.MaxConcurrentValidations
	if workers <= 0 {
		workers = 1
	}
	d.sem = semaphore.NewWeighted(int64(workers))

	d.limiter = rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxValidationsPerSecond > 0 {
		burst := int(cfg.MaxValidationsPerSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.MaxValidationsPerSecond), burst)
	}
	return d, nil
}

// Roots returns the absolute watch paths.
func (d *Daemon) Roots() []string {
	return append([]string(nil), d.roots...)
}

// Ready is closed once Run has started watching and serving.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the API listen address, valid after Ready. Empty when the
// API is disabled.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Run watches, validates and serves until ctx is cancelled.
//
// Description:
//
//	Acquires the PID file, starts the watcher and the HTTP API, then runs
//	the health-check loop. On cancellation it stops accepting events,
//	cancels pending debounce timers, shuts the API down, waits for
//	in-flight validations and releases the PID file.
//
// Outputs:
//
//	error - Startup failures or an API server error. Nil on clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	d.runCtx = ctx
	d.stopping = false
	d.mu.Unlock()
	d.started = time.Now()

	if d.cfg.PIDFile != "" {
		pf, err := AcquirePIDFile(logging.ExpandPath(d.cfg.PIDFile))
		if err != nil {
			return err
		}
		defer func() {
			if err := pf.Release(); err != nil {
				d.logger.Warn("failed to remove pid file", "path", pf.Path(), "error", err)
			}
		}()
	}

	w, err := watch.New(d.roots, d.handleChanges, watch.Options{
		Debounce: batchWindow,
		Ignore:   []string{},
		Logger:   d.logger,
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	var srv *http.Server
	srvErr := make(chan error, 1)
	if d.cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", d.cfg.ListenAddr)
		if err != nil {
			w.Stop()
			return fmt.Errorf("listening on %s: %w", d.cfg.ListenAddr, err)
		}
		d.mu.Lock()
		d.addr = ln.Addr().String()
		d.mu.Unlock()

		srv = &http.Server{Handler: d.Router(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()
	}

	d.logger.Info("daemon started",
		"roots", d.roots,
		"api", d.Addr(),
		"debounce_ms", d.cfg.DebounceMS,
		"max_concurrent", d.cfg.MaxConcurrentValidations,
	)
	d.readyOnce.Do(func() { close(d.ready) })

	ticker := time.NewTicker(d.health)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-srvErr:
			runErr = fmt.Errorf("api server: %w", err)
			break loop
		case <-ticker.C:
			d.healthCheck()
		}
	}

	d.shutdown(w, srv)
	return runErr
}

func (d *Daemon) shutdown(w *watch.Watcher, srv *http.Server) {
	d.logger.Info("daemon stopping")
	w.Stop()

	d.mu.Lock()
	d.stopping = true
	for p, t := range d.pending {
		t.Stop()
		delete(d.pending, p)
	}
	d.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(ctx); err != nil {
			d.logger.Warn("api shutdown failed", "error", err)
		}
		cancel()
	}
	d.hub.close()
	d.wg.Wait()

	if d.history != nil {
		d.history.Close()
	}

	st := d.Stats()
	d.logger.Info("daemon stopped",
		"validations", st.Validations,
		"passed", st.Passed,
		"failed", st.Failed,
		"uptime_seconds", int(st.UptimeSeconds),
	)
}

// handleChanges is the watcher callback.
func (d *Daemon) handleChanges(changes []watch.Change) {
	for _, ch := range changes {
		d.stats.received.Add(1)
		d.metrics.events.WithLabelValues("received").Inc()

		info, err := os.Stat(ch.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				d.forget(ch.Path)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if !d.filter.Allow(ch.Path) {
			d.stats.filtered.Add(1)
			d.metrics.events.WithLabelValues("filtered").Inc()
			continue
		}
		d.schedule(ch.Path)
	}
}

// schedule validates path once no change has arrived for the debounce
// window.
func (d *Daemon) schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopping {
		return
	}
	d.lastSeen[path] = time.Now()

	if t, ok := d.pending[path]; ok {
		t.Reset(d.debounce)
		d.stats.debounced.Add(1)
		d.metrics.events.WithLabelValues("debounced").Inc()
		return
	}
	if d.debounce <= 0 {
		d.dispatchLocked(path)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d.debounce, func() { d.fire(path, t) })
	d.pending[path] = t
}

func (d *Daemon) fire(path string, t *time.Timer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopping || d.pending[path] != t {
		return
	}
	delete(d.pending, path)
	d.dispatchLocked(path)
}

// dispatchLocked starts a validation. d.mu must be held.
func (d *Daemon) dispatchLocked(path string) {
	ctx := d.runCtx
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.validate(ctx, path); err != nil && ctx.Err() == nil {
			d.logger.Warn("validation failed to run", "file", path, "error", err)
		}
	}()
}

// validate runs one validation under the rate limiter and the concurrency
// limit, then records the result after the slot is released.
func (d *Daemon) validate(ctx context.Context, path string) (*datatypes.Result, error) {
	res, err := d.run(ctx, path)
	if err != nil {
		return nil, err
	}
	d.record(ctx, res)
	return res, nil
}

func (d *Daemon) run(ctx context.Context, path string) (*datatypes.Result, error) {
	waitStart := time.Now()
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	d.metrics.rateWait.Observe(time.Since(waitStart).Seconds())

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	d.stats.inflight.Add(1)
	d.metrics.inflight.Inc()
	defer func() {
		d.stats.inflight.Add(-1)
		d.metrics.inflight.Dec()
	}()

	vctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.validator.Validate(vctx, path)
}

func (d *Daemon) record(ctx context.Context, res *datatypes.Result) {
	d.results.set(res)
	d.stats.recordResult(res)
	d.metrics.validations.WithLabelValues(string(res.Status)).Inc()
	d.metrics.duration.Observe(res.Duration.Seconds())
	d.hub.broadcast(newEvent(EventValidated, res.Path, res))

	if d.history != nil {
		if err := d.history.Record(ctx, res); err != nil {
			d.logger.Warn("failed to record history", "file", res.Path, "error", err)
		}
	}

	switch {
	case !res.Valid():
		d.logger.Warn("validation failed",
			"file", res.Path,
			"status", res.Status,
			"errors", len(res.Errors),
			"message", res.Message,
		)
	case d.cfg.VerboseLogging:
		d.logger.Info("validated",
			"file", res.Path,
			"status", res.Status,
			"warnings", len(res.Warnings),
			"duration_ms", res.Duration.Milliseconds(),
			"cached", res.Cached,
		)
	}
}

// forget drops everything known about a removed file.
func (d *Daemon) forget(path string) {
	d.mu.Lock()
	if t, ok := d.pending[path]; ok {
		t.Stop()
		delete(d.pending, path)
	}
	delete(d.lastSeen, path)
	d.mu.Unlock()

	d.metrics.events.WithLabelValues("removed").Inc()
	if d.results.remove(path) {
		d.hub.broadcast(newEvent(EventRemoved, path, nil))
	}
	if d.cache != nil {
		if err := d.cache.Invalidate(path); err != nil {
			d.logger.Debug("cache invalidate failed", "file", path, "error", err)
		}
	}
}

// healthCheck logs a stats line and prunes state for stale or deleted
// files.
func (d *Daemon) healthCheck() {
	cutoff := time.Now().Add(-d.health)
	d.mu.Lock()
	pruned := 0
	for p, seen := range d.lastSeen {
		if _, pending := d.pending[p]; !pending && seen.Before(cutoff) {
			delete(d.lastSeen, p)
			pruned++
		}
	}
	d.mu.Unlock()

	for _, p := range d.results.paths() {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			d.forget(p)
			pruned++
		}
	}

	st := d.Stats()
	d.logger.Info("health check",
		"uptime_seconds", int(st.UptimeSeconds),
		"validations", st.Validations,
		"passed", st.Passed,
		"failed", st.Failed,
		"errors", st.Errors,
		"in_flight", st.InFlight,
		"pending", st.Pending,
		"tracked_files", st.TrackedFiles,
		"pruned", pruned,
	)
}

// Stats returns current counters.
func (d *Daemon) Stats() Stats {
	st := d.stats.snapshot(d.started)
	d.mu.Lock()
	st.Pending = len(d.pending)
	d.mu.Unlock()
	st.TrackedFiles = d.results.len()
	st.Subscribers = d.hub.count()
	return st
}

// Results returns the latest result per path, sorted by path.
func (d *Daemon) Results(failingOnly bool) []*datatypes.Result {
	return d.results.list(failingOnly)
}

// Result returns the latest result for path.
func (d *Daemon) Result(path string) (*datatypes.Result, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	return d.results.get(abs)
}

// Validate validates path immediately, bypassing debounce but not the
// rate or concurrency limits.
func (d *Daemon) Validate(ctx context.Context, path string) (*datatypes.Result, error) {
	return d.validate(ctx, path)
}
