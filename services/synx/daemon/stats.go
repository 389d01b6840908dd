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
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/A5873/synx/services/synx/datatypes"
)

// Stats is a point-in-time view of daemon activity.
type Stats struct {
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds float64   `json:"uptime_seconds"`

	EventsReceived  uint64 `json:"events_received"`
	EventsFiltered  uint64 `json:"events_filtered"`
	EventsDebounced uint64 `json:"events_debounced"`

	Validations uint64 `json:"validations"`
	Passed      uint64 `json:"passed"`
	Failed      uint64 `json:"failed"`
	Errors      uint64 `json:"errors"`

	InFlight int64 `json:"in_flight"`
	Pending  int   `json:"pending"`

	// TrackedFiles is the number of files with a stored result.
	TrackedFiles int `json:"tracked_files"`

	Subscribers int `json:"subscribers"`

	AvgValidationMS  float64   `json:"avg_validation_ms"`
	LastValidationAt time.Time `json:"last_validation_at,omitempty"`
}

// counters holds the live values behind Stats.
type counters struct {
	received  atomic.Uint64
	filtered  atomic.Uint64
	debounced atomic.Uint64

	validations atomic.Uint64
	passed      atomic.Uint64
	failed      atomic.Uint64
	errors      atomic.Uint64

	inflight atomic.Int64
	totalNS  atomic.Int64
	lastNS   atomic.Int64
}

func (c *counters) recordResult(res *datatypes.Result) {
	c.validations.Add(1)
	c.totalNS.Add(int64(res.Duration))
	c.lastNS.Store(time.Now().UnixNano())
	switch {
	case res.Status == datatypes.StatusError:
		c.errors.Add(1)
	case res.Valid():
		c.passed.Add(1)
	default:
		c.failed.Add(1)
	}
}

func (c *counters) snapshot(started time.Time) Stats {
	s := Stats{
		StartedAt:       started,
		UptimeSeconds:   time.Since(started).Seconds(),
		EventsReceived:  c.received.Load(),
		EventsFiltered:  c.filtered.Load(),
		EventsDebounced: c.debounced.Load(),
		Validations:     c.validations.Load(),
		Passed:          c.passed.Load(),
		Failed:          c.failed.Load(),
		Errors:          c.errors.Load(),
		InFlight:        c.inflight.Load(),
	}
	if s.Validations > 0 {
		s.AvgValidationMS = float64(c.totalNS.Load()) / float64(s.Validations) / float64(time.Millisecond)
	}
	if ns := c.lastNS.Load(); ns > 0 {
		s.LastValidationAt = time.Unix(0, ns)
	}
	return s
}

// resultStore keeps the latest result per path.
type resultStore struct {
	mu      sync.RWMutex
	results map[string]*datatypes.Result
}

func newResultStore() *resultStore {
	return &resultStore{results: make(map[string]*datatypes.Result)}
}

func (s *resultStore) set(res *datatypes.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Path] = res
}

func (s *resultStore) get(path string) (*datatypes.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[path]
	return res, ok
}

func (s *resultStore) remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.results[path]
	delete(s.results, path)
	return ok
}

func (s *resultStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

func (s *resultStore) paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.results))
	for p := range s.results {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// list returns results sorted by path, optionally only failing ones.
func (s *resultStore) list(failingOnly bool) []*datatypes.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*datatypes.Result, 0, len(s.results))
	for _, r := range s.results {
		if failingOnly && r.Valid() {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
