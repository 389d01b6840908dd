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
	"path/filepath"
	"strings"

	"github.com/A5873/synx/services/synx/scan"
)

// Filter decides which changed files are validated.
//
// Patterns match the path relative to the watch root that contains it, and
// the base name. A path matching an include pattern is always allowed, even
// when an exclude pattern also matches.
//
// Thread Safety: Immutable after creation.
type Filter struct {
	roots   []string
	exclude *scan.Matcher
	include *scan.Matcher
}

// NewFilter builds a filter. roots should be absolute.
func NewFilter(roots, exclude, include []string) *Filter {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		cleaned = append(cleaned, filepath.Clean(r))
	}
	return &Filter{
		roots:   cleaned,
		exclude: scan.NewMatcher(exclude),
		include: scan.NewMatcher(include),
	}
}

// Allow reports whether path should be validated.
func (f *Filter) Allow(path string) bool {
	rel := f.relative(path)
	if f.include.Match(rel) {
		return true
	}
	return !f.exclude.Match(rel)
}

// Within reports whether path lies under one of the watch roots.
func (f *Filter) Within(path string) bool {
	_, ok := f.underRoot(filepath.Clean(path))
	return ok
}

func (f *Filter) relative(path string) string {
	path = filepath.Clean(path)
	if rel, ok := f.underRoot(path); ok {
		return rel
	}
	return filepath.Base(path)
}

func (f *Filter) underRoot(path string) (string, bool) {
	for _, r := range f.roots {
		rel, err := filepath.Rel(r, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return rel, true
	}
	return "", false
}
