// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"path"
	"path/filepath"
	"strings"
)

// Matcher tests slash-separated relative paths against glob patterns.
//
// Supports:
//   - * matches any non-separator characters
//   - ** as a whole segment matches zero or more segments
//   - ? matches a single character
//   - [abc] character class
//
// A pattern without a slash also matches the base name, so "*.tmp" excludes
// temp files at any depth. "dir/**" matches dir itself, which lets a walk
// skip the whole directory.
//
// Thread Safety: Immutable after creation.
type Matcher struct {
	patterns [][]string
	basename []string
}

// NewMatcher compiles patterns. Empty patterns are ignored.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		p = strings.TrimPrefix(p, "./")
		if p == "" {
			continue
		}
		if !strings.Contains(strings.TrimSuffix(p, "/"), "/") && !strings.Contains(p, "**") {
			m.basename = append(m.basename, strings.TrimSuffix(p, "/"))
			continue
		}
		m.patterns = append(m.patterns, strings.Split(strings.Trim(p, "/"), "/"))
	}
	return m
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || (len(m.patterns) == 0 && len(m.basename) == 0)
}

// Match reports whether rel, a path relative to the scan root, matches any
// pattern.
func (m *Matcher) Match(rel string) bool {
	if m.Empty() {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	base := path.Base(rel)
	for _, p := range m.basename {
		if ok, _ := path.Match(p, base); ok {
			return true
		}
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
	}

	segs := strings.Split(rel, "/")
	for _, p := range m.patterns {
		if matchSegments(p, segs) {
			return true
		}
	}
	return false
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
