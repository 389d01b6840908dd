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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Allow(t *testing.T) {
	root := filepath.FromSlash("/work/project")
	other := filepath.FromSlash("/work/other")
	f := NewFilter(
		[]string{root, other + "/"},
		[]string{"*.log", "vendor/**", "build"},
		[]string{"vendor/keep/**", "important.log"},
	)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"plain file", "/work/project/main.go", true},
		{"excluded by extension", "/work/project/debug.log", false},
		{"excluded nested extension", "/work/project/logs/app.log", false},
		{"excluded directory tree", "/work/project/vendor/lib/x.go", false},
		{"include overrides exclude", "/work/project/vendor/keep/y.go", true},
		{"include by name", "/work/project/important.log", true},
		{"second root", "/work/other/debug.log", false},
		{"second root allowed", "/work/other/a.py", true},
		{"outside roots uses base name", "/elsewhere/trace.log", false},
		{"outside roots allowed", "/elsewhere/ok.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Allow(filepath.FromSlash(tt.path)))
		})
	}
}

func TestFilter_NoPatterns(t *testing.T) {
	f := NewFilter([]string{"/work"}, nil, nil)
	assert.True(t, f.Allow("/work/anything.tmp"))
	assert.True(t, f.Allow("/somewhere/else.txt"))
}
