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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/lint"
)

func TestMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		rel      string
		want     bool
	}{
		{name: "basename glob", patterns: []string{"*.tmp"}, rel: "a/b/c.tmp", want: true},
		{name: "basename no match", patterns: []string{"*.tmp"}, rel: "a/b/c.py"},
		{name: "backup tilde", patterns: []string{"*~"}, rel: "notes.txt~", want: true},
		{name: "dir doublestar matches dir", patterns: []string{"build/**"}, rel: "build", want: true},
		{name: "dir doublestar matches nested", patterns: []string{"build/**"}, rel: "build/x/y.o", want: true},
		{name: "dir doublestar anchored", patterns: []string{"build/**"}, rel: "src/build/y.o"},
		{name: "leading doublestar", patterns: []string{"**/*.py"}, rel: "deep/down/x.py", want: true},
		{name: "leading doublestar top level", patterns: []string{"**/*.py"}, rel: "x.py", want: true},
		{name: "middle doublestar", patterns: []string{"src/**/gen_*.go"}, rel: "src/a/b/gen_x.go", want: true},
		{name: "middle doublestar zero segments", patterns: []string{"src/**/gen_*.go"}, rel: "src/gen_x.go", want: true},
		{name: "anchored path", patterns: []string{"docs/*.md"}, rel: "docs/a.md", want: true},
		{name: "anchored path no recursion", patterns: []string{"docs/*.md"}, rel: "docs/x/a.md"},
		{name: "dot slash prefix", patterns: []string{"./tmp/**"}, rel: "tmp/a", want: true},
		{name: "trailing slash dir", patterns: []string{"fixtures/"}, rel: "fixtures", want: true},
		{name: "empty patterns", patterns: []string{"", "  "}, rel: "a.py"},
		{name: "root never matches", patterns: []string{"**"}, rel: "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewMatcher(tt.patterns).Match(tt.rel))
		})
	}
}

func TestMatcher_Empty(t *testing.T) {
	var m *Matcher
	assert.True(t, m.Empty())
	assert.False(t, m.Match("a"))
	assert.True(t, NewMatcher(nil).Empty())
	assert.False(t, NewMatcher([]string{"*.go"}).Empty())
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestCollect(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":                    "",
		"src/b.go":                "",
		"src/gen/c.go":            "",
		"notes.tmp":               "",
		".git/config":             "",
		"node_modules/x/index.js": "",
		"vendor/v.go":             "",
		"pkg/__pycache__/m.pyc":   "",
		"rust/target/debug/out":   "",
	})

	files, skipped, err := Collect(root, []string{"*.tmp", "src/gen/**"})
	require.NoError(t, err)

	rel := func(paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			r, err := filepath.Rel(root, p)
			require.NoError(t, err)
			out = append(out, filepath.ToSlash(r))
		}
		return out
	}
	assert.Equal(t, []string{"a.py", "src/b.go"}, rel(files))
	assert.ElementsMatch(t, []string{"notes.tmp", "src/gen"}, rel(skipped))
}

func TestCollect_Errors(t *testing.T) {
	_, _, err := Collect(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file.py")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, _, err = Collect(f, nil)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestSkipDir(t *testing.T) {
	for _, name := range []string{".git", ".venv", "node_modules", "vendor", "target", "__pycache__"} {
		assert.True(t, SkipDir(name), name)
	}
	for _, name := range []string{"src", ".", "build"} {
		assert.False(t, SkipDir(name), name)
	}
}

// stubValidator decides status by file name.
type stubValidator struct{}

func (stubValidator) ValidateFiles(_ context.Context, paths []string, progress func(*datatypes.Result)) ([]*datatypes.Result, error) {
	out := make([]*datatypes.Result, len(paths))
	for i, p := range paths {
		res := &datatypes.Result{Path: p, Status: datatypes.StatusValid, FileType: "Python"}
		base := filepath.Base(p)
		switch {
		case strings.HasPrefix(base, "bad"):
			res.Status = datatypes.StatusInvalid
		case strings.HasPrefix(base, "err"):
			res.Status = datatypes.StatusError
		case strings.HasSuffix(base, ".xyz"):
			res.Status = datatypes.StatusSkipped
			res.FileType = "Unknown (xyz)"
		}
		out[i] = res
		if progress != nil {
			progress(res)
		}
	}
	return out, nil
}

func TestScan_Aggregates(t *testing.T) {
	root := writeTree(t, map[string]string{
		"ok.py":       "",
		"z/bad.py":    "",
		"a/bad.py":    "",
		"err.py":      "",
		"data.xyz":    "",
		"skip/me.py":  "",
		"also.py.bak": "",
	})

	var calls []int
	res, err := Scan(context.Background(), stubValidator{}, root, Options{
		Exclude: []string{"skip/**", "*.bak"},
		Progress: func(done, total int, _ *datatypes.Result) {
			assert.Equal(t, 5, total)
			calls = append(calls, done)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Valid)
	assert.Equal(t, []string{filepath.Join(root, "a", "bad.py"), filepath.Join(root, "z", "bad.py")}, res.Invalid)
	assert.Equal(t, []string{filepath.Join(root, "err.py")}, res.Errored)
	assert.Len(t, res.Skipped, 2)
	assert.False(t, res.Passed())

	assert.Equal(t, []string{"Python", "Unknown (xyz)"}, res.Types())
	py := res.ByType["Python"]
	assert.Equal(t, 4, py.Total)
	assert.Equal(t, 1, py.Valid)
	assert.Len(t, py.Invalid, 3)
	assert.Equal(t, 1, res.ByType["Unknown (xyz)"].Valid)
}

func TestScan_WithRunner(t *testing.T) {
	root := writeTree(t, map[string]string{
		"good.json":     `{"a": [1, 2]}`,
		"nested/b.json": `{"b": true}`,
		"bad.json":      `{"a": 1,}`,
	})

	cfg := config.DefaultConfig()
	cfg.General.Workers = 2
	res, err := Scan(context.Background(), lint.NewRunner(cfg), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Valid)
	assert.Equal(t, []string{filepath.Join(root, "bad.json")}, res.Invalid)
	require.Contains(t, res.ByType, "JSON")
	assert.Equal(t, 3, res.ByType["JSON"].Total)
}

func TestScan_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.json": "{}"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, lint.NewRunner(config.DefaultConfig()), root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
