// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A5873/synx/services/synx/detect"
	"github.com/A5873/synx/services/synx/fixtures"
)

func TestCheck_PythonFixtures(t *testing.T) {
	ctx := context.Background()

	for _, f := range fixtures.ByLanguage(detect.Python) {
		t.Run(f.Name, func(t *testing.T) {
			content, err := fixtures.Read(f.Name)
			require.NoError(t, err)

			res, err := Check(ctx, content, detect.Python, f.Name)
			require.NoError(t, err)
			assert.True(t, res.Supported)
			assert.False(t, res.Advisory)
			assert.Equal(t, f.SyntaxValid, res.Valid, "errors: %+v", res.Errors)
		})
	}
}

func TestCheck_MissingParenthesisReported(t *testing.T) {
	content, err := fixtures.Read("python/invalid/test.py")
	require.NoError(t, err)

	res, err := Check(context.Background(), content, detect.Python, "test.py")
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)

	for _, e := range res.Errors {
		assert.GreaterOrEqual(t, e.Line, 1)
		assert.GreaterOrEqual(t, e.Column, 1)
		assert.NotEmpty(t, e.Message)
		assert.Contains(t, []string{"syntax", "missing"}, e.Kind)
	}
}

func TestCheck_Languages(t *testing.T) {
	tests := []struct {
		name    string
		lang    detect.Language
		path    string
		content string
		valid   bool
	}{
		{"go valid", detect.Go, "main.go", "package main\n\nfunc main() {}\n", true},
		{"go broken", detect.Go, "main.go", "package main\n\nfunc main() {\n", false},
		{"js valid", detect.JavaScript, "a.js", "const x = [1, 2].map((n) => n * 2);\n", true},
		{"js broken", detect.JavaScript, "a.js", "function f( {\n", false},
		{"ts valid", detect.TypeScript, "a.ts", "let n: number = 1;\n", true},
		{"tsx valid", detect.TypeScript, "a.tsx", "const el = <div className=\"x\">hi</div>;\n", true},
		{"rust valid", detect.Rust, "lib.rs", "pub fn add(a: i32, b: i32) -> i32 { a + b }\n", true},
		{"rust broken", detect.Rust, "lib.rs", "pub fn add(a: i32 -> i32 { a }\n", false},
		{"shell valid", detect.Shell, "run.sh", "#!/bin/sh\nif [ -f x ]; then\n  echo ok\nfi\n", true},
		{"shell broken", detect.Shell, "run.sh", "if [ -f x ]; then\n  echo ok\n", false},
		{"json as yaml", detect.YAML, "a.yaml", "key: value\nlist:\n  - 1\n  - 2\n", true},
		{"java valid", detect.Java, "A.java", "class A { int f() { return 1; } }\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Check(context.Background(), []byte(tt.content), tt.lang, tt.path)
			require.NoError(t, err)
			assert.True(t, res.Supported)
			assert.Equal(t, tt.valid, res.Valid, "errors: %+v", res.Errors)
		})
	}
}

func TestCheck_BrokenCIsAdvisory(t *testing.T) {
	content, err := fixtures.Read("c/invalid/broken.c")
	require.NoError(t, err)

	res, err := Check(context.Background(), content, detect.C, "broken.c")
	require.NoError(t, err)
	assert.True(t, res.Advisory)
	assert.False(t, res.Valid)

	var sawSemicolon bool
	for _, e := range res.Errors {
		if strings.Contains(e.Message, ";") {
			sawSemicolon = true
		}
	}
	assert.True(t, sawSemicolon, "errors: %+v", res.Errors)
}

func TestCheck_UnsupportedLanguage(t *testing.T) {
	res, err := Check(context.Background(), []byte("# Title\n"), detect.Markdown, "README.md")
	require.NoError(t, err)
	assert.False(t, res.Supported)
	assert.True(t, res.Valid)

	_, err = Parse(context.Background(), []byte("x"), detect.Unknown, "x")
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestCheck_InputErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Check(ctx, []byte{0xff, 0xfe, 0x00}, detect.Python, "bin.py")
	assert.True(t, errors.Is(err, ErrNotUTF8))

	big := make([]byte, MaxContentSize+1)
	_, err = Check(ctx, big, detect.Python, "big.py")
	assert.True(t, errors.Is(err, ErrTooLarge))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Check(cancelled, []byte("x = 1\n"), detect.Python, "a.py")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.py")
	require.NoError(t, os.WriteFile(path, []byte("def f(x: int) -> int:\n    return x\n"), 0644))

	res, err := CheckFile(context.Background(), path, detect.Python)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = CheckFile(context.Background(), filepath.Join(dir, "missing.py"), detect.Python)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(detect.Python))
	assert.True(t, Supported(detect.Dockerfile))
	assert.False(t, Supported(detect.JSON))
	assert.False(t, Supported(detect.Unknown))
	assert.True(t, IsAdvisory(detect.Cpp))
	assert.False(t, IsAdvisory(detect.Go))
}
