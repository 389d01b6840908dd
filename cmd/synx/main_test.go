// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/report"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runCLI executes synx with host configuration files ignored.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(""), &stdout, &stderr)
	a.baseLoad = config.LoadOptions{SkipSystem: true, SkipUser: true, SkipProject: true}
	code := execute(context.Background(), a, args)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `{"name": "synx", "tags": [1, 2]}`)
	bad := writeFile(t, dir, "bad.json", `{"name": "synx",}`)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  []string
	}{
		{
			name:     "valid file",
			args:     []string{good},
			wantCode: 0,
			wantOut:  []string{"good.json", "valid"},
		},
		{
			name:     "invalid file",
			args:     []string{bad},
			wantCode: 1,
			wantOut:  []string{"bad.json", "invalid", "json-syntax"},
		},
		{
			name:     "validate subcommand",
			args:     []string{"validate", good, bad},
			wantCode: 1,
			wantOut:  []string{"2 checked", "1 valid", "1 invalid"},
		},
		{
			name:     "missing file",
			args:     []string{filepath.Join(dir, "nope.json")},
			wantCode: 1,
			wantOut:  []string{"nope.json", "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--no-cache", "--no-color"}, tt.args...)
			res := runCLI(t, args...)
			assert.Equal(t, tt.wantCode, res.code, "stderr: %s", res.stderr)
			for _, want := range tt.wantOut {
				assert.Contains(t, res.stdout, want)
			}
		})
	}
}

func TestValidate_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `{}`)
	bad := writeFile(t, dir, "bad.json", `[1, 2`)

	res := runCLI(t, "--no-cache", "--format", "json", good, bad)
	assert.Equal(t, 1, res.code)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc), res.stdout)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, good, doc.Results[0].Path)
	assert.Equal(t, bad, doc.Results[1].Path)
	assert.Equal(t, 2, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Valid)
	assert.Equal(t, 1, doc.Summary.Invalid)
}

func TestValidate_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `{}`)

	res := runCLI(t, "--no-cache", "--format", "xml", good)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error:")
}

func TestValidate_UsesCache(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "synx.yaml", "cache:\n  enabled: true\n  dir: "+filepath.Join(dir, "cache")+"\n")
	good := writeFile(t, dir, "good.json", `{"a": 1}`)

	first := runCLI(t, "--no-color", "--config", cfgPath, good)
	require.Equal(t, 0, first.code, first.stderr)
	assert.NotContains(t, first.stdout, "[cached]")

	second := runCLI(t, "--no-color", "--config", cfgPath, good)
	require.Equal(t, 0, second.code, second.stderr)
	assert.Contains(t, second.stdout, "[cached]")

	stats := runCLI(t, "--config", cfgPath, "cache", "stats")
	require.Equal(t, 0, stats.code, stats.stderr)
	assert.Contains(t, stats.stdout, "Entries:        1")

	optimize := runCLI(t, "--config", cfgPath, "cache", "optimize")
	require.Equal(t, 0, optimize.code, optimize.stderr)
	assert.Contains(t, optimize.stdout, "1 remaining")

	cleared := runCLI(t, "--config", cfgPath, "cache", "clear")
	require.Equal(t, 0, cleared.code, cleared.stderr)
	assert.Contains(t, cleared.stdout, "Cleared 1 cached result(s)")

	third := runCLI(t, "--no-color", "--config", cfgPath, good)
	require.Equal(t, 0, third.code, third.stderr)
	assert.NotContains(t, third.stdout, "[cached]")
}

func TestCache_Disabled(t *testing.T) {
	res := runCLI(t, "--no-cache", "cache", "stats")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, errCacheDisabled.Error())
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{}`)
	writeFile(t, dir, "nested/b.json", `{"ok": true}`)
	writeFile(t, dir, "vendor/c.json", `{broken`)

	t.Run("excluded failure passes", func(t *testing.T) {
		res := runCLI(t, "--no-cache", "--no-color", "scan", dir, "--exclude", "vendor/**")
		assert.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "PASSED")
	})

	t.Run("failure fails the scan", func(t *testing.T) {
		res := runCLI(t, "--no-cache", "--no-color", "scan", dir)
		assert.Equal(t, 1, res.code, res.stderr)
		assert.Contains(t, res.stdout, "FAILED")
		assert.Contains(t, res.stdout, "c.json")
	})

	t.Run("bad upload URL", func(t *testing.T) {
		res := runCLI(t, "--no-cache", "scan", dir, "--exclude", "vendor/**", "--upload", "s3://bucket/x")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "invalid GCS URL")
	})
}

func TestExplain(t *testing.T) {
	t.Run("known code", func(t *testing.T) {
		res := runCLI(t, "--no-color", "explain", "py0001")
		assert.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "PY0001")
		assert.Contains(t, res.stdout, "syntax-error")
	})

	t.Run("unknown code", func(t *testing.T) {
		res := runCLI(t, "--no-color", "explain", "ZZ9999")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "ZZ9999")
	})

	t.Run("list by language", func(t *testing.T) {
		res := runCLI(t, "explain", "--list", "--language", "python")
		assert.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "PY0001")
		assert.NotContains(t, res.stdout, "R0001")
	})

	t.Run("list unknown language", func(t *testing.T) {
		res := runCLI(t, "explain", "--list", "--language", "cobol")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "unknown language")
	})
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()

	t.Run("init writes once", func(t *testing.T) {
		out := filepath.Join(dir, "config.yaml")

		res := runCLI(t, "config", "init", "--output", out)
		require.Equal(t, 0, res.code, res.stderr)
		assert.FileExists(t, out)

		res = runCLI(t, "config", "init", "--output", out)
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "already exists")

		res = runCLI(t, "config", "init", "--output", out, "--force")
		assert.Equal(t, 0, res.code, res.stderr)
	})

	t.Run("show reports loaded file", func(t *testing.T) {
		cfgPath := writeFile(t, dir, "strict.yaml", "general:\n  strict: true\n")
		res := runCLI(t, "--config", cfgPath, "config", "show")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "# loaded from "+cfgPath)
		assert.Contains(t, res.stdout, "strict: true")
	})

	t.Run("show defaults", func(t *testing.T) {
		res := runCLI(t, "config", "show")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "# built-in defaults")
	})

	t.Run("missing explicit config", func(t *testing.T) {
		res := runCLI(t, "--config", filepath.Join(dir, "absent.yaml"), "config", "show")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "absent.yaml")
	})

	t.Run("path", func(t *testing.T) {
		res := runCLI(t, "config", "path")
		require.Equal(t, 0, res.code, res.stderr)
		for _, layer := range []string{"system", "user", "project"} {
			assert.Contains(t, res.stdout, layer)
		}
		assert.Contains(t, res.stdout, config.ProjectFileName)
	})
}

func TestDaemonInstall_Print(t *testing.T) {
	res := runCLI(t, "daemon", "install", "--print")
	if res.code != 0 {
		assert.Contains(t, res.stderr, "unsupported")
		return
	}
	assert.Contains(t, res.stdout, "daemon run")
}

func TestDaemonStatus_NotRunning(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "synx.yaml", "daemon:\n  pid_file: "+filepath.Join(dir, "daemon.pid")+"\n")

	res := runCLI(t, "--config", cfgPath, "daemon", "status")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "not running")
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanBytes(tt.in))
	}
}

func TestConfigPath_ReportsLegacyTOML(t *testing.T) {
	dir := t.TempDir()
	legacy := writeFile(t, dir, ".synx.toml", "[general]\nstrict = true\n")

	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(""), &stdout, &stderr)
	a.baseLoad = config.LoadOptions{
		SkipSystem:  true,
		SkipUser:    true,
		ProjectPath: filepath.Join(dir, config.ProjectFileName),
	}
	code := execute(context.Background(), a, []string{"config", "path"})
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "legacy   "+legacy+" (not read; convert to YAML)")
	assert.Contains(t, stderr.String(), "ignoring TOML config file")
}
