// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// isolated returns LoadOptions that never touch the host's config files.
func isolated(dir string) LoadOptions {
	return LoadOptions{
		SystemPath:  filepath.Join(dir, "missing-system.yaml"),
		UserPath:    filepath.Join(dir, "missing-user.yaml"),
		ProjectPath: filepath.Join(dir, "missing-project.yaml"),
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.General.Strict)
	assert.Equal(t, 2, cfg.General.WatchInterval)
	assert.Equal(t, 30, cfg.General.Timeout)
	assert.Equal(t, "2021", cfg.Validators.Rust.Edition)
	assert.Equal(t, "c++17", cfg.Validators.Cpp.Standard)
	assert.Equal(t, "c11", cfg.Validators.C.Standard)
	assert.True(t, cfg.Validators.CSharp.UseDotnet)
	assert.Equal(t, "groovy", cfg.FileMappings["Jenkinsfile"])
	assert.Equal(t, 3600, cfg.Cache.TTLSeconds)
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
	assert.Equal(t, 500, cfg.Daemon.DebounceMS)
	assert.Equal(t, 4, cfg.Daemon.MaxConcurrentValidations)
	assert.Contains(t, cfg.Daemon.ExcludePatterns, "node_modules/**")
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles(t *testing.T) {
	cfg, err := Load(isolated(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, cfg.LoadedPaths)
	assert.Equal(t, DefaultConfig().General, cfg.General)
}

func TestLoad_LayerPrecedence(t *testing.T) {
	dir := t.TempDir()
	opts := isolated(dir)
	opts.SystemPath = writeFile(t, dir, "system.yaml", `
general:
  timeout: 10
  verbose: true
validators:
  rust:
    edition: "2018"
`)
	opts.UserPath = writeFile(t, dir, "user.yaml", `
general:
  timeout: 20
`)
	opts.ProjectPath = writeFile(t, dir, "project.yaml", `
validators:
  python:
    pylint_threshold: 8.5
file_mappings:
  BUILD: python
`)

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.General.Timeout, "user layer overrides system")
	assert.True(t, cfg.General.Verbose, "system key survives when later layers omit it")
	assert.Equal(t, "2018", cfg.Validators.Rust.Edition)
	assert.Equal(t, "c++17", cfg.Validators.Cpp.Standard, "untouched defaults survive")
	assert.InDelta(t, 8.5, cfg.PylintThreshold(), 0.001)
	assert.Equal(t, "python", cfg.FileMappings["BUILD"])
	assert.Equal(t, "dockerfile", cfg.FileMappings["Dockerfile"], "default mappings are merged, not replaced")
	assert.Equal(t, []string{opts.SystemPath, opts.UserPath, opts.ProjectPath}, cfg.LoadedPaths)
}

func TestLoad_ExplicitPathAndOverrides(t *testing.T) {
	dir := t.TempDir()
	opts := isolated(dir)
	opts.ExplicitPath = writeFile(t, dir, "explicit.yaml", `
general:
  strict: false
  watch_interval: 5
validators:
  custom:
    groovy:
      command: groovyc
      args: ["-d", "/tmp/out"]
      success_pattern: "^$"
`)
	strict := true
	timeout := 45
	opts.Overrides = Overrides{Strict: &strict, Timeout: &timeout, NoCache: true}

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.True(t, cfg.General.Strict, "flag wins over file")
	assert.Equal(t, 5, cfg.General.WatchInterval)
	assert.Equal(t, 45, cfg.General.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	require.Contains(t, cfg.Validators.Custom, "groovy")
	assert.Equal(t, "groovyc", cfg.Validators.Custom["groovy"].Command)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	dir := t.TempDir()
	opts := isolated(dir)
	opts.ExplicitPath = filepath.Join(dir, "nope.yaml")

	_, err := Load(opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "general: [strict"},
		{"unknown key", "general:\n  stricter: true\n"},
		{"wrong type", "general:\n  timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			opts := isolated(dir)
			opts.ProjectPath = writeFile(t, dir, "project.yaml", tt.content)

			_, err := Load(opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigParse), "got %v", err)
		})
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero timeout", "general:\n  timeout: 0\n"},
		{"threshold above ten", "validators:\n  python:\n    pylint_threshold: 11\n"},
		{"custom without command", "validators:\n  custom:\n    foo:\n      args: [x]\n"},
		{"bad success pattern", "validators:\n  custom:\n    foo:\n      command: foo\n      success_pattern: \"(\"\n"},
		{"bad edition", "validators:\n  rust:\n    edition: \"2019\"\n"},
		{"bad telemetry exporter", "telemetry:\n  trace_exporter: zipkin\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			opts := isolated(dir)
			opts.ProjectPath = writeFile(t, dir, "project.yaml", tt.content)

			_, err := Load(opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigInvalid), "got %v", err)
		})
	}
}

func TestLoad_CommentOnlyFile(t *testing.T) {
	dir := t.TempDir()
	opts := isolated(dir)
	opts.ProjectPath = writeFile(t, dir, "project.yaml", "# nothing here\n")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Len(t, cfg.LoadedPaths, 1)
}

func TestPylintThreshold_ModeDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 7.0, cfg.PylintThreshold(), 0.001)

	cfg.General.Strict = true
	assert.InDelta(t, 9.0, cfg.PylintThreshold(), 0.001)

	custom := 6.0
	cfg.Validators.Python.PylintThreshold = &custom
	assert.InDelta(t, 6.0, cfg.PylintThreshold(), 0.001)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.General.Strict = true
	cfg.Validators.Shell.IgnoreRules = []string{"SC2086"}
	require.NoError(t, cfg.Save(path))

	opts := isolated(dir)
	opts.ExplicitPath = path
	loaded, err := Load(opts)
	require.NoError(t, err)
	assert.True(t, loaded.General.Strict)
	assert.Equal(t, []string{"SC2086"}, loaded.Validators.Shell.IgnoreRules)
}

func TestInitDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synx", "config.yaml")

	written, err := InitDefault(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, written)
	assert.FileExists(t, path)

	_, err = InitDefault(path, false)
	assert.True(t, errors.Is(err, os.ErrExist))

	_, err = InitDefault(path, true)
	assert.NoError(t, err)
}

func TestFingerprint(t *testing.T) {
	base := DefaultConfig().Fingerprint()
	require.NotEmpty(t, base)
	assert.Equal(t, base, DefaultConfig().Fingerprint())

	tests := []struct {
		name    string
		mutate  func(c *Config)
		changes bool
	}{
		{name: "watch toggled", mutate: func(c *Config) { c.General.Watch = true }},
		{name: "watch interval", mutate: func(c *Config) { c.General.WatchInterval = 9 }},
		{name: "workers", mutate: func(c *Config) { c.General.Workers = 16 }},
		{name: "cache dir", mutate: func(c *Config) { c.Cache.Dir = "/elsewhere" }},
		{name: "strict", mutate: func(c *Config) { c.General.Strict = true }, changes: true},
		{name: "rust edition", mutate: func(c *Config) { c.Validators.Rust.Edition = "2018" }, changes: true},
		{name: "custom validator", mutate: func(c *Config) {
			c.Validators.Custom = map[string]CustomValidatorConfig{"json": {Command: "jq"}}
		}, changes: true},
		{name: "file mapping", mutate: func(c *Config) { c.FileMappings["Rakefile"] = "ruby" }, changes: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.changes {
				assert.NotEqual(t, base, cfg.Fingerprint())
			} else {
				assert.Equal(t, base, cfg.Fingerprint())
			}
		})
	}
}

func TestLoad_ReportsLegacyTOML(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		skip  func(o *LoadOptions)
		want  []string
	}{
		{name: "none"},
		{name: "project", files: []string{".synx.toml"}, want: []string{".synx.toml"}},
		{name: "user and project", files: []string{"config.toml", ".synx.toml"}, want: []string{"config.toml", ".synx.toml"}},
		{
			name:  "project skipped",
			files: []string{".synx.toml"},
			skip:  func(o *LoadOptions) { o.SkipProject = true },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, dir, f, "[general]\nstrict = true\n")
			}
			opts := isolated(dir)
			if tt.skip != nil {
				tt.skip(&opts)
			}

			cfg, err := Load(opts)
			require.NoError(t, err)
			assert.False(t, cfg.General.Strict)
			assert.Empty(t, cfg.LoadedPaths)

			var want []string
			for _, f := range tt.want {
				want = append(want, filepath.Join(dir, f))
			}
			assert.Equal(t, want, cfg.LegacyPaths)
		})
	}
}
