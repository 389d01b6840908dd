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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Sentinel errors for configuration loading.
var (
	// ErrConfigNotFound indicates an explicitly requested file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigParse indicates a config file is not valid YAML for Config.
	ErrConfigParse = errors.New("config parse failed")

	// ErrConfigInvalid indicates the merged config failed validation.
	ErrConfigInvalid = errors.New("config invalid")
)

const (
	// ProjectFileName is looked up in the working directory.
	ProjectFileName = ".synx.yaml"

	// SystemConfigPath is the machine-wide layer.
	SystemConfigPath = "/etc/synx/config.yaml"

	// LegacyProjectFileName and LegacyUserFileName are the TOML files read by
	// earlier synx releases. They sit next to the YAML project and user files
	// and are reported, never loaded.
	LegacyProjectFileName = ".synx.toml"
	LegacyUserFileName    = "config.toml"
)

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("regexp", validateRegexp)
}

// validateRegexp checks that a string field compiles as a Go regexp.
func validateRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			WatchInterval: 2,
			Timeout:       30,
			BuiltinSyntax: true,
			BuiltinStyle:  true,
		},
		Validators: ValidatorsConfig{
			Rust:   RustConfig{Edition: "2021"},
			Cpp:    CppConfig{Compiler: "g++", Standard: "c++17"},
			C:      CConfig{Compiler: "gcc", Standard: "c11"},
			CSharp: CSharpConfig{UseDotnet: true},
			Python: PythonConfig{
				Interpreter:   "python3",
				MaxLineLength: 99,
			},
			Java:   JavaConfig{CheckstyleConfig: "/google_checks.xml"},
			Custom: map[string]CustomValidatorConfig{},
		},
		FileMappings: map[string]string{
			"Dockerfile":  "dockerfile",
			"Jenkinsfile": "groovy",
			"Makefile":    "makefile",
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTLSeconds:    3600,
			MaxEntries:    10000,
			MaxFileSizeMB: 50,
		},
		Daemon: DefaultDaemonConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}

// DefaultDaemonConfig returns daemon defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		WatchPaths:          []string{"."},
		DebounceMS:          500,
		ValidationTimeout:   30,
		HealthCheckInterval: 60,
		ExcludePatterns: []string{
			"*.tmp",
			"*.swp",
			"*.bak",
			"*~",
			".git/**",
			"node_modules/**",
			"target/**",
			"build/**",
			"dist/**",
			"__pycache__/**",
			".pytest_cache/**",
		},
		MaxConcurrentValidations: 4,
		ListenAddr:               "127.0.0.1:7878",
	}
}

// Overrides carries CLI flag values. Nil fields were not set by the user.
type Overrides struct {
	Strict        *bool
	Verbose       *bool
	Watch         *bool
	WatchInterval *int
	Timeout       *int
	Workers       *int
	NoCache       bool
}

// LoadOptions selects the files consulted by Load.
//
// Empty paths fall back to the standard locations. Set Skip* to leave a
// layer out entirely, which keeps tests independent of the host machine.
type LoadOptions struct {
	SystemPath   string
	UserPath     string
	ProjectPath  string
	ExplicitPath string

	SkipSystem  bool
	SkipUser    bool
	SkipProject bool

	Overrides Overrides
}

// UserConfigPath returns ~/.config/synx/config.yaml (or the platform equivalent).
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(dir, "synx", "config.yaml"), nil
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from DefaultConfig and decodes each layer on top of it, in order:
//	system, user, project, explicit path. CLI overrides are applied last and
//	the result is validated.
//
// Outputs:
//
//	*Config - The merged configuration
//	error - ErrConfigNotFound when ExplicitPath is missing, ErrConfigParse
//	        for malformed files, ErrConfigInvalid when validation fails
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	type layer struct {
		name string
		path string
		skip bool
	}

	userPath := opts.UserPath
	if userPath == "" && !opts.SkipUser {
		if p, err := UserConfigPath(); err == nil {
			userPath = p
		}
	}
	systemPath := opts.SystemPath
	if systemPath == "" {
		systemPath = SystemConfigPath
	}
	projectPath := opts.ProjectPath
	if projectPath == "" {
		projectPath = ProjectFileName
	}

	layers := []layer{
		{name: "system", path: systemPath, skip: opts.SkipSystem},
		{name: "user", path: userPath, skip: opts.SkipUser || userPath == ""},
		{name: "project", path: projectPath, skip: opts.SkipProject},
	}

	for _, l := range layers {
		if l.skip {
			continue
		}
		loaded, err := cfg.mergeFile(l.path)
		if err != nil {
			if errors.Is(err, ErrConfigParse) {
				return nil, err
			}
			slog.Warn("Skipping unreadable config layer",
				slog.String("layer", l.name),
				slog.String("path", l.path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if loaded {
			slog.Debug("Loaded config layer", slog.String("layer", l.name), slog.String("path", l.path))
		}
	}

	cfg.LegacyPaths = legacyPaths(layers[1].path, layers[2].path, layers[1].skip, layers[2].skip)
	for _, p := range cfg.LegacyPaths {
		slog.Debug("Found legacy TOML config", slog.String("path", p))
	}

	if opts.ExplicitPath != "" {
		loaded, err := cfg.mergeFile(opts.ExplicitPath)
		if err != nil {
			return nil, err
		}
		if !loaded {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ExplicitPath)
		}
	}

	cfg.ApplyOverrides(opts.Overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// legacyPaths returns the TOML files that exist beside the user and project
// YAML files.
func legacyPaths(userPath, projectPath string, skipUser, skipProject bool) []string {
	var candidates []string
	if !skipUser {
		candidates = append(candidates, filepath.Join(filepath.Dir(userPath), LegacyUserFileName))
	}
	if !skipProject {
		candidates = append(candidates, filepath.Join(filepath.Dir(projectPath), LegacyProjectFileName))
	}
	var found []string
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			found = append(found, p)
		}
	}
	return found
}

// mergeFile decodes path on top of c. Returns false when the file does not exist.
func (c *Config) mergeFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := c.Merge(data); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}
	c.LoadedPaths = append(c.LoadedPaths, path)
	return true, nil
}

// Merge decodes YAML onto c, overriding only the keys present in data.
func (c *Config) Merge(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyOverrides applies CLI flags that the user set.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Strict != nil {
		c.General.Strict = *o.Strict
	}
	if o.Verbose != nil {
		c.General.Verbose = *o.Verbose
	}
	if o.Watch != nil {
		c.General.Watch = *o.Watch
	}
	if o.WatchInterval != nil {
		c.General.WatchInterval = *o.WatchInterval
	}
	if o.Timeout != nil {
		c.General.Timeout = *o.Timeout
	}
	if o.Workers != nil {
		c.General.Workers = *o.Workers
	}
	if o.NoCache {
		c.Cache.Enabled = false
	}
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return nil
}

// PylintThreshold returns the configured threshold or the mode default.
func (c *Config) PylintThreshold() float64 {
	if t := c.Validators.Python.PylintThreshold; t != nil {
		return *t
	}
	if c.General.Strict {
		return 9.0
	}
	return 7.0
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fingerprint hashes the settings that can change a validation verdict:
// general options other than watch and worker settings, validator settings
// and file mappings. Cached results are only reused under an equal
// fingerprint.
func (c *Config) Fingerprint() string {
	g := c.General
	g.Watch = false
	g.WatchInterval = 0
	g.Workers = 0

	data, err := yaml.Marshal(struct {
		General      GeneralConfig     `yaml:"general"`
		Validators   ValidatorsConfig  `yaml:"validators"`
		FileMappings map[string]string `yaml:"file_mappings"`
	}{g, c.Validators, c.FileMappings})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// InitDefault writes DefaultConfig to path unless a file already exists there.
//
// Returns the path written. When force is false and the file exists, the
// existing file is left untouched and an error wrapping os.ErrExist is returned.
func InitDefault(path string, force bool) (string, error) {
	if path == "" {
		p, err := UserConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s: %w", path, os.ErrExist)
		}
	}
	if err := DefaultConfig().Save(path); err != nil {
		return "", err
	}
	return path, nil
}
