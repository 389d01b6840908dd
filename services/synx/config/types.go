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

// Config is the merged synx configuration.
//
// Every section decodes from YAML. Layers are applied on top of
// DefaultConfig so a layer only changes the keys it names.
type Config struct {
	// General controls validation mode for every file.
	General GeneralConfig `yaml:"general"`

	// Validators holds per-language tool settings.
	Validators ValidatorsConfig `yaml:"validators"`

	// FileMappings maps exact base names to a file type, e.g. "Jenkinsfile": "groovy".
	FileMappings map[string]string `yaml:"file_mappings"`

	// Scan configures directory scanning.
	Scan ScanConfig `yaml:"scan"`

	// Cache configures the validation result cache.
	Cache CacheConfig `yaml:"cache"`

	// Daemon configures `synx daemon run`.
	Daemon DaemonConfig `yaml:"daemon"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry configures OpenTelemetry exporters.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// LoadedPaths lists the files that contributed to this config, lowest
	// precedence first. Not serialized.
	LoadedPaths []string `yaml:"-"`

	// LegacyPaths lists TOML config files that exist but were not read.
	LegacyPaths []string `yaml:"-"`
}

// GeneralConfig holds mode switches shared by every validator.
type GeneralConfig struct {
	Strict        bool `yaml:"strict"`
	Verbose       bool `yaml:"verbose"`
	Watch         bool `yaml:"watch"`
	WatchInterval int  `yaml:"watch_interval" validate:"gte=1"`
	Timeout       int  `yaml:"timeout" validate:"gte=1"`

	// BuiltinSyntax enables the in-process tree-sitter pre-check.
	BuiltinSyntax bool `yaml:"builtin_syntax"`

	// BuiltinStyle enables the in-process Python style rules in strict mode.
	BuiltinStyle bool `yaml:"builtin_style"`

	// Workers bounds parallel validations. Zero means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`
}

// ValidatorsConfig holds per-language settings.
type ValidatorsConfig struct {
	Rust       RustConfig                       `yaml:"rust"`
	Cpp        CppConfig                        `yaml:"cpp"`
	C          CConfig                          `yaml:"c"`
	CSharp     CSharpConfig                     `yaml:"csharp"`
	Python     PythonConfig                     `yaml:"python"`
	JavaScript JavaScriptConfig                 `yaml:"javascript"`
	TypeScript TypeScriptConfig                 `yaml:"typescript"`
	Go         GoConfig                         `yaml:"go"`
	Java       JavaConfig                       `yaml:"java"`
	HTML       HTMLConfig                       `yaml:"html"`
	CSS        CSSConfig                        `yaml:"css"`
	YAML       YAMLConfig                       `yaml:"yaml"`
	JSON       JSONConfig                       `yaml:"json"`
	Shell      ShellConfig                      `yaml:"shell"`
	Dockerfile DockerfileConfig                 `yaml:"dockerfile"`
	Custom     map[string]CustomValidatorConfig `yaml:"custom" validate:"dive"`
}

type RustConfig struct {
	Edition     string   `yaml:"edition" validate:"omitempty,oneof=2015 2018 2021 2024"`
	Clippy      bool     `yaml:"clippy"`
	ClippyFlags []string `yaml:"clippy_flags,omitempty"`
}

type CppConfig struct {
	Compiler     string   `yaml:"compiler"`
	Standard     string   `yaml:"standard"`
	IncludePaths []string `yaml:"include_paths,omitempty"`
}

type CConfig struct {
	Compiler     string   `yaml:"compiler"`
	Standard     string   `yaml:"standard"`
	CheckMemory  bool     `yaml:"check_memory"`
	IncludePaths []string `yaml:"include_paths,omitempty"`
}

type CSharpConfig struct {
	UseDotnet bool   `yaml:"use_dotnet"`
	Framework string `yaml:"framework,omitempty"`
}

// PythonConfig configures python3, mypy, pylint and the built-in style rules.
type PythonConfig struct {
	Interpreter string `yaml:"interpreter"`
	MypyStrict  bool   `yaml:"mypy_strict"`

	// PylintThreshold is the --fail-under score. When unset the threshold is
	// 9.0 in strict mode and 7.0 otherwise.
	PylintThreshold *float64 `yaml:"pylint_threshold,omitempty" validate:"omitempty,gte=0,lte=10"`

	IgnoreRules   []string `yaml:"ignore_rules,omitempty"`
	MaxLineLength int      `yaml:"max_line_length" validate:"gte=0"`
}

type JavaScriptConfig struct {
	ESLintConfig string `yaml:"eslint_config,omitempty"`
	NodeVersion  string `yaml:"node_version,omitempty"`
}

type TypeScriptConfig struct {
	ESLintConfig string `yaml:"eslint_config,omitempty"`
	TSConfig     string `yaml:"tsconfig,omitempty"`
}

type GoConfig struct {
	Test      bool     `yaml:"test"`
	LintFlags []string `yaml:"lint_flags,omitempty"`
}

type JavaConfig struct {
	CheckstyleConfig string `yaml:"checkstyle_config"`
	Version          string `yaml:"version,omitempty"`
}

type HTMLConfig struct {
	TidyFlags []string `yaml:"tidy_flags,omitempty"`
}

type CSSConfig struct {
	CSSLintFlags []string `yaml:"csslint_flags,omitempty"`
}

type YAMLConfig struct {
	CustomConfig string `yaml:"custom_config,omitempty"`
}

type JSONConfig struct {
	AllowComments bool `yaml:"allow_comments"`
}

type ShellConfig struct {
	ShellType   string   `yaml:"shell_type,omitempty" validate:"omitempty,oneof=sh bash dash ksh zsh"`
	IgnoreRules []string `yaml:"ignore_rules,omitempty"`
}

type DockerfileConfig struct {
	IgnoreRules []string `yaml:"ignore_rules,omitempty"`
}

// CustomValidatorConfig runs an arbitrary command for a file type.
//
// The file path is appended after Args (and StrictArgs in strict mode).
// The file is valid when the command exits 0 and, if SuccessPattern is set,
// its combined output matches the pattern.
type CustomValidatorConfig struct {
	Command        string   `yaml:"command" validate:"required"`
	Args           []string `yaml:"args,omitempty"`
	StrictArgs     []string `yaml:"strict_args,omitempty"`
	SuccessPattern string   `yaml:"success_pattern,omitempty" validate:"omitempty,regexp"`
}

// ScanConfig configures directory scans.
type ScanConfig struct {
	Exclude []string `yaml:"exclude,omitempty"`
}

// CacheConfig configures the validation cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	TTLSeconds int    `yaml:"ttl_seconds" validate:"gte=0"`
	MaxEntries int    `yaml:"max_entries" validate:"gte=0"`

	// MaxFileSizeMB skips caching for larger files.
	MaxFileSizeMB int `yaml:"max_file_size_mb" validate:"gte=0"`

	// SyncWrites fsyncs every cache write.
	SyncWrites bool `yaml:"sync_writes"`
}

// DaemonConfig configures the long-running validation service.
type DaemonConfig struct {
	WatchPaths          []string `yaml:"watch_paths" validate:"min=1"`
	DebounceMS          int      `yaml:"debounce_ms" validate:"gte=0"`
	VerboseLogging      bool     `yaml:"verbose_logging"`
	ValidationTimeout   int      `yaml:"validation_timeout" validate:"gte=1"`
	HealthCheckInterval int      `yaml:"health_check_interval" validate:"gte=1"`
	PIDFile             string   `yaml:"pid_file"`
	LogDir              string   `yaml:"log_dir"`
	ExcludePatterns     []string `yaml:"exclude_patterns"`

	// IncludePatterns override ExcludePatterns.
	IncludePatterns []string `yaml:"include_patterns,omitempty"`

	MaxConcurrentValidations int     `yaml:"max_concurrent_validations" validate:"gte=1,lte=64"`
	MaxValidationsPerSecond  float64 `yaml:"max_validations_per_second" validate:"gte=0"`

	// ListenAddr serves the status API. Empty disables it.
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`

	// History writes each validation to InfluxDB when URL is set.
	History HistoryConfig `yaml:"history"`
}

// HistoryConfig points the daemon at an InfluxDB v2 bucket.
type HistoryConfig struct {
	URL    string `yaml:"url,omitempty" validate:"omitempty,url"`
	Org    string `yaml:"org,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`

	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `yaml:"token_env,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
}
