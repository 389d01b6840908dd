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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/cache"
	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/lint"
)

// errValidationFailed signals exit status 1 after the results were
// already printed.
var errValidationFailed = errors.New("validation failed")

// exitError carries an exit status and an optional message.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	strict     bool
	noColor    bool
	noCache    bool
	format     string
	logLevel   string
	timeout    int
}

// app holds the I/O streams and the state built in PersistentPreRunE.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	flags globalFlags

	// baseLoad is extended with the --config path and flag overrides.
	baseLoad config.LoadOptions

	cfg    *config.Config
	logger *logging.Logger
	store  *cache.Store
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

// execute runs the CLI and returns the process exit status.
func execute(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	if err == nil {
		return 0
	}
	if errors.Is(err, errValidationFailed) {
		return 1
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(a.stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(a.stderr, "Error:", err)
	return 1
}

// setup loads configuration and creates the logger.
func (a *app) setup(cmd *cobra.Command) error {
	opts := a.baseLoad
	opts.ExplicitPath = a.flags.configPath
	opts.Overrides = a.overrides(cmd)

	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}
	a.cfg = cfg

	levelName := cfg.Logging.Level
	if a.flags.logLevel != "" {
		levelName = a.flags.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "synx",
		JSON:    cfg.Logging.JSON,
		Output:  a.stderr,
	})
	a.logger.Debug("configuration loaded", "files", cfg.LoadedPaths)
	for _, p := range cfg.LegacyPaths {
		a.logger.Warn("ignoring TOML config file, convert it to YAML", "path", p)
	}
	return nil
}

// overrides maps explicitly set flags onto config overrides.
func (a *app) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("strict") {
		o.Strict = &a.flags.strict
	}
	if flags.Changed("verbose") {
		o.Verbose = &a.flags.verbose
	}
	if flags.Changed("timeout") {
		o.Timeout = &a.flags.timeout
	}
	if flags.Lookup("watch") != nil && flags.Changed("watch") {
		v, _ := flags.GetBool("watch")
		o.Watch = &v
	}
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		v, _ := flags.GetInt("interval")
		o.WatchInterval = &v
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		v, _ := flags.GetInt("workers")
		o.Workers = &v
	}
	o.NoCache = a.flags.noCache
	return o
}

// openCache opens the result cache when enabled. A cache that cannot be
// opened, for example because a daemon holds it, is logged and skipped.
func (a *app) openCache() *cache.Store {
	if a.store != nil || !a.cfg.Cache.Enabled {
		return a.store
	}
	opts, err := cache.OptionsFromConfig(a.cfg.Cache)
	if err != nil {
		a.logger.Warn("cache disabled", "error", err)
		return nil
	}
	opts.Logger = a.logger
	store, err := cache.Open(opts)
	if err != nil {
		a.logger.Warn("cache disabled", "dir", opts.Dir, "error", err)
		return nil
	}
	a.store = store
	return store
}

// newRunner builds the validation runner with the cache when available.
func (a *app) newRunner() *lint.Runner {
	opts := []lint.Option{lint.WithLogger(a.logger)}
	if store := a.openCache(); store != nil {
		opts = append(opts, lint.WithCache(store))
	}
	return lint.NewRunner(a.cfg, opts...)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.logger != nil {
			a.logger.Warn("closing cache failed", "error", err)
		}
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}
