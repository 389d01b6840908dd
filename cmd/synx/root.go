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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/A5873/synx/services/synx/lint"
	"github.com/A5873/synx/services/synx/report"
	"github.com/A5873/synx/services/synx/watch"
)

// validateFlags are the flags of the root and validate commands.
type validateFlags struct {
	watch        bool
	interval     int
	initConfig   bool
	contextLines int
}

func newRootCmd(a *app) *cobra.Command {
	var vf validateFlags

	root := &cobra.Command{
		Use:   "synx [files...]",
		Short: "Universal syntax validator and linter",
		Long: `synx detects the language of each file and runs the matching
syntax checks and linters, reporting every issue in one format.`,
		Args:          cobra.ArbitraryArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if vf.initConfig {
				return a.runConfigInit(cmd, "", false, false)
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runValidate(cmd.Context(), args, vf)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "path to a configuration file")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "show every step and its duration")
	pf.BoolVarP(&a.flags.strict, "strict", "s", false, "treat warnings as errors")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&a.flags.noCache, "no-cache", false, "do not read or write the result cache")
	pf.StringVar(&a.flags.format, "format", "text", "output format: text or json")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.IntVar(&a.flags.timeout, "timeout", 30, "per-tool timeout in seconds")

	addValidateFlags(root, &vf)
	root.Flags().BoolVar(&vf.initConfig, "init-config", false, "write the default user configuration and exit")

	root.AddCommand(
		newValidateCmd(a),
		newScanCmd(a),
		newDaemonCmd(a),
		newConfigCmd(a),
		newExplainCmd(a),
		newToolsCmd(a),
		newCacheCmd(a),
	)
	return root
}

func addValidateFlags(cmd *cobra.Command, vf *validateFlags) {
	f := cmd.Flags()
	f.BoolVarP(&vf.watch, "watch", "w", false, "re-validate files when they change")
	f.IntVar(&vf.interval, "interval", 2, "watch status interval in seconds")
	f.IntVar(&vf.contextLines, "context", 2, "source lines shown around each issue (0 disables)")
}

func newValidateCmd(a *app) *cobra.Command {
	var vf validateFlags
	cmd := &cobra.Command{
		Use:   "validate <files...>",
		Short: "Validate one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd.Context(), args, vf)
		},
	}
	addValidateFlags(cmd, &vf)
	return cmd
}

// reporter builds a Reporter for stdout from the global flags.
func (a *app) reporter(contextLines int) (*report.Reporter, error) {
	format, err := report.ParseFormat(a.flags.format)
	if err != nil {
		return nil, err
	}
	wd, _ := os.Getwd()
	return report.New(a.stdout, report.Options{
		Format:       format,
		Color:        report.ColorEnabled(a.stdout, a.flags.noColor),
		ContextLines: contextLines,
		Verbose:      a.cfg.General.Verbose,
		BaseDir:      wd,
	}), nil
}

// runValidate validates files once, then keeps watching them if requested.
func (a *app) runValidate(ctx context.Context, paths []string, vf validateFlags) error {
	rep, err := a.reporter(vf.contextLines)
	if err != nil {
		return err
	}
	runner := a.newRunner()

	results, err := runner.ValidateFiles(ctx, paths, nil)
	if err != nil {
		return err
	}
	for _, res := range results {
		rep.File(res)
	}
	if err := rep.Results(results); err != nil {
		return err
	}

	if a.cfg.General.Watch {
		return a.watchLoop(ctx, runner, rep, paths)
	}
	if !report.Summarize(results).Passed() {
		return errValidationFailed
	}
	return nil
}

// watchLoop re-validates files as they change until ctx is cancelled.
func (a *app) watchLoop(ctx context.Context, runner *lint.Runner, rep *report.Reporter, paths []string) error {
	batches := make(chan []watch.Change, 16)
	w, err := watch.New(paths, func(changes []watch.Change) {
		select {
		case batches <- changes:
		case <-ctx.Done():
		}
	}, watch.Options{
		Ignore: a.cfg.Scan.Exclude,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	interval := time.Duration(a.cfg.General.WatchInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Fprintf(a.stderr, "Watching %d path(s) for changes. Press Ctrl+C to stop.\n", len(paths))
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.stderr, "Stopped watching.")
			return nil
		case <-ticker.C:
			a.logger.Debug("watching", "paths", w.WatchList())
		case changes := <-batches:
			if err := a.revalidate(ctx, runner, rep, watch.Dedupe(changes)); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				a.logger.Warn("re-validation failed", "error", err)
			}
		}
	}
}

func (a *app) revalidate(ctx context.Context, runner *lint.Runner, rep *report.Reporter, changes []watch.Change) error {
	var changed []string
	for _, c := range changes {
		if c.Op == watch.OpRemove || c.Op == watch.OpRename {
			if _, err := os.Stat(c.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(a.stdout, "%s removed\n", c.Path)
				continue
			}
		}
		changed = append(changed, c.Path)
	}
	if len(changed) == 0 {
		return nil
	}

	fmt.Fprintf(a.stdout, "\n[%s] %d file(s) changed\n", time.Now().Format("15:04:05"), len(changed))
	results, err := runner.ValidateFiles(ctx, changed, nil)
	if err != nil {
		return err
	}
	for _, res := range results {
		rep.File(res)
	}
	return rep.Results(results)
}
