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
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/A5873/synx/services/synx/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect configuration files",
	}

	var (
		force       bool
		interactive bool
		path        string
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigInit(cmd, path, force, interactive)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	initCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "answer a few questions before writing")
	initCmd.Flags().StringVarP(&path, "output", "o", "", "file to write (default: user config path)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			if len(a.cfg.LoadedPaths) == 0 {
				fmt.Fprintln(a.stdout, "# built-in defaults")
			}
			for _, p := range a.cfg.LoadedPaths {
				fmt.Fprintf(a.stdout, "# loaded from %s\n", p)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file locations in load order",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := a.baseLoad
			user := b.UserPath
			if user == "" {
				p, err := config.UserConfigPath()
				if err != nil {
					return err
				}
				user = p
			}
			loaded := make(map[string]bool, len(a.cfg.LoadedPaths))
			for _, p := range a.cfg.LoadedPaths {
				loaded[p] = true
			}
			rows := [][2]string{
				{"system", firstNonEmpty(b.SystemPath, config.SystemConfigPath)},
				{"user", user},
				{"project", firstNonEmpty(b.ProjectPath, config.ProjectFileName)},
			}
			if a.flags.configPath != "" {
				rows = append(rows, [2]string{"explicit", a.flags.configPath})
			}
			for _, r := range rows {
				mark := ""
				if loaded[r[1]] {
					mark = " (loaded)"
				}
				shown := r[1]
				if abs, err := filepath.Abs(shown); err == nil {
					shown = abs
				}
				fmt.Fprintf(a.stdout, "%-8s %s%s\n", r[0], shown, mark)
			}
			for _, p := range a.cfg.LegacyPaths {
				if abs, err := filepath.Abs(p); err == nil {
					p = abs
				}
				fmt.Fprintf(a.stdout, "%-8s %s (not read; convert to YAML)\n", "legacy", p)
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}

// runConfigInit writes a default config to path, or the user config path
// when empty.
func (a *app) runConfigInit(cmd *cobra.Command, path string, force, interactive bool) error {
	if !interactive {
		written, err := config.InitDefault(path, force)
		if errors.Is(err, os.ErrExist) {
			return &exitError{code: 1, err: fmt.Errorf("%s already exists (use --force to overwrite)", written)}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Wrote default configuration to %s\n", written)
		return nil
	}

	if path == "" {
		p, err := config.UserConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return &exitError{code: 1, err: fmt.Errorf("%s already exists (use --force to overwrite)", path)}
		}
	}

	cfg := config.DefaultConfig()
	if err := a.askConfig(cmd.Context(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Wrote configuration to %s\n", path)
	return nil
}

// excludeChoices are offered by the interactive config form.
var excludeChoices = []string{
	"node_modules/**",
	"vendor/**",
	"target/**",
	"build/**",
	"dist/**",
	"__pycache__/**",
	"*.min.js",
}

// askConfig fills cfg from an interactive form.
func (a *app) askConfig(ctx context.Context, cfg *config.Config) error {
	timeout := strconv.Itoa(cfg.General.Timeout)
	level := "info"
	exclude := []string{"node_modules/**", "vendor/**"}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Treat warnings as errors?").
				Value(&cfg.General.Strict),
			huh.NewInput().
				Title("Per-tool timeout in seconds").
				Value(&timeout).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return errors.New("enter a positive number")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&level),
			huh.NewMultiSelect[string]().
				Title("Exclude from scans").
				Options(huh.NewOptions(excludeChoices...)...).
				Value(&exclude),
		),
	).WithInput(a.stdin).WithOutput(a.stdout)

	if err := form.RunWithContext(ctx); err != nil {
		return fmt.Errorf("config form: %w", err)
	}

	cfg.General.Timeout, _ = strconv.Atoi(timeout)
	cfg.Logging.Level = level
	cfg.Scan.Exclude = exclude
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
