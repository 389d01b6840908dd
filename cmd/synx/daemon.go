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
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/daemon"
	"github.com/A5873/synx/services/synx/lint"
	"github.com/A5873/synx/services/synx/telemetry"
)

// defaultPIDFile is used when the configuration leaves pid_file empty.
func defaultPIDFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "synx", "daemon.pid")
}

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or manage the background validation daemon",
	}
	cmd.AddCommand(newDaemonRunCmd(a), newDaemonInstallCmd(a), newDaemonStatusCmd(a))
	return cmd
}

func newDaemonRunCmd(a *app) *cobra.Command {
	var (
		watchPaths []string
		listen     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := a.cfg.Daemon
			if len(watchPaths) > 0 {
				dc.WatchPaths = watchPaths
			}
			if cmd.Flags().Changed("listen") {
				dc.ListenAddr = listen
			}
			if dc.PIDFile == "" {
				dc.PIDFile = defaultPIDFile()
			}
			return a.runDaemon(cmd.Context(), dc)
		},
	}
	cmd.Flags().StringArrayVar(&watchPaths, "watch-path", nil, "directory to watch (repeatable, overrides config)")
	cmd.Flags().StringVar(&listen, "listen", "", "status API address; empty disables it")
	return cmd
}

// runDaemon wires telemetry, the cache, history and the runner into a
// daemon and blocks until ctx is cancelled.
func (a *app) runDaemon(ctx context.Context, dc config.DaemonConfig) error {
	level := logging.LevelInfo
	if dc.VerboseLogging {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  dc.LogDir,
		Service: "synx-daemon",
		JSON:    a.cfg.Logging.JSON,
		Output:  a.stderr,
	})
	_ = a.logger.Close()
	a.logger = logger

	reg := prometheus.NewRegistry()
	tcfg := telemetry.FromConfig(a.cfg.Telemetry, version)
	tcfg.Registerer = reg
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	runnerOpts := []lint.Option{lint.WithLogger(logger)}
	daemonOpts := []daemon.Option{daemon.WithLogger(logger), daemon.WithRegistry(reg)}
	if store := a.openCache(); store != nil {
		runnerOpts = append(runnerOpts, lint.WithCache(store))
		daemonOpts = append(daemonOpts, daemon.WithCache(store))
	}
	if dc.History.URL != "" {
		h, err := daemon.NewInfluxHistory(dc.History)
		if err != nil {
			return err
		}
		defer h.Close()
		daemonOpts = append(daemonOpts, daemon.WithHistory(h))
	}

	d, err := daemon.New(dc, lint.NewRunner(a.cfg, runnerOpts...), daemonOpts...)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

func newDaemonInstallCmd(a *app) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a systemd user unit or launchd agent for the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locating synx executable: %w", err)
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			wd, _ := os.Getwd()

			spec := daemon.ServiceSpec{
				Executable: exe,
				WorkingDir: wd,
				LogDir:     logging.ExpandPath(a.cfg.Daemon.LogDir),
			}
			if a.flags.configPath != "" {
				spec.ConfigPath, _ = filepath.Abs(a.flags.configPath)
			}

			path, content, err := daemon.ServiceFile(runtime.GOOS, home, spec)
			if err != nil {
				return err
			}
			if printOnly {
				fmt.Fprint(a.stdout, content)
				return nil
			}
			if err := daemon.InstallServiceFile(path, content); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Installed %s\n", path)
			switch runtime.GOOS {
			case "darwin":
				fmt.Fprintf(a.stdout, "Start it with: launchctl load %s\n", path)
			default:
				fmt.Fprintln(a.stdout, "Start it with: systemctl --user daemon-reload && systemctl --user enable --now synx")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the service file instead of installing it")
	return cmd
}

func newDaemonStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running and what it has seen",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := a.cfg.Daemon.PIDFile
			if pidPath == "" {
				pidPath = defaultPIDFile()
			}
			pid, err := daemon.ReadPID(logging.ExpandPath(pidPath))
			if err != nil || !daemon.ProcessAlive(pid) {
				fmt.Fprintln(a.stdout, "synx daemon is not running")
				return &exitError{code: 1}
			}
			fmt.Fprintf(a.stdout, "synx daemon is running (pid %d)\n", pid)

			if a.cfg.Daemon.ListenAddr == "" {
				return nil
			}
			ctx := cmd.Context()
			client := daemon.NewClient(a.cfg.Daemon.ListenAddr)
			health, err := client.Health(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				fmt.Fprintf(a.stdout, "status API unavailable: %v\n", err)
				return nil
			}
			stats, err := client.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Uptime:       %s\n", time.Duration(health.UptimeSeconds*float64(time.Second)).Round(time.Second))
			fmt.Fprintf(a.stdout, "Watching:     %v\n", health.WatchPaths)
			fmt.Fprintf(a.stdout, "Validations:  %d (%d passed, %d failed, %d errors)\n",
				stats.Validations, stats.Passed, stats.Failed, stats.Errors)
			fmt.Fprintf(a.stdout, "Tracked:      %d files\n", stats.TrackedFiles)
			fmt.Fprintf(a.stdout, "Events:       %d received, %d filtered, %d debounced\n",
				stats.EventsReceived, stats.EventsFiltered, stats.EventsDebounced)
			if stats.Validations > 0 {
				fmt.Fprintf(a.stdout, "Avg time:     %.1fms\n", stats.AvgValidationMS)
			}
			return nil
		},
	}
}
