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
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/report"
	"github.com/A5873/synx/services/synx/scan"
	"github.com/A5873/synx/services/synx/tui"
)

type scanFlags struct {
	exclude     []string
	interactive bool
	upload      string
	credentials string
	contextLns  int
}

func newScanCmd(a *app) *cobra.Command {
	var sf scanFlags
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Validate every file under a directory",
		Long: `scan walks a directory, skipping hidden and dependency directories
and anything matching --exclude, and validates each file in parallel.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return a.runScan(cmd, dir, sf)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&sf.exclude, "exclude", "e", nil, "glob pattern to exclude (repeatable)")
	f.Int("workers", 0, "number of parallel validations (default: CPU count)")
	f.BoolVarP(&sf.interactive, "interactive", "i", false, "review issues in an interactive viewer")
	f.StringVar(&sf.upload, "upload", "", "upload the JSON report to gs://bucket/object")
	f.StringVar(&sf.credentials, "credentials", "", "service account key file for --upload")
	f.IntVar(&sf.contextLns, "context", 2, "source lines shown around each issue (0 disables)")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, dir string, sf scanFlags) error {
	ctx := cmd.Context()
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	rep, err := a.reporter(sf.contextLns)
	if err != nil {
		return err
	}
	runner := a.newRunner()

	exclude := append(append([]string{}, a.cfg.Scan.Exclude...), sf.exclude...)
	opts := scan.Options{Exclude: exclude}
	if a.cfg.General.Verbose && rep.Format() == report.FormatText {
		opts.Progress = func(done, total int, res *datatypes.Result) {
			fmt.Fprintf(a.stderr, "\r[%d/%d] %s", done, total, filepath.Base(res.Path))
			if done == total {
				fmt.Fprintln(a.stderr)
			}
		}
	}

	a.logger.Info("scan started", "root", root, "workers", runner.Workers())
	res, err := scan.Scan(ctx, runner, root, opts)
	if err != nil {
		return err
	}
	a.logger.Info("scan finished", "root", root, "files", res.Total, "duration", res.Duration)

	if sf.interactive {
		if err := a.review(cmd, res, sf); err != nil {
			return err
		}
	} else if err := rep.Scan(res); err != nil {
		return err
	}

	if sf.upload != "" {
		if err := a.uploadScan(cmd, res, sf); err != nil {
			return err
		}
	}
	if !res.Passed() {
		return errValidationFailed
	}
	return nil
}

// review opens the issue viewer and prints the marks made in it.
func (a *app) review(cmd *cobra.Command, res *scan.Result, sf scanFlags) error {
	opts := tui.DefaultOptions()
	opts.BaseDir = res.Root
	if sf.contextLns > 0 {
		opts.ContextLines = sf.contextLns
	}
	decisions, err := tui.Run(cmd.Context(), res.Results, opts)
	if err != nil {
		return err
	}
	for _, d := range decisions {
		rel, relErr := filepath.Rel(res.Root, d.Path)
		if relErr != nil {
			rel = d.Path
		}
		issue := d.Issue
		issue.File = rel
		fmt.Fprintf(a.stdout, "%-10s %s %s\n", d.Action, issue.Location(), issue.Message)
	}
	return nil
}

// uploadScan writes the JSON scan report to Cloud Storage.
func (a *app) uploadScan(cmd *cobra.Command, res *scan.Result, sf scanFlags) error {
	bucket, object, err := report.ParseGCSURL(sf.upload)
	if err != nil {
		return err
	}
	if object == "" || strings.HasSuffix(object, "/") {
		object += fmt.Sprintf("scan-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding scan report: %w", err)
	}

	ctx := cmd.Context()
	up, err := report.NewUploader(ctx, bucket, sf.credentials)
	if err != nil {
		return err
	}
	defer up.Close()

	url, err := up.Upload(ctx, object, "application/json", buf.Bytes())
	if err != nil {
		return err
	}
	a.logger.Info("scan report uploaded", "url", url)
	fmt.Fprintf(a.stderr, "Report uploaded to %s\n", url)
	return nil
}
