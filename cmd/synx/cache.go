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
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/A5873/synx/services/synx/cache"
)

var errCacheDisabled = errors.New("cache is disabled in the configuration")

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the validation result cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and hit ratio",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireCache()
			if err != nil {
				return err
			}
			s := store.Stats()
			fmt.Fprintf(a.stdout, "Directory:      %s\n", s.Dir)
			fmt.Fprintf(a.stdout, "Entries:        %d\n", s.Entries)
			fmt.Fprintf(a.stdout, "Size:           %s\n", humanBytes(s.SizeBytes))
			fmt.Fprintf(a.stdout, "Avg validation: %s\n", time.Duration(s.AvgValidationMS*float64(time.Millisecond)).Round(time.Microsecond))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireCache()
			if err != nil {
				return err
			}
			n, _ := store.Len()
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Cleared %d cached result(s)\n", n)
			return nil
		},
	}

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Drop expired entries and enforce the size limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireCache()
			if err != nil {
				return err
			}
			rep, err := store.Optimize()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Removed %d expired and %d evicted entries, %d remaining\n",
				rep.Expired, rep.Evicted, rep.Remaining)
			return nil
		},
	}

	cmd.AddCommand(statsCmd, clearCmd, optimizeCmd)
	return cmd
}

// requireCache opens the cache or explains why it cannot.
func (a *app) requireCache() (*cache.Store, error) {
	if !a.cfg.Cache.Enabled {
		return nil, errCacheDisabled
	}
	opts, err := cache.OptionsFromConfig(a.cfg.Cache)
	if err != nil {
		return nil, err
	}
	opts.Logger = a.logger
	store, err := cache.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", opts.Dir, err)
	}
	a.store = store
	return store, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
