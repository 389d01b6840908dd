// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan validates every file under a directory.
//
// The walk skips hidden directories and dependency or build directories
// (node_modules, vendor, target, __pycache__). Files and directories matching
// an exclude pattern are reported as skipped without being validated.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/A5873/synx/services/synx/datatypes"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"__pycache__":  true,
}

// SkipDir reports whether a directory name is always skipped.
func SkipDir(name string) bool {
	return skippedDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// BatchValidator validates many files at once. *lint.Runner implements it.
type BatchValidator interface {
	ValidateFiles(ctx context.Context, paths []string, progress func(*datatypes.Result)) ([]*datatypes.Result, error)
}

// Progress is called after each file with the number finished so far.
type Progress func(done, total int, res *datatypes.Result)

// Options configures Scan.
type Options struct {
	// Exclude holds glob patterns relative to the root.
	Exclude []string

	Progress Progress
}

// TypeResult aggregates results for one file type.
type TypeResult struct {
	Total   int      `json:"total"`
	Valid   int      `json:"valid"`
	Invalid []string `json:"invalid,omitempty"`
}

// Result is the outcome of one scan.
type Result struct {
	Root  string `json:"root"`
	Total int    `json:"total"`
	Valid int    `json:"valid"`

	Invalid []string `json:"invalid,omitempty"`

	// Skipped lists excluded files and directories. They were not validated.
	Skipped []string `json:"skipped,omitempty"`

	// Errored lists files that could not be validated at all.
	Errored []string `json:"errored,omitempty"`

	// ByType is keyed by file type display name, e.g. "Python".
	ByType map[string]*TypeResult `json:"by_type"`

	Results  []*datatypes.Result `json:"results,omitempty"`
	Duration time.Duration       `json:"duration"`
}

// Passed reports whether every validated file passed.
func (r *Result) Passed() bool {
	return len(r.Invalid) == 0 && len(r.Errored) == 0
}

// Types returns the ByType keys sorted.
func (r *Result) Types() []string {
	out := make([]string, 0, len(r.ByType))
	for k := range r.ByType {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Collect walks root and splits its files into those to validate and those
// excluded.
//
// Description:
//
//	Skips hidden and dependency directories entirely. An excluded
//	directory is listed once in skipped and not descended into.
//
// Inputs:
//
//	root - Directory to walk
//	exclude - Glob patterns relative to root
//
// Outputs:
//
//	files - Files to validate, in lexical order
//	skipped - Excluded paths, in lexical order
//	error - Non-nil when root is not a readable directory
func Collect(root string, exclude []string) (files, skipped []string, err error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("scanning %s: %w", root, ErrNotDirectory)
	}

	m := NewMatcher(exclude)
	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if p == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			rel = p
		}

		if d.IsDir() {
			if SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if m.Match(rel) {
				skipped = append(skipped, p)
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if m.Match(rel) {
			skipped = append(skipped, p)
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, skipped, nil
}

// Scan validates every file under root.
//
// Description:
//
//	Collects files, validates them through v (which bounds parallelism),
//	and aggregates results by status and file type. Files whose status is
//	skipped (no validator available) count as valid.
//
// Inputs:
//
//	ctx - Context for cancellation
//	v - Validator, normally *lint.Runner
//	root - Directory to scan
//	opts - Exclude patterns and progress callback
//
// Outputs:
//
//	*Result - Aggregated result with sorted lists
//	error - Walk errors or context cancellation
//
// Thread Safety: Safe for concurrent use if v is.
func Scan(ctx context.Context, v BatchValidator, root string, opts Options) (*Result, error) {
	start := time.Now()
	files, skipped, err := Collect(root, opts.Exclude)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		done int
	)
	progress := func(res *datatypes.Result) {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		opts.Progress(done, len(files), res)
	}

	results, err := v.ValidateFiles(ctx, files, progress)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Root:    root,
		Skipped: skipped,
		ByType:  make(map[string]*TypeResult),
		Results: results,
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		out.Total++

		tr := out.ByType[res.FileType]
		if tr == nil {
			tr = &TypeResult{}
			out.ByType[res.FileType] = tr
		}
		tr.Total++

		switch {
		case res.Status == datatypes.StatusError:
			out.Errored = append(out.Errored, res.Path)
			tr.Invalid = append(tr.Invalid, res.Path)
		case res.Valid():
			out.Valid++
			tr.Valid++
		default:
			out.Invalid = append(out.Invalid, res.Path)
			tr.Invalid = append(tr.Invalid, res.Path)
		}
	}

	sort.Strings(out.Invalid)
	sort.Strings(out.Skipped)
	sort.Strings(out.Errored)
	out.Duration = time.Since(start)
	return out, nil
}
