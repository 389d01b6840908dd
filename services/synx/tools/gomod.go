// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ErrNoGoMod is returned when no go.mod exists at or above a directory.
var ErrNoGoMod = errors.New("no go.mod found")

// FindGoMod walks up from dir to the nearest go.mod.
func FindGoMod(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, "go.mod")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNoGoMod
		}
		abs = parent
	}
}

// GoRequirement returns the go requirement tightened to the go directive of
// the module containing dir.
//
// Description:
//
//	go vet and go test run inside the file's module, so the installed
//	toolchain must satisfy that module's go directive. Falls back to the
//	catalogue requirement when there is no go.mod or it has no directive.
//
// Inputs:
//
//	dir - Directory inside the module
//
// Outputs:
//
//	Requirement - The go requirement
//	error - Non-nil only when go.mod exists but cannot be read or parsed
func GoRequirement(dir string) (Requirement, error) {
	req, _ := Lookup("go")

	path, err := FindGoMod(dir)
	if errors.Is(err, ErrNoGoMod) {
		return req, nil
	}
	if err != nil {
		return req, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("reading go.mod: %w", err)
	}
	f, err := modfile.ParseLax(path, content, nil)
	if err != nil {
		return req, fmt.Errorf("parsing go.mod: %w", err)
	}
	if f.Go != nil && f.Go.Version != "" && !AtLeast(req.MinVersion, f.Go.Version) {
		req.MinVersion = f.Go.Version
	}
	return req, nil
}
