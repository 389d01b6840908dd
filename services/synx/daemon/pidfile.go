// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is returned when another daemon holds the PID file.
var ErrAlreadyRunning = errors.New("daemon already running")

// PIDFile is a locked file holding the daemon's process ID. The lock is
// held until Release, so a second daemon on the same file fails fast.
type PIDFile struct {
	path string
	f    *os.File
}

// AcquirePIDFile creates path, locks it and writes the current PID.
//
// Description:
//
//	Parent directories are created. If another process holds the lock the
//	returned error wraps ErrAlreadyRunning and names that process's PID.
//
// Outputs:
//
//	*PIDFile - Call Release on shutdown
//	error - ErrAlreadyRunning or an I/O error
func AcquirePIDFile(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating pid directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening pid file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		if errors.Is(err, errLocked) {
			if pid, rerr := ReadPID(path); rerr == nil {
				return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("locking pid file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncating pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("writing pid file: %w", err)
	}
	return &PIDFile{path: path, f: f}, nil
}

// Path returns the file location.
func (p *PIDFile) Path() string { return p.path }

// Release removes the file and drops the lock. Safe to call on nil.
func (p *PIDFile) Release() error {
	if p == nil || p.f == nil {
		return nil
	}
	rmErr := os.Remove(p.path)
	unlockFile(p.f)
	closeErr := p.f.Close()
	p.f = nil
	if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return rmErr
	}
	return closeErr
}

// ReadPID parses the PID stored in path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}
