// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "synx.pid")

	pf, err := AcquirePIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, pf.Path())

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, ProcessAlive(pid))

	_, err = AcquirePIDFile(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Contains(t, err.Error(), "pid")

	require.NoError(t, pf.Release())
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, pf.Release())

	again, err := AcquirePIDFile(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestPIDFile_StaleFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synx.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	pf, err := AcquirePIDFile(path)
	require.NoError(t, err)
	defer pf.Release()

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPID(filepath.Join(dir, "missing.pid"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("not-a-pid"), 0o644))
	_, err = ReadPID(bad)
	assert.Error(t, err)
}

func TestProcessAlive(t *testing.T) {
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-1))
	assert.True(t, ProcessAlive(os.Getpid()))
}

func TestPIDFile_NilRelease(t *testing.T) {
	var pf *PIDFile
	assert.NoError(t, pf.Release())
}
