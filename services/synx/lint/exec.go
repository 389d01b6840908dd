// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Command is one process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Output is what a finished process produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (o Output) Combined() []byte {
	out := make([]byte, 0, len(o.Stdout)+len(o.Stderr)+1)
	out = append(out, o.Stdout...)
	if len(o.Stdout) > 0 && len(o.Stderr) > 0 && o.Stdout[len(o.Stdout)-1] != '\n' {
		out = append(out, '\n')
	}
	return append(out, o.Stderr...)
}

// Executor runs external tools. The runner only talks to tools through it.
type Executor interface {
	// LookPath resolves name in PATH. Returns ErrToolNotInstalled when absent.
	LookPath(name string) (string, error)

	// Run executes cmd. A non-zero exit is reported in Output.ExitCode, not
	// as an error. Errors are ErrToolTimeout, ErrToolFailed, or ctx.Err().
	Run(ctx context.Context, cmd Command) (Output, error)
}

// execExecutor runs tools with os/exec.
type execExecutor struct{}

// NewExecExecutor returns the process-spawning Executor.
func NewExecExecutor() Executor {
	return execExecutor{}
}

func (execExecutor) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", ErrToolNotInstalled
	}
	return p, nil
}

func (execExecutor) Run(ctx context.Context, c Command) (Output, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if cmdCtx.Err() == context.DeadlineExceeded {
		return out, NewToolError(c.Name, "", ErrToolTimeout).WithOutput(stderr.String())
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return out, NewToolError(c.Name, "", ErrToolNotInstalled)
		}
		return out, NewToolError(c.Name, "", ErrToolFailed).WithOutput(err.Error())
	}
	return out, nil
}
