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
	"errors"
	"fmt"
)

// Sentinel errors for the lint package.
var (
	// ErrToolNotInstalled indicates the tool binary was not found in PATH.
	ErrToolNotInstalled = errors.New("tool not installed")

	// ErrToolTimeout indicates a tool exceeded general.timeout.
	ErrToolTimeout = errors.New("tool timeout")

	// ErrToolFailed indicates the tool process could not be run.
	ErrToolFailed = errors.New("tool execution failed")

	// ErrParseOutput indicates a parser could not read the tool's output.
	ErrParseOutput = errors.New("failed to parse tool output")

	// ErrInvalidInput indicates invalid input to a runner function.
	ErrInvalidInput = errors.New("invalid input")
)

// ToolError wraps an error from one external tool with context.
//
// Thread Safety: Immutable after creation.
type ToolError struct {
	// Tool is the executable, e.g. "pylint".
	Tool string

	// Language is the language being validated.
	Language string

	Err error

	// Output holds the tool's stderr, if any.
	Output string
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s (%s): %v: %s", e.Tool, e.Language, e.Err, e.Output)
	}
	return fmt.Sprintf("%s (%s): %v", e.Tool, e.Language, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a ToolError.
func NewToolError(tool, language string, err error) *ToolError {
	return &ToolError{Tool: tool, Language: language, Err: err}
}

// WithOutput returns a copy of the error carrying output.
func (e *ToolError) WithOutput(output string) *ToolError {
	return &ToolError{
		Tool:     e.Tool,
		Language: e.Language,
		Err:      e.Err,
		Output:   output,
	}
}
