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
	"strings"

	"github.com/A5873/synx/services/synx/datatypes"
)

// Argument placeholders expanded by the runner.
const (
	// PlaceholderFile is the file being validated. In InDir steps it is the
	// base name.
	PlaceholderFile = "{file}"

	// PlaceholderTmp is a scratch directory removed after the step.
	PlaceholderTmp = "{tmp}"
)

// When decides whether a step runs for the current mode.
type When int

const (
	// WhenAlways runs in every mode.
	WhenAlways When = iota

	// WhenStrict runs only in strict mode.
	WhenStrict

	// WhenStrictOrVerbose runs in strict or verbose mode.
	WhenStrictOrVerbose
)

// String returns the config-style name.
func (w When) String() string {
	switch w {
	case WhenStrict:
		return "strict"
	case WhenStrictOrVerbose:
		return "strict-or-verbose"
	default:
		return "always"
	}
}

// Active reports whether the step runs for the given mode.
func (w When) Active(strict, verbose bool) bool {
	switch w {
	case WhenStrict:
		return strict
	case WhenStrictOrVerbose:
		return strict || verbose
	default:
		return true
	}
}

// Stream selects which output a parser reads.
type Stream int

const (
	StreamBoth Stream = iota
	StreamStdout
	StreamStderr
)

// Step is one external tool invocation.
//
// Thread Safety: Treat as immutable after creation.
type Step struct {
	// Name identifies the step in results, e.g. "py_compile".
	Name string

	Kind datatypes.StepKind

	// Command is the executable, looked up in PATH.
	Command string

	// Args may contain PlaceholderFile and PlaceholderTmp. When no argument
	// contains PlaceholderFile and NoFile is false, the file is appended.
	Args []string

	When When

	// Required marks the step that decides whether the file could be
	// checked at all. Its absence leaves the file skipped.
	Required bool

	// Advisory steps only fail the file in strict mode.
	Advisory bool

	// NoFile runs the tool without a file argument (project-level tools).
	NoFile bool

	// InDir runs the tool in the file's directory.
	InDir bool

	// FailOnOutput fails the step when stdout is non-empty (gofmt -l/-d).
	FailOnOutput bool

	// AcceptExit lists non-zero exit codes that still count as success.
	AcceptExit []int

	// Parser names the output parser. Empty means "raw".
	Parser string

	Stream Stream

	// Fallback runs instead when Command is not installed.
	Fallback *Step
}

// Clone returns a deep copy.
func (s Step) Clone() Step {
	c := s
	c.Args = append([]string(nil), s.Args...)
	c.AcceptExit = append([]int(nil), s.AcceptExit...)
	if s.Fallback != nil {
		fb := s.Fallback.Clone()
		c.Fallback = &fb
	}
	return c
}

// CommandLine renders the step for display.
func (s Step) CommandLine() string {
	parts := append([]string{s.Command}, s.Args...)
	if !s.NoFile && !s.hasFilePlaceholder() {
		parts = append(parts, PlaceholderFile)
	}
	return strings.Join(parts, " ")
}

func (s Step) hasFilePlaceholder() bool {
	for _, a := range s.Args {
		if strings.Contains(a, PlaceholderFile) {
			return true
		}
	}
	return false
}

func (s Step) accepts(code int) bool {
	if code == 0 {
		return true
	}
	for _, c := range s.AcceptExit {
		if c == code {
			return true
		}
	}
	return false
}

// Pipeline is the ordered list of steps for one file type.
type Pipeline struct {
	Language string
	Steps    []Step
}

// Active returns the steps that run in the given mode.
func (p Pipeline) Active(strict, verbose bool) []Step {
	out := make([]Step, 0, len(p.Steps))
	for _, s := range p.Steps {
		if s.When.Active(strict, verbose) {
			out = append(out, s)
		}
	}
	return out
}

// Tools returns every executable the pipeline may run, fallbacks included.
func (p Pipeline) Tools() []string {
	seen := make(map[string]bool)
	var out []string
	var add func(s *Step)
	add = func(s *Step) {
		if s == nil {
			return
		}
		if !seen[s.Command] {
			seen[s.Command] = true
			out = append(out, s.Command)
		}
		add(s.Fallback)
	}
	for i := range p.Steps {
		add(&p.Steps[i])
	}
	return out
}
