// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the result types shared by the validators, the
// cache, the reporters and the daemon.
package datatypes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity is the severity of an Issue. Errors make a file invalid.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns "info", "warning" or "error".
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SeverityFromString parses the severity words used by common tools.
// Unknown values map to SeverityWarning.
func SeverityFromString(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err", "fatal", "critical", "e", "f":
		return SeverityError
	case "warning", "warn", "w":
		return SeverityWarning
	case "info", "note", "style", "hint", "convention", "refactor", "c", "r", "i":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// =============================================================================
// ISSUE
// =============================================================================

// Issue is one finding from a checker. Line and Column are 1-based; zero
// means the tool did not report a position.
type Issue struct {
	File       string   `json:"file"`
	Line       int      `json:"line,omitempty"`
	Column     int      `json:"column,omitempty"`
	EndLine    int      `json:"end_line,omitempty"`
	EndColumn  int      `json:"end_column,omitempty"`
	Rule       string   `json:"rule,omitempty"`
	RuleURL    string   `json:"rule_url,omitempty"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`

	// Source names the tool or built-in checker that reported the issue.
	Source string `json:"source,omitempty"`
}

// Location returns file:line:col, omitting unknown parts.
func (i Issue) Location() string {
	var b strings.Builder
	b.WriteString(i.File)
	if i.Line > 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(i.Line))
		if i.Column > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(i.Column))
		}
	}
	return b.String()
}

// SortIssues orders issues by line, column, then rule.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		if issues[a].Line != issues[b].Line {
			return issues[a].Line < issues[b].Line
		}
		if issues[a].Column != issues[b].Column {
			return issues[a].Column < issues[b].Column
		}
		return issues[a].Rule < issues[b].Rule
	})
}

// =============================================================================
// STATUS
// =============================================================================

// Status is the overall outcome for one file.
type Status string

const (
	// StatusValid means every fatal check passed.
	StatusValid Status = "valid"

	// StatusInvalid means at least one fatal check failed.
	StatusInvalid Status = "invalid"

	// StatusSkipped means nothing could check the file. Only produced
	// outside strict mode.
	StatusSkipped Status = "skipped"

	// StatusError means the file could not be validated at all
	// (unreadable, timed out, cancelled).
	StatusError Status = "error"
)

// Passing reports whether the status counts as success for the exit code.
func (s Status) Passing() bool {
	return s == StatusValid || s == StatusSkipped
}

// =============================================================================
// STEPS
// =============================================================================

// StepKind classifies a validation step.
type StepKind string

const (
	KindSyntax StepKind = "syntax"
	KindType   StepKind = "type"
	KindLint   StepKind = "lint"
	KindFormat StepKind = "format"
	KindMemory StepKind = "memory"
	KindTest   StepKind = "test"
	KindStyle  StepKind = "style"
	KindCustom StepKind = "custom"
)

// StepOutcome records what happened to one step of a pipeline.
type StepOutcome struct {
	Name     string   `json:"name"`
	Tool     string   `json:"tool,omitempty"`
	Kind     StepKind `json:"kind"`
	Passed   bool     `json:"passed"`
	Skipped  bool     `json:"skipped,omitempty"`
	Advisory bool     `json:"advisory,omitempty"`

	// Reason explains a skip or failure in one line.
	Reason string `json:"reason,omitempty"`

	ExitCode int           `json:"exit_code,omitempty"`
	Duration time.Duration `json:"duration"`

	// Output is the tool output, truncated.
	Output string `json:"output,omitempty"`
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the validation outcome for one file.
type Result struct {
	Path     string `json:"path"`
	Language string `json:"language"`

	// FileType is the display name, e.g. "Python" or "Unknown (xyz)".
	FileType string `json:"file_type"`

	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
	Infos    []Issue `json:"infos,omitempty"`

	Steps []StepOutcome `json:"steps,omitempty"`

	Strict      bool          `json:"strict"`
	Cached      bool          `json:"cached"`
	ContentHash string        `json:"content_hash,omitempty"`
	Duration    time.Duration `json:"duration"`
	CheckedAt   time.Time     `json:"checked_at"`

	// ConfigHash fingerprints the configuration the result was produced under.
	ConfigHash string `json:"config_hash,omitempty"`
}

// Valid reports whether the file passed.
func (r *Result) Valid() bool {
	return r.Status.Passing()
}

// AddIssues files each issue under its severity.
func (r *Result) AddIssues(issues ...Issue) {
	for _, is := range issues {
		switch is.Severity {
		case SeverityError:
			r.Errors = append(r.Errors, is)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, is)
		default:
			r.Infos = append(r.Infos, is)
		}
	}
}

// AllIssues returns errors, warnings and infos, each group sorted by position.
func (r *Result) AllIssues() []Issue {
	out := make([]Issue, 0, r.IssueCount())
	for _, group := range [][]Issue{r.Errors, r.Warnings, r.Infos} {
		g := append([]Issue(nil), group...)
		SortIssues(g)
		out = append(out, g...)
	}
	return out
}

// IssueCount returns the number of issues of any severity.
func (r *Result) IssueCount() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Infos)
}

// HasIssues reports whether any issue was recorded.
func (r *Result) HasIssues() bool {
	return r.IssueCount() > 0
}

// Step returns the outcome of the named step, if it ran.
func (r *Result) Step(name string) (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}
