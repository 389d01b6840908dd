// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders validation results for people and machines.
//
// The text renderer prints one status line per file followed by its issues,
// with optional source context around each issue. The JSON renderer emits a
// single document with every result and a summary, suitable for CI.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/rules"
)

// Format selects the renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat accepts "text" or "json", case-insensitively. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w %q (want text or json)", ErrUnknownFormat, s)
	}
}

// Options configures a Reporter.
type Options struct {
	Format Format

	// Color enables ANSI styling in text output.
	Color bool

	// ContextLines is the number of source lines shown above and below
	// each issue. Zero disables code context.
	ContextLines int

	// Verbose adds step details and durations.
	Verbose bool

	// BaseDir, when set, shortens paths under it to relative form.
	BaseDir string
}

// Summary totals a set of results.
type Summary struct {
	Total    int           `json:"total"`
	Valid    int           `json:"valid"`
	Invalid  int           `json:"invalid"`
	Skipped  int           `json:"skipped"`
	Errored  int           `json:"errored"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Cached   int           `json:"cached"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether no file was invalid or errored.
func (s Summary) Passed() bool {
	return s.Invalid == 0 && s.Errored == 0
}

// Summarize totals results.
func Summarize(results []*datatypes.Result) Summary {
	var s Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Total++
		switch r.Status {
		case datatypes.StatusValid:
			s.Valid++
		case datatypes.StatusSkipped:
			s.Skipped++
		case datatypes.StatusError:
			s.Errored++
		default:
			s.Invalid++
		}
		s.Errors += len(r.Errors)
		s.Warnings += len(r.Warnings)
		if r.Cached {
			s.Cached++
		}
		s.Duration += r.Duration
	}
	return s
}

// Document is the JSON output for a validate run.
type Document struct {
	Results []*datatypes.Result `json:"results"`
	Summary Summary             `json:"summary"`
}

// Reporter writes results to an output stream.
//
// Thread Safety: File and Results may be called from several goroutines;
// writes are serialized.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	opts   Options
	styles Styles

	// readFile loads sources for code context.
	readFile func(string) ([]byte, error)
	sources  map[string][]string
}

// New creates a reporter writing to w.
func New(w io.Writer, opts Options) *Reporter {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	return &Reporter{
		w:        w,
		opts:     opts,
		styles:   NewStyles(w, opts.Color),
		readFile: os.ReadFile,
		sources:  make(map[string][]string),
	}
}

// Format returns the configured output format.
func (r *Reporter) Format() Format {
	return r.opts.Format
}

// File renders one result as it completes. JSON output is written only by
// Results, so File is a no-op in JSON mode.
func (r *Reporter) File(res *datatypes.Result) {
	if res == nil || r.opts.Format == FormatJSON {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	r.writeFile(&b, res)
	_, _ = io.WriteString(r.w, b.String())
}

// Results finishes a run. Text output gets a summary line; JSON output
// gets the whole document.
func (r *Reporter) Results(results []*datatypes.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := Summarize(results)
	if r.opts.Format == FormatJSON {
		if results == nil {
			results = []*datatypes.Result{}
		}
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(Document{Results: results, Summary: sum})
	}

	if sum.Total <= 1 && !r.opts.Verbose {
		return nil
	}
	_, err := io.WriteString(r.w, r.summaryLine(sum)+"\n")
	return err
}

func (r *Reporter) summaryLine(sum Summary) string {
	st := r.styles
	parts := []string{
		fmt.Sprintf("%d checked", sum.Total),
		st.Valid.Render(fmt.Sprintf("%d valid", sum.Valid)),
	}
	if sum.Invalid > 0 {
		parts = append(parts, st.Invalid.Render(fmt.Sprintf("%d invalid", sum.Invalid)))
	}
	if sum.Errored > 0 {
		parts = append(parts, st.Invalid.Render(fmt.Sprintf("%d errored", sum.Errored)))
	}
	if sum.Skipped > 0 {
		parts = append(parts, st.Warning.Render(fmt.Sprintf("%d skipped", sum.Skipped)))
	}
	if sum.Cached > 0 {
		parts = append(parts, st.Muted.Render(fmt.Sprintf("%d cached", sum.Cached)))
	}
	icon := st.Valid.Render(IconValid)
	if !sum.Passed() {
		icon = st.Invalid.Render(IconInvalid)
	}
	return "\n" + icon + " " + strings.Join(parts, ", ")
}

// =============================================================================
// Per-file rendering
// =============================================================================

func (r *Reporter) writeFile(b *strings.Builder, res *datatypes.Result) {
	st := r.styles
	path := r.displayPath(res.Path)

	var icon, label string
	switch res.Status {
	case datatypes.StatusValid:
		icon, label = st.Valid.Render(IconValid), st.Valid.Render("valid")
	case datatypes.StatusSkipped:
		icon, label = st.Warning.Render(IconSkipped), st.Warning.Render("skipped")
	case datatypes.StatusError:
		icon, label = st.Invalid.Render(IconInvalid), st.Invalid.Render("error")
	default:
		icon, label = st.Invalid.Render(IconInvalid), st.Invalid.Render("invalid")
	}

	fmt.Fprintf(b, "%s %s %s", icon, st.Path.Render(path), label)
	if res.FileType != "" {
		b.WriteString(st.Muted.Render(" (" + res.FileType + ")"))
	}
	if res.Cached {
		b.WriteString(st.Muted.Render(" [cached]"))
	}
	if r.opts.Verbose && res.Duration > 0 {
		b.WriteString(st.Muted.Render(" " + res.Duration.Round(time.Millisecond).String()))
	}
	b.WriteString("\n")

	if res.Message != "" && (!res.Valid() || r.opts.Verbose) {
		fmt.Fprintf(b, "   %s %s\n", st.Muted.Render(IconBar), res.Message)
	}

	if r.opts.Verbose {
		for _, s := range res.Steps {
			r.writeStep(b, s)
		}
	}

	for _, is := range res.AllIssues() {
		r.writeIssue(b, res.Path, is)
	}
}

func (r *Reporter) writeStep(b *strings.Builder, s datatypes.StepOutcome) {
	st := r.styles
	var mark string
	switch {
	case s.Skipped:
		mark = st.Warning.Render(IconSkipped)
	case s.Passed:
		mark = st.Valid.Render(IconValid)
	case s.Advisory:
		mark = st.Warning.Render(IconWarning)
	default:
		mark = st.Invalid.Render(IconInvalid)
	}
	line := fmt.Sprintf("   %s %s", mark, s.Name)
	if s.Tool != "" && s.Tool != s.Name {
		line += st.Muted.Render(" (" + s.Tool + ")")
	}
	if s.Reason != "" {
		line += st.Muted.Render(": " + s.Reason)
	}
	b.WriteString(line + "\n")
}

func (r *Reporter) writeIssue(b *strings.Builder, path string, is datatypes.Issue) {
	st := r.styles

	var icon string
	var sev lipgloss.Style
	switch is.Severity {
	case datatypes.SeverityError:
		icon, sev = IconInvalid, st.Invalid
	case datatypes.SeverityWarning:
		icon, sev = IconWarning, st.Warning
	default:
		icon, sev = IconInfo, st.Info
	}

	loc := ""
	if is.Line > 0 {
		loc = fmt.Sprintf("%d", is.Line)
		if is.Column > 0 {
			loc += fmt.Sprintf(":%d", is.Column)
		}
		loc = st.Muted.Render(loc) + " "
	}
	rule := ""
	if is.Rule != "" {
		rule = st.Muted.Render(" [" + is.Rule + "]")
	}
	fmt.Fprintf(b, "   %s %s%s%s\n", sev.Render(icon), loc, sev.Render(is.Message), rule)

	file := is.File
	if file == "" {
		file = path
	}
	if r.opts.ContextLines > 0 && is.Line > 0 {
		r.writeContext(b, file, is.Line, is.Column)
	}

	suggestion := is.Suggestion
	if suggestion == "" && is.Rule != "" {
		if rule, err := rules.Find(is.Rule); err == nil && len(rule.CommonFixes) > 0 {
			suggestion = rule.CommonFixes[0]
		}
	}
	if suggestion != "" {
		fmt.Fprintf(b, "     %s %s\n", st.Suggest.Render("Suggestion:"), suggestion)
	}
}

// writeContext prints ContextLines lines around line, marking the issue
// line and column.
func (r *Reporter) writeContext(b *strings.Builder, file string, line, col int) {
	lines := r.source(file)
	if len(lines) == 0 || line > len(lines) {
		return
	}
	st := r.styles
	start := max(1, line-r.opts.ContextLines)
	end := min(len(lines), line+r.opts.ContextLines)

	for n := start; n <= end; n++ {
		text := strings.TrimRight(lines[n-1], "\r")
		num := fmt.Sprintf("%5d", n)
		if n == line {
			fmt.Fprintf(b, "%s %s %s\n", st.ErrorLine.Render(num), st.Invalid.Render(IconBar), text)
			if col > 0 {
				b.WriteString(strings.Repeat(" ", 8+col-1) + st.Caret.Render("^") + "\n")
			}
			continue
		}
		fmt.Fprintf(b, "%s %s %s\n", st.LineNum.Render(num), st.Muted.Render(IconBar), text)
	}
}

func (r *Reporter) source(file string) []string {
	if lines, ok := r.sources[file]; ok {
		return lines
	}
	data, err := r.readFile(file)
	if err != nil {
		r.sources[file] = nil
		return nil
	}
	lines := strings.Split(string(data), "\n")
	r.sources[file] = lines
	return lines
}

func (r *Reporter) displayPath(path string) string {
	if r.opts.BaseDir == "" {
		return path
	}
	rel, err := filepath.Rel(r.opts.BaseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
