// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/report"
	"github.com/A5873/synx/services/synx/rules"
)

// maxListed caps the file list; the window follows the selection.
const maxListed = 6

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(report.ColorAccent)
	statsStyle     = lipgloss.NewStyle().Foreground(report.ColorMuted)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(report.ColorValid)
	fileStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	errorStyle     = lipgloss.NewStyle().Foreground(report.ColorInvalid)
	warningStyle   = lipgloss.NewStyle().Foreground(report.ColorWarning)
	infoStyle      = lipgloss.NewStyle().Foreground(report.ColorInfo)
	lineNumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	focusLineStyle = lipgloss.NewStyle().Bold(true).Foreground(report.ColorInvalid)
	suggestStyle   = lipgloss.NewStyle().Bold(true).Foreground(report.ColorValid)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// =============================================================================
// Header and File List
// =============================================================================

func (m Model) renderHeader() string {
	title := fmt.Sprintf("Validation issues (%d files)", len(m.files))
	progress := fmt.Sprintf("  [file %d/%d, issue %d/%d]",
		m.currentFile+1, len(m.files),
		m.currentIssue+1, len(m.files[m.currentFile].issues))
	return titleStyle.Render(title) + statsStyle.Render(progress)
}

func (m Model) fileListHeight() int {
	return min(len(m.files), maxListed)
}

func (m Model) renderFileList() string {
	start := 0
	if m.currentFile >= maxListed {
		start = m.currentFile - maxListed + 1
	}
	end := min(len(m.files), start+maxListed)

	var b strings.Builder
	for i := start; i < end; i++ {
		f := m.files[i]
		counts := fmt.Sprintf("%d errors, %d warnings", len(f.result.Errors), len(f.result.Warnings))
		line := fmt.Sprintf("%s  %s", m.displayPath(f.result.Path), statsStyle.Render(counts))
		if i == m.currentFile {
			b.WriteString(selectedStyle.Render("▸ ") + selectedStyle.Render(m.displayPath(f.result.Path)) + "  " + statsStyle.Render(counts))
		} else {
			b.WriteString("  " + fileStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Issue Detail
// =============================================================================

func (m Model) renderDetail() string {
	res, is, ok := m.Current()
	if !ok {
		return ""
	}

	var b strings.Builder
	var style lipgloss.Style
	switch is.Severity {
	case datatypes.SeverityError:
		style = errorStyle
	case datatypes.SeverityWarning:
		style = warningStyle
	default:
		style = infoStyle
	}

	header := strings.ToUpper(is.Severity.String())
	if is.Rule != "" {
		header += " " + is.Rule
	}
	b.WriteString(style.Bold(true).Render(header))
	if is.Line > 0 {
		b.WriteString(statsStyle.Render("  " + m.displayPath(is.Location())))
	}
	if a := m.marks[markKey(m.currentFile, m.currentIssue)]; a != ActionNone {
		b.WriteString(selectedStyle.Render("  [" + a.String() + "]"))
	}
	b.WriteString("\n")
	b.WriteString(style.Render(is.Message))
	b.WriteString("\n")
	if is.Source != "" {
		b.WriteString(statsStyle.Render("reported by " + is.Source))
		b.WriteString("\n")
	}

	if m.showContext && is.Line > 0 {
		file := is.File
		if file == "" {
			file = res.Path
		}
		if ctx := m.renderContext(file, is.Line, is.Column); ctx != "" {
			b.WriteString("\n")
			b.WriteString(ctx)
		}
	}

	suggestion := is.Suggestion
	var rule *rules.Rule
	if is.Rule != "" {
		if r, err := rules.Find(is.Rule); err == nil {
			rule = &r
			if suggestion == "" && len(r.CommonFixes) > 0 {
				suggestion = r.CommonFixes[0]
			}
		}
	}
	if suggestion != "" {
		b.WriteString("\n")
		b.WriteString(suggestStyle.Render("Suggestion: ") + suggestion)
		b.WriteString("\n")
	}
	if rule != nil {
		b.WriteString("\n")
		b.WriteString(statsStyle.Render(fmt.Sprintf("%s: %s (synx explain %s)", rule.Code, rule.Name, rule.Code)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderContext(file string, line, col int) string {
	lines := m.source(file)
	if len(lines) == 0 || line > len(lines) {
		return ""
	}
	n := max(0, m.opts.ContextLines)
	start := max(1, line-n)
	end := min(len(lines), line+n)

	var b strings.Builder
	for i := start; i <= end; i++ {
		text := strings.TrimRight(lines[i-1], "\r")
		num := fmt.Sprintf("%5d", i)
		if i == line {
			b.WriteString(focusLineStyle.Render(num+" │ ") + text + "\n")
			if col > 0 {
				b.WriteString(strings.Repeat(" ", 8+col-1) + focusLineStyle.Render("^") + "\n")
			}
			continue
		}
		b.WriteString(lineNumStyle.Render(num+" │ ") + text + "\n")
	}
	return b.String()
}

func (m Model) source(file string) []string {
	if lines, ok := m.sources[file]; ok {
		return lines
	}
	data, err := m.opts.ReadFile(file)
	if err != nil {
		m.sources[file] = nil
		return nil
	}
	lines := strings.Split(string(data), "\n")
	m.sources[file] = lines
	return lines
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	s := m.Stats()
	stats := fmt.Sprintf("%d issues: %d to fix, %d ignored, %d deferred, %d pending",
		s.Total, s.Fix, s.Ignore, s.Defer, s.Pending)
	return footerStyle.Render(stats) + "\n" + m.help.View(m.keys)
}

func (m Model) displayPath(path string) string {
	if m.opts.BaseDir == "" {
		return path
	}
	rel, err := filepath.Rel(m.opts.BaseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
