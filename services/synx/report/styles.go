// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Palette shared by the text renderer and the interactive browser.
var (
	ColorValid   = lipgloss.Color("#2CD7C7")
	ColorInvalid = lipgloss.Color("#E74C3C")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorInfo    = lipgloss.Color("#20B9B4")
	ColorMuted   = lipgloss.Color("#5C7A84")
	ColorAccent  = lipgloss.Color("#1D9EA3")
)

// Status icons.
const (
	IconValid   = "✓"
	IconInvalid = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconSkipped = "○"
	IconArrow   = "→"
	IconBar     = "│"
)

// Styles holds the lipgloss styles used for text output. A zero-color
// profile renders every style as plain text.
type Styles struct {
	Title     lipgloss.Style
	Path      lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Valid     lipgloss.Style
	Invalid   lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	LineNum   lipgloss.Style
	ErrorLine lipgloss.Style
	Caret     lipgloss.Style
	Suggest   lipgloss.Style
}

// NewStyles builds styles bound to w. When color is false every style
// renders without escape sequences.
func NewStyles(w io.Writer, color bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Title:     r.NewStyle().Bold(true).Foreground(ColorAccent),
		Path:      r.NewStyle().Bold(true).Underline(true),
		Muted:     r.NewStyle().Foreground(ColorMuted),
		Bold:      r.NewStyle().Bold(true),
		Valid:     r.NewStyle().Foreground(ColorValid),
		Invalid:   r.NewStyle().Foreground(ColorInvalid),
		Warning:   r.NewStyle().Foreground(ColorWarning),
		Info:      r.NewStyle().Foreground(ColorInfo),
		LineNum:   r.NewStyle().Foreground(ColorMuted),
		ErrorLine: r.NewStyle().Bold(true).Foreground(ColorInvalid),
		Caret:     r.NewStyle().Bold(true).Foreground(ColorInvalid),
		Suggest:   r.NewStyle().Bold(true).Foreground(ColorValid),
	}
}

// ColorEnabled reports whether output to w should be colored.
//
// Colors are off when noColor is set, when NO_COLOR is present in the
// environment, or when w is not a terminal.
func ColorEnabled(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
