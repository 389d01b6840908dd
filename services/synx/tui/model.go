// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui provides an interactive browser for validation issues.
//
// The browser lists every file that failed or reported issues. Users step
// through files and issues, view the surrounding source, and mark each
// issue as to-fix, ignored or deferred. Marks are returned when the
// program exits so callers can print a follow-up list.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/A5873/synx/services/synx/datatypes"
)

// =============================================================================
// Actions
// =============================================================================

// Action is the user's decision for one issue.
type Action int

const (
	ActionNone Action = iota
	ActionFix
	ActionIgnore
	ActionDefer
)

// String returns the action label.
func (a Action) String() string {
	switch a {
	case ActionFix:
		return "to fix"
	case ActionIgnore:
		return "ignored"
	case ActionDefer:
		return "deferred"
	default:
		return "pending"
	}
}

// Decision pairs an issue with the action chosen for it.
type Decision struct {
	Path   string
	Issue  datatypes.Issue
	Action Action
}

// Stats counts issues per action.
type Stats struct {
	Total   int
	Fix     int
	Ignore  int
	Defer   int
	Pending int
}

// =============================================================================
// Model
// =============================================================================

// Options configures the browser.
type Options struct {
	// ContextLines is the number of source lines shown around an issue.
	ContextLines int

	// ShowContext starts with the code view enabled.
	ShowContext bool

	// BaseDir shortens displayed paths.
	BaseDir string

	// ReadFile loads source for the code view. Defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)
}

// DefaultOptions returns options with three lines of context shown.
func DefaultOptions() Options {
	return Options{ContextLines: 3, ShowContext: true}
}

type fileEntry struct {
	result *datatypes.Result
	issues []datatypes.Issue
}

// Model is the bubbletea model for the issue browser.
type Model struct {
	files []fileEntry
	opts  Options
	keys  KeyMap
	help  help.Model
	view  viewport.Model

	currentFile  int
	currentIssue int
	showContext  bool
	showHelp     bool

	marks   map[string]Action
	sources map[string][]string

	width    int
	height   int
	ready    bool
	quitting bool
}

// New builds a browser over results. Valid results without issues are
// left out. A failed result without structured issues gets one issue
// carrying its message.
func New(results []*datatypes.Result, opts Options) Model {
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	m := Model{
		opts:        opts,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		showContext: opts.ShowContext,
		marks:       make(map[string]Action),
		sources:     make(map[string][]string),
	}
	for _, res := range results {
		if res == nil || (res.Valid() && !res.HasIssues()) {
			continue
		}
		issues := res.AllIssues()
		if len(issues) == 0 {
			msg := res.Message
			if msg == "" {
				msg = "validation " + string(res.Status)
			}
			issues = []datatypes.Issue{{File: res.Path, Severity: datatypes.SeverityError, Message: msg}}
		}
		m.files = append(m.files, fileEntry{result: res, issues: issues})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.view = viewport.New(msg.Width, m.viewHeight())
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = m.viewHeight()
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.NextFile):
		m.moveFile(1)
	case key.Matches(msg, m.keys.PrevFile):
		m.moveFile(-1)
	case key.Matches(msg, m.keys.NextIssue):
		m.moveIssue(1)
	case key.Matches(msg, m.keys.PrevIssue):
		m.moveIssue(-1)
	case key.Matches(msg, m.keys.Context):
		m.showContext = !m.showContext
	case key.Matches(msg, m.keys.MarkFix):
		m.mark(ActionFix)
	case key.Matches(msg, m.keys.MarkIgnore):
		m.mark(ActionIgnore)
	case key.Matches(msg, m.keys.MarkDefer):
		m.mark(ActionDefer)
	case key.Matches(msg, m.keys.ClearMark):
		m.mark(ActionNone)
	case key.Matches(msg, m.keys.ScrollDown):
		if m.ready {
			m.view.SetYOffset(m.view.YOffset + m.view.Height/2)
		}
		return m, nil
	case key.Matches(msg, m.keys.ScrollUp):
		if m.ready {
			m.view.SetYOffset(m.view.YOffset - m.view.Height/2)
		}
		return m, nil
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

// moveFile switches file, wrapping around, and resets the issue cursor.
func (m *Model) moveFile(delta int) {
	if len(m.files) == 0 {
		return
	}
	m.currentFile = (m.currentFile + delta + len(m.files)) % len(m.files)
	m.currentIssue = 0
}

// moveIssue steps through issues, crossing into the next or previous file
// at the ends.
func (m *Model) moveIssue(delta int) {
	if len(m.files) == 0 {
		return
	}
	next := m.currentIssue + delta
	switch {
	case next >= len(m.files[m.currentFile].issues):
		if m.currentFile < len(m.files)-1 {
			m.currentFile++
			m.currentIssue = 0
		}
	case next < 0:
		if m.currentFile > 0 {
			m.currentFile--
			m.currentIssue = len(m.files[m.currentFile].issues) - 1
		}
	default:
		m.currentIssue = next
	}
}

// mark records an action for the current issue and advances to the next.
func (m *Model) mark(a Action) {
	if len(m.files) == 0 {
		return
	}
	k := markKey(m.currentFile, m.currentIssue)
	if a == ActionNone {
		delete(m.marks, k)
		return
	}
	m.marks[k] = a
	m.moveIssue(1)
}

func markKey(file, issue int) string {
	return fmt.Sprintf("%d:%d", file, issue)
}

// refresh rebuilds the detail pane for the current issue.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.view.Height = m.viewHeight()
	m.view.SetContent(m.renderDetail())
	m.view.GotoTop()
}

// viewHeight is the space left for the detail pane.
func (m Model) viewHeight() int {
	used := 3 + m.fileListHeight() + 2
	if m.showHelp {
		used += 4
	}
	return max(3, m.height-used)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.files) == 0 {
		return titleStyle.Render("No issues found") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderFileList())
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", max(10, m.width))))
	b.WriteString("\n")
	if m.ready {
		b.WriteString(m.view.View())
	} else {
		b.WriteString(m.renderDetail())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// =============================================================================
// Accessors
// =============================================================================

// Current returns the selected result and issue.
func (m Model) Current() (*datatypes.Result, datatypes.Issue, bool) {
	if len(m.files) == 0 {
		return nil, datatypes.Issue{}, false
	}
	f := m.files[m.currentFile]
	return f.result, f.issues[m.currentIssue], true
}

// FileCount returns the number of files in the browser.
func (m Model) FileCount() int {
	return len(m.files)
}

// ContextShown reports whether the code view is on.
func (m Model) ContextShown() bool {
	return m.showContext
}

// Stats counts issues by action.
func (m Model) Stats() Stats {
	var s Stats
	for fi, f := range m.files {
		for ii := range f.issues {
			s.Total++
			switch m.marks[markKey(fi, ii)] {
			case ActionFix:
				s.Fix++
			case ActionIgnore:
				s.Ignore++
			case ActionDefer:
				s.Defer++
			default:
				s.Pending++
			}
		}
	}
	return s
}

// Decisions returns every marked issue in file and issue order.
func (m Model) Decisions() []Decision {
	var out []Decision
	for fi, f := range m.files {
		for ii, is := range f.issues {
			if a, ok := m.marks[markKey(fi, ii)]; ok {
				out = append(out, Decision{Path: f.result.Path, Issue: is, Action: a})
			}
		}
	}
	return out
}

// =============================================================================
// Program
// =============================================================================

// Run shows the browser full-screen until the user quits or ctx ends, and
// returns the issues the user marked. It returns immediately when no
// result has issues.
func Run(ctx context.Context, results []*datatypes.Result, opts Options) ([]Decision, error) {
	m := New(results, opts)
	if m.FileCount() == 0 {
		return nil, nil
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running issue browser: %w", err)
	}
	fm, ok := final.(Model)
	if !ok {
		return nil, nil
	}
	return fm.Decisions(), nil
}
