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

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the browser's key bindings.
type KeyMap struct {
	NextFile   key.Binding
	PrevFile   key.Binding
	NextIssue  key.Binding
	PrevIssue  key.Binding
	Context    key.Binding
	MarkFix    key.Binding
	MarkIgnore key.Binding
	MarkDefer  key.Binding
	ClearMark  key.Binding
	ScrollDown key.Binding
	ScrollUp   key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextFile:   key.NewBinding(key.WithKeys("right", "l", "tab"), key.WithHelp("→/l", "next file")),
		PrevFile:   key.NewBinding(key.WithKeys("left", "h", "shift+tab"), key.WithHelp("←/h", "prev file")),
		NextIssue:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next issue")),
		PrevIssue:  key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev issue")),
		Context:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "toggle code")),
		MarkFix:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "to fix")),
		MarkIgnore: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "ignore")),
		MarkDefer:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "defer")),
		ClearMark:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unmark")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "scroll down")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll up")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextIssue, k.NextFile, k.Context, k.MarkFix, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextIssue, k.PrevIssue, k.NextFile, k.PrevFile},
		{k.MarkFix, k.MarkIgnore, k.MarkDefer, k.ClearMark},
		{k.Context, k.ScrollDown, k.ScrollUp, k.Help, k.Quit},
	}
}
