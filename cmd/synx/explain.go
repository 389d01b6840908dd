// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/A5873/synx/services/synx/detect"
	"github.com/A5873/synx/services/synx/report"
	"github.com/A5873/synx/services/synx/rules"
)

func newExplainCmd(a *app) *cobra.Command {
	var (
		list     bool
		language string
	)
	cmd := &cobra.Command{
		Use:   "explain [code]",
		Short: "Explain a rule code such as PY0001",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list || len(args) == 0 {
				return a.listRules(language)
			}
			rule, err := rules.Find(args[0])
			if err != nil {
				return err
			}
			return a.renderMarkdown(rule.Markdown())
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list rule codes")
	cmd.Flags().StringVar(&language, "language", "", "only list rules of this language")
	return cmd
}

func (a *app) listRules(language string) error {
	langs := rules.Languages()
	if language != "" {
		lang := detect.ParseLanguage(language)
		if lang == detect.Unknown {
			return fmt.Errorf("unknown language %q", language)
		}
		langs = []detect.Language{lang}
	}
	for _, lang := range langs {
		rs := rules.ByLanguage(lang)
		if len(rs) == 0 {
			fmt.Fprintf(a.stdout, "No rules for %s\n", detect.DisplayName(lang))
			continue
		}
		fmt.Fprintf(a.stdout, "%s\n", detect.DisplayName(lang))
		for _, r := range rs {
			fmt.Fprintf(a.stdout, "  %-8s %-8s %s\n", r.Code, r.Severity, r.Name)
		}
	}
	return nil
}

// renderMarkdown prints md through glamour, falling back to plain text.
func (a *app) renderMarkdown(md string) error {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if report.ColorEnabled(a.stdout, a.flags.noColor) {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle("notty"))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		a.logger.Debug("markdown renderer unavailable", "error", err)
		_, err = fmt.Fprintln(a.stdout, md)
		return err
	}
	out, err := renderer.Render(md)
	if err != nil {
		_, err = fmt.Fprintln(a.stdout, md)
		return err
	}
	_, err = fmt.Fprint(a.stdout, strings.TrimLeft(out, "\n"))
	return err
}
