// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules is the catalogue of lint rules synx can explain.
//
// Each Rule carries a markdown Explanation with the sections Description,
// Details, "Why is this important?" and "How to fix", plus incorrect and
// correct examples. `synx explain <code>` renders Markdown() with glamour.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/detect"
)

// ErrUnknownRule is returned by Find for a code not in the catalogue.
var ErrUnknownRule = errors.New("unknown rule")

// Rule is one catalogue entry.
type Rule struct {
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	Language detect.Language    `json:"language"`
	Severity datatypes.Severity `json:"severity"`

	// Description is a one-line summary.
	Description string `json:"description"`

	// Explanation is markdown with four second-level sections.
	Explanation string `json:"explanation"`

	IncorrectExample  string   `json:"incorrect_example"`
	CorrectExample    string   `json:"correct_example"`
	DocLink           string   `json:"doc_link,omitempty"`
	CommonFixes       []string `json:"common_fixes"`
	SeverityRationale string   `json:"severity_rationale"`
}

// explanation formats the four explanation sections.
func explanation(description, details, why, fix string) string {
	return fmt.Sprintf("## Description\n%s\n\n## Details\n%s\n\n## Why is this important?\n%s\n\n## How to fix\n%s",
		description, details, why, fix)
}

// Markdown renders the full rule page.
func (r Rule) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", r.Code, r.Name)
	fmt.Fprintf(&b, "**Language:** %s  \n**Severity:** %s\n\n", detect.DisplayName(r.Language), r.Severity)
	fmt.Fprintf(&b, "%s\n\n%s\n\n", r.Description, r.Explanation)

	fence := "```"
	lang := fenceLanguage(r.Language)
	if r.IncorrectExample != "" {
		fmt.Fprintf(&b, "## Incorrect\n\n%s%s\n%s\n%s\n\n", fence, lang, strings.Trim(r.IncorrectExample, "\n"), fence)
	}
	if r.CorrectExample != "" {
		fmt.Fprintf(&b, "## Correct\n\n%s%s\n%s\n%s\n\n", fence, lang, strings.Trim(r.CorrectExample, "\n"), fence)
	}
	if len(r.CommonFixes) > 0 {
		b.WriteString("## Common fixes\n\n")
		for _, f := range r.CommonFixes {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
	if r.SeverityRationale != "" {
		fmt.Fprintf(&b, "## Severity\n\n%s\n\n", r.SeverityRationale)
	}
	if r.DocLink != "" {
		fmt.Fprintf(&b, "See %s\n", r.DocLink)
	}
	return b.String()
}

func fenceLanguage(lang detect.Language) string {
	switch lang {
	case detect.Python:
		return "python"
	case detect.Rust:
		return "rust"
	case detect.JavaScript:
		return "javascript"
	default:
		return ""
	}
}

var (
	catalogue []Rule
	byCode    map[string]Rule
)

func init() {
	for _, group := range [][]Rule{rustRules, javascriptRules, pythonRules} {
		catalogue = append(catalogue, group...)
	}
	sort.Slice(catalogue, func(i, j int) bool { return catalogue[i].Code < catalogue[j].Code })
	byCode = make(map[string]Rule, len(catalogue))
	for _, r := range catalogue {
		byCode[r.Code] = r
	}
}

// All returns every rule sorted by code.
func All() []Rule {
	return append([]Rule(nil), catalogue...)
}

// Find returns the rule for code, case-insensitively.
func Find(code string) (Rule, error) {
	r, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownRule, code)
	}
	return r, nil
}

// ByLanguage returns the rules of one language sorted by code.
func ByLanguage(lang detect.Language) []Rule {
	var out []Rule
	for _, r := range catalogue {
		if r.Language == lang {
			out = append(out, r)
		}
	}
	return out
}

// Languages returns the languages that have rules, sorted.
func Languages() []detect.Language {
	seen := make(map[detect.Language]bool)
	var out []detect.Language
	for _, r := range catalogue {
		if !seen[r.Language] {
			seen[r.Language] = true
			out = append(out, r.Language)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
