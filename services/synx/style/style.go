// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package style is the built-in Python style checker used in strict mode.
//
// It needs no external tools. Structural rules walk the tree-sitter tree;
// whitespace and length rules scan raw lines.
//
// Thread Safety: Check is safe for concurrent use.
package style

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/detect"
	"github.com/A5873/synx/services/synx/syntax"
)

// Source is the Issue.Source value for issues reported here.
const Source = "synx-style"

// DefaultMaxLineLength applies when Options.MaxLineLength is zero.
const DefaultMaxLineLength = 99

const maxDepth = 500

// Rule describes one style rule.
type Rule struct {
	Code     string
	Name     string
	Severity datatypes.Severity
}

// Rules lists every rule Check can report, in code order.
var Rules = []Rule{
	{"PY0002", "missing-type-hints", datatypes.SeverityWarning},
	{"PY0003", "missing-module-docstring", datatypes.SeverityWarning},
	{"PY0004", "line-too-long", datatypes.SeverityError},
	{"PY101", "class-name-capwords", datatypes.SeverityError},
	{"PY102", "function-name-snake-case", datatypes.SeverityError},
	{"PY103", "bare-except", datatypes.SeverityError},
	{"PY104", "none-comparison", datatypes.SeverityError},
	{"PY105", "multiple-imports", datatypes.SeverityError},
	{"PY106", "type-comparison", datatypes.SeverityError},
	{"PY107", "multiple-statements", datatypes.SeverityError},
	{"PY108", "assignment-spacing", datatypes.SeverityError},
	{"PY109", "trailing-whitespace", datatypes.SeverityWarning},
	{"PY110", "blank-line-whitespace", datatypes.SeverityWarning},
}

var ruleIndex = func() map[string]Rule {
	m := make(map[string]Rule, len(Rules))
	for _, r := range Rules {
		m[r.Code] = r
	}
	return m
}()

// Lookup returns the rule for a code.
func Lookup(code string) (Rule, bool) {
	r, ok := ruleIndex[code]
	return r, ok
}

var (
	capWords  = regexp.MustCompile(`^_*[A-Z][A-Za-z0-9]*$`)
	snakeCase = regexp.MustCompile(`^_*[a-z][a-z0-9_]*$`)
)

// Options tunes Check.
type Options struct {
	MaxLineLength int

	// Ignore lists rule codes or names to drop.
	Ignore []string
}

// Check runs every rule over Python source.
//
// Description:
//
//	Parses content with the Python grammar and reports findings as issues
//	attributed to path. Parse errors do not stop the checker; syntax is
//	the syntax package's concern.
//
// Inputs:
//
//	ctx - Context for cancellation
//	content - Python source
//	path - File path recorded on each issue
//	opts - Line length and ignored rules
//
// Outputs:
//
//	[]datatypes.Issue - Findings sorted by position
//	error - Input or context errors from parsing
func Check(ctx context.Context, content []byte, path string, opts Options) ([]datatypes.Issue, error) {
	tree, err := syntax.Parse(ctx, content, detect.Python, path)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	c := &checker{
		src:     content,
		path:    path,
		maxLen:  opts.MaxLineLength,
		ignored: make(map[string]bool, len(opts.Ignore)),
	}
	if c.maxLen <= 0 {
		c.maxLen = DefaultMaxLineLength
	}
	for _, ig := range opts.Ignore {
		c.ignored[strings.ToUpper(strings.TrimSpace(ig))] = true
	}

	root := tree.RootNode()
	c.checkModuleDocstring(root)
	c.walk(root, 0)
	c.scanLines()

	datatypes.SortIssues(c.issues)
	return c.issues, nil
}

// Fails reports whether any issue has error severity.
func Fails(issues []datatypes.Issue) bool {
	for _, is := range issues {
		if is.Severity == datatypes.SeverityError {
			return true
		}
	}
	return false
}

type checker struct {
	src     []byte
	path    string
	maxLen  int
	ignored map[string]bool
	issues  []datatypes.Issue
}

func (c *checker) report(code string, line, col int, msg, suggestion string) {
	r := ruleIndex[code]
	if c.ignored[code] || c.ignored[strings.ToUpper(r.Name)] {
		return
	}
	c.issues = append(c.issues, datatypes.Issue{
		File:       c.path,
		Line:       line,
		Column:     col,
		Rule:       code,
		Severity:   r.Severity,
		Message:    msg,
		Suggestion: suggestion,
		Source:     Source,
	})
}

func (c *checker) reportNode(code string, n *sitter.Node, msg, suggestion string) {
	p := n.StartPoint()
	c.report(code, int(p.Row)+1, int(p.Column)+1, msg, suggestion)
}

func (c *checker) text(n *sitter.Node) string {
	return n.Content(c.src)
}

func (c *checker) walk(n *sitter.Node, depth int) {
	if n == nil || depth > maxDepth {
		return
	}

	switch n.Type() {
	case "class_definition":
		c.checkClass(n)
	case "function_definition":
		c.checkFunction(n)
	case "except_clause":
		c.checkExcept(n)
	case "comparison_operator":
		c.checkComparison(n)
	case "import_statement":
		c.checkImport(n)
	case "assignment", "augmented_assignment":
		c.checkAssignment(n)
	case "block":
		c.checkBlockPlacement(n)
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		c.walk(n.Child(i), depth+1)
	}
}

func (c *checker) checkModuleDocstring(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if child.Type() == "expression_statement" && child.NamedChildCount() > 0 &&
			child.NamedChild(0).Type() == "string" {
			return
		}
		break
	}
	if root.NamedChildCount() == 0 {
		return
	}
	c.report("PY0003", 1, 1, "missing module docstring",
		`start the module with a """docstring""" describing its purpose`)
}

func (c *checker) checkClass(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	if id := c.text(name); !capWords.MatchString(id) {
		c.reportNode("PY101", name,
			fmt.Sprintf("class name %q should use CapWords", id),
			fmt.Sprintf("rename to %q", toCapWords(id)))
	}
}

func (c *checker) checkFunction(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	id := c.text(name)
	if !snakeCase.MatchString(id) {
		c.reportNode("PY102", name,
			fmt.Sprintf("function name %q should be snake_case", id),
			fmt.Sprintf("rename to %q", toSnakeCase(id)))
	}

	var missing []string
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch p.Type() {
			case "identifier":
				pn := c.text(p)
				if i == 0 && (pn == "self" || pn == "cls") {
					continue
				}
				missing = append(missing, pn)
			case "default_parameter":
				if pn := p.ChildByFieldName("name"); pn != nil {
					missing = append(missing, c.text(pn))
				}
			case "list_splat_pattern", "dictionary_splat_pattern":
				missing = append(missing, c.text(p))
			}
		}
	}
	noReturn := n.ChildByFieldName("return_type") == nil

	if len(missing) == 0 && !noReturn {
		return
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "parameters "+strings.Join(missing, ", "))
	}
	if noReturn {
		parts = append(parts, "return value")
	}
	c.reportNode("PY0002", name,
		fmt.Sprintf("function %q lacks type hints for %s", id, strings.Join(parts, " and ")),
		"annotate parameters and the return type")
}

func (c *checker) checkExcept(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch n.NamedChild(i).Type() {
		case "block", "comment":
		default:
			return
		}
	}
	c.reportNode("PY103", n, "bare 'except:' catches every exception, including KeyboardInterrupt",
		"catch a specific exception, e.g. 'except ValueError:'")
}

func (c *checker) checkComparison(n *sitter.Node) {
	var eq, hasNone, hasType bool
	var op string
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		switch ch.Type() {
		case "==", "!=":
			eq = true
			op = ch.Type()
		case "none":
			hasNone = true
		case "call":
			if fn := ch.ChildByFieldName("function"); fn != nil && c.text(fn) == "type" {
				hasType = true
			}
		}
	}
	if !eq {
		return
	}
	if hasNone {
		want := "is None"
		if op == "!=" {
			want = "is not None"
		}
		c.reportNode("PY104", n,
			fmt.Sprintf("comparison to None should use '%s', not '%s'", want, op),
			fmt.Sprintf("replace '%s None' with '%s'", op, want))
	}
	if hasType {
		c.reportNode("PY106", n, "use isinstance() instead of comparing types",
			"replace 'type(x) == T' with 'isinstance(x, T)'")
	}
}

func (c *checker) checkImport(n *sitter.Node) {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if ch := n.NamedChild(i); ch.Type() != "comment" {
			names = append(names, c.text(ch))
		}
	}
	if len(names) < 2 {
		return
	}
	c.reportNode("PY105", n,
		fmt.Sprintf("multiple imports on one line (%s)", strings.Join(names, ", ")),
		"put each import on its own line")
}

func (c *checker) checkAssignment(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		op := n.Child(i)
		if op.IsNamed() || !strings.HasSuffix(op.Type(), "=") {
			continue
		}
		start, end := op.StartByte(), op.EndByte()
		before := start > 0 && isSpace(c.src[start-1])
		after := int(end) < len(c.src) && isSpace(c.src[end])
		if !before || !after {
			c.reportNode("PY108", op,
				fmt.Sprintf("missing whitespace around operator '%s'", op.Type()),
				fmt.Sprintf("write 'x %s y'", op.Type()))
		}
		return
	}
}

// checkBlockPlacement flags a block whose first statement shares the
// header's line, as in "if x: return".
func (c *checker) checkBlockPlacement(n *sitter.Node) {
	parent := n.Parent()
	if parent == nil {
		return
	}
	var first *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if ch := n.NamedChild(i); ch.Type() != "comment" {
			first = ch
			break
		}
	}
	if first == nil {
		return
	}
	if first.StartPoint().Row == parent.StartPoint().Row {
		c.reportNode("PY107", first, "multiple statements on one line (colon)",
			"move the statement to its own indented line")
	}
}

func (c *checker) scanLines() {
	lines := bytes.Split(c.src, []byte("\n"))
	for i, raw := range lines {
		line := bytes.TrimSuffix(raw, []byte("\r"))
		lineNo := i + 1

		if n := utf8.RuneCount(line); n > c.maxLen {
			c.report("PY0004", lineNo, c.maxLen+1,
				fmt.Sprintf("line too long (%d > %d characters)", n, c.maxLen),
				"wrap the line or split the expression")
		}

		trimmed := bytes.TrimRight(line, " \t")
		if len(trimmed) == len(line) {
			continue
		}
		if len(trimmed) == 0 {
			c.report("PY110", lineNo, 1, "whitespace on blank line", "remove the whitespace")
			continue
		}
		c.report("PY109", lineNo, utf8.RuneCount(trimmed)+1, "trailing whitespace", "remove the trailing whitespace")
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func toCapWords(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
