// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax checks source files for parse errors in-process using
// tree-sitter, so a broken file is rejected before any external toolchain
// is started.
//
// Thread Safety: All functions are safe for concurrent use. Each call
// creates its own parser.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/dockerfile"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/A5873/synx/services/synx/detect"
)

// MaxContentSize is the largest input Check accepts.
const MaxContentSize = 10 * 1024 * 1024

const (
	// maxErrors caps the errors collected from heavily malformed input.
	maxErrors = 50

	// maxDepth stops the walk on pathologically nested trees.
	maxDepth = 1000

	maxSnippet = 40
)

var (
	// ErrTooLarge is returned for content above MaxContentSize.
	ErrTooLarge = errors.New("content too large for syntax check")

	// ErrNotUTF8 is returned for content that is not valid UTF-8.
	ErrNotUTF8 = errors.New("content is not valid UTF-8")

	// ErrUnsupported is returned by Parse for a language without a grammar.
	ErrUnsupported = errors.New("no grammar for language")
)

// SyntaxError is one ERROR or MISSING node. Line and Column are 1-based.
type SyntaxError struct {
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	EndLine    int    `json:"end_line"`
	Message    string `json:"message"`
	Kind       string `json:"kind"`
	Snippet    string `json:"snippet,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Result is the outcome of Check.
type Result struct {
	Language detect.Language `json:"language"`

	// Supported is false when no grammar exists. Valid is then true.
	Supported bool `json:"supported"`

	Valid  bool          `json:"valid"`
	Errors []SyntaxError `json:"errors,omitempty"`

	// Advisory marks grammars whose errors should not override the
	// language's own compiler (preprocessor-heavy or lenient languages).
	Advisory bool `json:"advisory,omitempty"`

	Duration time.Duration `json:"duration"`
}

// advisory lists languages where tree-sitter disagrees with real compilers
// often enough that its errors are reported but not decisive.
var advisory = map[detect.Language]bool{
	detect.C:      true,
	detect.Cpp:    true,
	detect.CSharp: true,
	detect.HTML:   true,
}

// grammar returns the tree-sitter language for lang, or nil.
func grammar(lang detect.Language, path string) *sitter.Language {
	switch lang {
	case detect.Python:
		return python.GetLanguage()
	case detect.JavaScript:
		return javascript.GetLanguage()
	case detect.TypeScript:
		if strings.EqualFold(filepath.Ext(path), ".tsx") {
			return tsx.GetLanguage()
		}
		return typescript.GetLanguage()
	case detect.Go:
		return golang.GetLanguage()
	case detect.Rust:
		return rust.GetLanguage()
	case detect.Shell:
		return bash.GetLanguage()
	case detect.C:
		return c.GetLanguage()
	case detect.Cpp:
		return cpp.GetLanguage()
	case detect.CSharp:
		return csharp.GetLanguage()
	case detect.Java:
		return java.GetLanguage()
	case detect.CSS:
		return css.GetLanguage()
	case detect.HTML:
		return html.GetLanguage()
	case detect.YAML:
		return yaml.GetLanguage()
	case detect.TOML:
		return toml.GetLanguage()
	case detect.Dockerfile:
		return dockerfile.GetLanguage()
	default:
		return nil
	}
}

// Supported reports whether lang has a grammar.
func Supported(lang detect.Language) bool {
	return grammar(lang, "") != nil
}

// IsAdvisory reports whether syntax errors for lang are advisory.
func IsAdvisory(lang detect.Language) bool {
	return advisory[lang]
}

// Parse returns the tree-sitter tree for content. The caller must Close it.
//
// Description:
//
//	Shared by Check and by checkers that walk the tree themselves. path is
//	only consulted to pick the TSX grammar for .tsx files.
//
// Outputs:
//
//	*sitter.Tree - The parsed tree, never nil on success
//	error - ErrUnsupported, ErrTooLarge, ErrNotUTF8, or a context error
func Parse(ctx context.Context, content []byte, lang detect.Language, path string) (*sitter.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(content) > MaxContentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(content))
	}
	if !utf8.Valid(content) {
		return nil, ErrNotUTF8
	}
	g := grammar(lang, path)
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lang, err)
	}
	return tree, nil
}

// Check parses content and collects syntax errors.
//
// Description:
//
//	Returns a Result with Supported=false and Valid=true when lang has no
//	grammar. Otherwise walks the tree and records ERROR and MISSING nodes.
//	Subtrees without errors are skipped, and an ERROR node's children are
//	not reported separately.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//	content - Source bytes, at most MaxContentSize and valid UTF-8
//	lang - Detected language
//	path - File path, used for grammar selection and span attributes
//
// Outputs:
//
//	*Result - Never nil when error is nil
//	error - ErrTooLarge, ErrNotUTF8, or a context/parse error
func Check(ctx context.Context, content []byte, lang detect.Language, path string) (*Result, error) {
	start := time.Now()

	ctx, span := otel.Tracer("synx.syntax").Start(ctx, "syntax.Check",
		trace.WithAttributes(
			attribute.String("language", string(lang)),
			attribute.String("path", path),
			attribute.Int("content_size", len(content)),
		),
	)
	defer span.End()

	result := &Result{Language: lang, Valid: true, Advisory: advisory[lang]}
	if !Supported(lang) {
		result.Duration = time.Since(start)
		return result, nil
	}
	result.Supported = true

	tree, err := Parse(ctx, content, lang, path)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		collect(root, content, &result.Errors, 0)
	}
	result.Valid = len(result.Errors) == 0
	result.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Bool("valid", result.Valid),
		attribute.Int("error_count", len(result.Errors)),
	)
	return result, nil
}

// CheckFile reads path and runs Check.
func CheckFile(ctx context.Context, path string, lang detect.Language) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxContentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Check(ctx, content, lang, path)
}

func collect(node *sitter.Node, content []byte, out *[]SyntaxError, depth int) {
	if node == nil || depth > maxDepth || len(*out) >= maxErrors {
		return
	}

	if node.IsMissing() || node.IsError() {
		*out = append(*out, describe(node, content))
		return
	}
	if !node.HasError() {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collect(node.Child(i), content, out, depth+1)
	}
}

func describe(node *sitter.Node, content []byte) SyntaxError {
	sp := node.StartPoint()
	ep := node.EndPoint()
	se := SyntaxError{
		Line:    int(sp.Row) + 1,
		Column:  int(sp.Column) + 1,
		EndLine: int(ep.Row) + 1,
	}

	if node.IsMissing() {
		se.Kind = "missing"
		se.Message = fmt.Sprintf("missing %q", node.Type())
		se.Suggestion = suggestMissing(node.Type())
		return se
	}

	se.Kind = "syntax"
	start, end := node.StartByte(), node.EndByte()
	if end > uint32(len(content)) {
		end = uint32(len(content))
	}
	if start < end {
		snippet := string(content[start:end])
		if i := strings.IndexByte(snippet, '\n'); i >= 0 {
			snippet = snippet[:i]
		}
		se.Snippet = truncate(strings.TrimSpace(snippet), maxSnippet)
	}
	if se.Snippet != "" {
		se.Message = fmt.Sprintf("unexpected %q", se.Snippet)
	} else {
		se.Message = "syntax error"
	}
	return se
}

func suggestMissing(tok string) string {
	switch tok {
	case ")", "]", "}":
		return fmt.Sprintf("add the closing %q", tok)
	case ";":
		return "terminate the statement with ';'"
	case ":":
		return "add ':' before the block"
	default:
		return fmt.Sprintf("insert %q", tok)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
