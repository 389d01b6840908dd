// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixtures embeds the sample source files synx is exercised against
// and records what each one is expected to produce.
//
// The files are inputs only. Nothing here runs them; the runtime properties
// listed for each script are what the script would print if executed, kept
// so that checks and documentation can refer to them.
package fixtures

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/A5873/synx/services/synx/detect"
)

//go:embed files
var files embed.FS

// ErrUnknownFixture is returned for a name that is not in the catalogue.
var ErrUnknownFixture = errors.New("unknown fixture")

// Property is one documented runtime fact about a fixture script.
type Property struct {
	Expr string `json:"expr"`
	Want string `json:"want"`
}

// Fixture describes one embedded sample file.
type Fixture struct {
	// Name is the slash path below the fixture root, e.g. "python/valid/calculator.py".
	Name string `json:"name"`

	Language detect.Language `json:"language"`

	// SyntaxValid reports whether the file parses.
	SyntaxValid bool `json:"syntax_valid"`

	// StyleClean reports whether the built-in style checker finds no issues.
	StyleClean bool `json:"style_clean"`

	// StyleFails reports whether the style checker rejects the file outright.
	StyleFails bool `json:"style_fails"`

	// ExpectedRules lists rule codes the file is known to trigger.
	ExpectedRules []string `json:"expected_rules,omitempty"`

	Description string     `json:"description"`
	Properties  []Property `json:"properties,omitempty"`
}

var catalogue = []Fixture{
	{
		Name:        "python/valid/calculator.py",
		Language:    detect.Python,
		SyntaxValid: true,
		StyleClean:  true,
		Description: "Typed calculator class with docstrings and PEP 8 layout.",
		Properties: []Property{
			{Expr: "Calculator().add(5, 3)", Want: "8"},
			{Expr: "Calculator().subtract(10, 4)", Want: "6"},
			{Expr: "Calculator().get_last_result()", Want: "None"},
		},
	},
	{
		Name:        "python/valid/valid.py",
		Language:    detect.Python,
		SyntaxValid: true,
		Description: "Memoized fibonacci and trial-division primality test.",
		Properties: []Property{
			{Expr: "fibonacci(0)", Want: "0"},
			{Expr: "fibonacci(1)", Want: "1"},
			{Expr: "fibonacci(10)", Want: "55"},
			{Expr: "is_prime(2)", Want: "True"},
			{Expr: "is_prime(1)", Want: "False"},
		},
	},
	{
		Name:        "python/valid/greet.py",
		Language:    detect.Python,
		SyntaxValid: true,
		Description: "Minimal typed function with a __main__ guard.",
		Properties: []Property{
			{Expr: `greet("World")`, Want: "Hello, World!"},
		},
	},
	{
		Name:        "python/invalid/bad_code.py",
		Language:    detect.Python,
		SyntaxValid: true,
		StyleFails:  true,
		ExpectedRules: []string{
			"PY101", "PY102", "PY103", "PY104", "PY105",
			"PY106", "PY107", "PY108", "PY109",
		},
		Description: "Parses, but breaks naming, spacing, comparison and exception-handling conventions.",
	},
	{
		Name:          "python/invalid/test.py",
		Language:      detect.Python,
		SyntaxValid:   false,
		ExpectedRules: []string{"PY0001"},
		Description:   "Recursive fibonacci whose return expression is missing its closing parenthesis.",
		Properties: []Property{
			{Expr: "calculate_fibonacci(0)", Want: "0"},
			{Expr: "calculate_fibonacci(1)", Want: "1"},
			{Expr: "calculate_fibonacci(10)", Want: "55"},
			{Expr: "is_prime(2)", Want: "True"},
			{Expr: "is_prime(1)", Want: "False"},
		},
	},
	{
		Name:        "c/valid/hello.c",
		Language:    detect.C,
		SyntaxValid: true,
		Description: "Hello world with checked allocation and matching free.",
	},
	{
		Name:        "c/invalid/broken.c",
		Language:    detect.C,
		SyntaxValid: false,
		Description: "Missing semicolon, leaked allocation, uninitialized read, no return.",
	},
}

// All returns the catalogue sorted by name.
func All() []Fixture {
	out := make([]Fixture, len(catalogue))
	copy(out, catalogue)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find looks up a fixture by name.
func Find(name string) (Fixture, bool) {
	for _, f := range catalogue {
		if f.Name == name {
			return f, true
		}
	}
	return Fixture{}, false
}

// ByLanguage returns the fixtures for one language.
func ByLanguage(lang detect.Language) []Fixture {
	var out []Fixture
	for _, f := range All() {
		if f.Language == lang {
			out = append(out, f)
		}
	}
	return out
}

// Read returns the content of a catalogued fixture.
func Read(name string) ([]byte, error) {
	if _, ok := Find(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFixture, name)
	}
	return files.ReadFile(path.Join("files", name))
}

// FS exposes the embedded fixture tree rooted at the language directories.
func FS() fs.FS {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		panic(err)
	}
	return sub
}

// WriteTo materializes every fixture under dir, keeping the relative layout,
// and returns the written paths in catalogue order.
func WriteTo(dir string) ([]string, error) {
	var written []string
	for _, f := range All() {
		data, err := Read(f.Name)
		if err != nil {
			return written, err
		}
		dst := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return written, fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return written, fmt.Errorf("writing %s: %w", dst, err)
		}
		written = append(written, dst)
	}
	return written, nil
}
