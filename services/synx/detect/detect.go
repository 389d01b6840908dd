// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect maps file paths to languages.
//
// Detection order: exact base-name mapping from configuration, then the
// lower-cased extension, then the shebang line. Anything left over is
// Unknown and carries its extension so custom validators can still claim it.
package detect

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Language is the canonical language identifier, also used as the
// validators.<lang> config key.
type Language string

const (
	Unknown    Language = ""
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Go         Language = "go"
	Rust       Language = "rust"
	C          Language = "c"
	Cpp        Language = "cpp"
	CSharp     Language = "csharp"
	Java       Language = "java"
	JSON       Language = "json"
	YAML       Language = "yaml"
	HTML       Language = "html"
	CSS        Language = "css"
	Shell      Language = "shell"
	Dockerfile Language = "dockerfile"
	TOML       Language = "toml"
	Markdown   Language = "markdown"
	Makefile   Language = "makefile"
	Groovy     Language = "groovy"
)

// Source records which rule produced a FileType.
type Source string

const (
	SourceMapping   Source = "mapping"
	SourceExtension Source = "extension"
	SourceShebang   Source = "shebang"
	SourceNone      Source = "none"
)

// shebangReadLimit caps how much of a file is read to find the shebang.
const shebangReadLimit = 1024

// ErrEmptyPath is returned for an empty path.
var ErrEmptyPath = errors.New("empty path")

type languageInfo struct {
	display    string
	extensions []string
}

var languages = map[Language]languageInfo{
	Python:     {"Python", []string{".py", ".pyi", ".pyw"}},
	JavaScript: {"JavaScript", []string{".js", ".mjs", ".cjs", ".jsx"}},
	TypeScript: {"TypeScript", []string{".ts", ".tsx", ".mts", ".cts"}},
	Go:         {"Go", []string{".go"}},
	Rust:       {"Rust", []string{".rs"}},
	C:          {"C", []string{".c", ".h"}},
	Cpp:        {"C++", []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"}},
	CSharp:     {"C#", []string{".cs"}},
	Java:       {"Java", []string{".java"}},
	JSON:       {"JSON", []string{".json"}},
	YAML:       {"YAML", []string{".yaml", ".yml"}},
	HTML:       {"HTML", []string{".html", ".htm"}},
	CSS:        {"CSS", []string{".css"}},
	Shell:      {"Shell", []string{".sh", ".bash", ".zsh", ".ksh"}},
	Dockerfile: {"Dockerfile", []string{".dockerfile"}},
	TOML:       {"TOML", []string{".toml"}},
	Markdown:   {"Markdown", []string{".md", ".markdown"}},
	Makefile:   {"Makefile", []string{".mk"}},
	Groovy:     {"Groovy", []string{".groovy", ".gvy"}},
}

var extensionIndex = func() map[string]Language {
	idx := make(map[string]Language)
	for lang, info := range languages {
		for _, ext := range info.extensions {
			idx[ext] = lang
		}
	}
	return idx
}()

// aliases lets file_mappings name a language by a common alias or extension.
var aliases = map[string]Language{
	"py":          Python,
	"js":          JavaScript,
	"node":        JavaScript,
	"ts":          TypeScript,
	"tsx":         TypeScript,
	"golang":      Go,
	"rs":          Rust,
	"c++":         Cpp,
	"cc":          Cpp,
	"cxx":         Cpp,
	"cs":          CSharp,
	"c#":          CSharp,
	"yml":         YAML,
	"htm":         HTML,
	"sh":          Shell,
	"bash":        Shell,
	"zsh":         Shell,
	"docker":      Dockerfile,
	"md":          Markdown,
	"make":        Makefile,
	"jenkinsfile": Groovy,
}

// FileType is the detection result for one path.
type FileType struct {
	// Language is Unknown when nothing matched.
	Language Language `json:"language"`

	// Ext is the lower-cased extension without the dot, possibly empty.
	Ext string `json:"ext,omitempty"`

	// Mapped is the raw file_mappings value when Source is SourceMapping.
	Mapped string `json:"mapped,omitempty"`

	Source Source `json:"source"`
}

// IsKnown reports whether a language was identified.
func (f FileType) IsKnown() bool {
	return f.Language != Unknown
}

// Key returns the identifier used to look up validators and group results:
// the language id, or for unknown files the mapped name or extension.
func (f FileType) Key() string {
	switch {
	case f.Language != Unknown:
		return string(f.Language)
	case f.Mapped != "":
		return f.Mapped
	case f.Ext != "":
		return f.Ext
	default:
		return "unknown"
	}
}

// String returns the display name, e.g. "Python" or "Unknown (xyz)".
func (f FileType) String() string {
	if info, ok := languages[f.Language]; ok {
		return info.display
	}
	if f.Mapped != "" {
		return fmt.Sprintf("Unknown (%s)", f.Mapped)
	}
	if f.Ext != "" {
		return fmt.Sprintf("Unknown (%s)", f.Ext)
	}
	return "Unknown"
}

// Detect identifies the file type of path.
//
// Description:
//
//	Checks mappings by exact base name first, then the extension, and reads
//	at most 1 KiB of the file to inspect a shebang when neither matches.
//	A file that cannot be opened during shebang sniffing yields an Unknown
//	type together with the error.
//
// Inputs:
//
//	path - File path (need not exist when mapping or extension matches)
//	mappings - Base name to language or alias, may be nil
//
// Outputs:
//
//	FileType - The detected type
//	error - Non-nil only for an empty path or an unreadable file during sniffing
func Detect(path string, mappings map[string]string) (FileType, error) {
	if path == "" {
		return FileType{Source: SourceNone}, ErrEmptyPath
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	ft := FileType{Ext: strings.TrimPrefix(ext, ".")}

	if mapped, ok := mappings[base]; ok {
		ft.Source = SourceMapping
		ft.Language = ParseLanguage(mapped)
		if ft.Language == Unknown {
			ft.Mapped = strings.ToLower(mapped)
		}
		return ft, nil
	}

	if lang, ok := extensionIndex[ext]; ok {
		ft.Language = lang
		ft.Source = SourceExtension
		return ft, nil
	}

	if lang := fromBaseName(base); lang != Unknown {
		ft.Language = lang
		ft.Source = SourceExtension
		return ft, nil
	}

	lang, err := sniffShebang(path)
	if err != nil {
		ft.Source = SourceNone
		return ft, err
	}
	if lang != Unknown {
		ft.Language = lang
		ft.Source = SourceShebang
		return ft, nil
	}

	ft.Source = SourceNone
	return ft, nil
}

// fromBaseName recognizes conventional names without extensions.
func fromBaseName(base string) Language {
	switch {
	case base == "Dockerfile" || strings.HasPrefix(base, "Dockerfile."):
		return Dockerfile
	case base == "Makefile" || base == "GNUmakefile":
		return Makefile
	case base == "Jenkinsfile":
		return Groovy
	default:
		return Unknown
	}
}

func sniffShebang(path string) (Language, error) {
	f, err := os.Open(path)
	if err != nil {
		return Unknown, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(io.LimitReader(f, shebangReadLimit))
	line, err := r.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Unknown, fmt.Errorf("reading %s: %w", path, err)
	}
	return FromShebang(string(bytes.TrimSpace(line))), nil
}

// FromShebang maps a "#!" line to a language.
//
// Handles both direct interpreters ("#!/bin/bash") and env indirection
// ("#!/usr/bin/env -S python3 -u").
func FromShebang(line string) Language {
	if !strings.HasPrefix(line, "#!") {
		return Unknown
	}
	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return Unknown
	}

	interp := filepath.Base(fields[0])
	if interp == "env" {
		interp = ""
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}
			interp = filepath.Base(f)
			break
		}
	}

	switch {
	case interp == "sh" || interp == "bash" || interp == "dash" || interp == "zsh" || interp == "ksh":
		return Shell
	case strings.HasPrefix(interp, "python"):
		return Python
	case interp == "node" || interp == "nodejs" || interp == "deno" || interp == "bun":
		return JavaScript
	case interp == "ts-node":
		return TypeScript
	case interp == "groovy":
		return Groovy
	default:
		return Unknown
	}
}

// ParseLanguage resolves a language id, alias or extension to a Language.
func ParseLanguage(name string) Language {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, ".")
	if _, ok := languages[Language(n)]; ok {
		return Language(n)
	}
	if lang, ok := aliases[n]; ok {
		return lang
	}
	if lang, ok := extensionIndex["."+n]; ok {
		return lang
	}
	return Unknown
}

// ExtensionFor returns the primary extension (with dot) for a language.
func ExtensionFor(lang Language) string {
	info, ok := languages[lang]
	if !ok || len(info.extensions) == 0 {
		return ""
	}
	return info.extensions[0]
}

// DisplayName returns the human-readable name of a language.
func DisplayName(lang Language) string {
	if info, ok := languages[lang]; ok {
		return info.display
	}
	return "Unknown"
}

// Languages returns every known language, sorted.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for lang := range languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
