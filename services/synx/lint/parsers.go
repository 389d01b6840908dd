// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/A5873/synx/services/synx/datatypes"
)

// Parser converts raw tool output into issues.
type Parser func(output []byte) ([]datatypes.Issue, error)

var (
	parserMu  sync.RWMutex
	parserReg = map[string]Parser{
		"raw":        parseRaw,
		"gcc":        parseGCC,
		"msvc":       parseMSVC,
		"python":     parsePythonTraceback,
		"node":       parseNodeCheck,
		"mypy":       parseMypy,
		"pylint":     parsePylint,
		"eslint":     parseESLint,
		"ruff":       parseRuff,
		"golangci":   parseGolangCI,
		"govet":      parseGoVet,
		"diff":       parseUnifiedDiff,
		"javac":      parseJavac,
		"checkstyle": parseCheckstyle,
		"yamllint":   parseYamllint,
		"tidy":       parseTidy,
		"csslint":    parseCSSLint,
		"shellcheck": parseShellCheck,
		"hadolint":   parseHadolint,
	}
)

// GetParser returns the named parser, or nil.
func GetParser(name string) Parser {
	if name == "" {
		name = "raw"
	}
	parserMu.RLock()
	defer parserMu.RUnlock()
	return parserReg[name]
}

// RegisterParser adds or replaces a parser.
func RegisterParser(name string, p Parser) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parserReg[name] = p
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func lines(output []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		out = append(out, strings.TrimRight(sc.Text(), "\r"))
	}
	return out
}

// =============================================================================
// RAW
// =============================================================================

// parseRaw turns unrecognized output into a single error issue holding the
// first non-empty lines.
func parseRaw(output []byte) ([]datatypes.Issue, error) {
	msg := summarize(output, 5)
	if msg == "" {
		return nil, nil
	}
	return []datatypes.Issue{{Severity: datatypes.SeverityError, Message: msg}}, nil
}

func summarize(output []byte, max int) string {
	var kept []string
	for _, l := range lines(output) {
		if strings.TrimSpace(l) == "" {
			continue
		}
		kept = append(kept, strings.TrimSpace(l))
		if len(kept) == max {
			break
		}
	}
	return strings.Join(kept, "\n")
}

// =============================================================================
// COMPILER STYLE (gcc, clang, rustc short, cargo short)
// =============================================================================

// file:line:col: severity[code]: message
var gccLine = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(fatal error|error|warning|note|help)(?:\[([^\]]+)\])?:\s*(.*)$`)

// gccFlag extracts "[-Wunused-variable]" style flags at the end of a message.
var gccFlag = regexp.MustCompile(`\s*\[(-W[^\]]+)\]$`)

func parseGCC(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := gccLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		sev := m[4]
		if sev == "note" || sev == "help" {
			continue
		}
		is := datatypes.Issue{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Rule:     m[5],
			Severity: datatypes.SeverityFromString(strings.TrimPrefix(sev, "fatal ")),
			Message:  m[6],
		}
		if fm := gccFlag.FindStringSubmatch(is.Message); fm != nil && is.Rule == "" {
			is.Rule = fm[1]
			is.Message = strings.TrimSpace(gccFlag.ReplaceAllString(is.Message, ""))
		}
		issues = append(issues, is)
	}
	return issues, nil
}

// =============================================================================
// MSVC STYLE (tsc, mcs, dotnet build)
// =============================================================================

// file(line,col): error CODE: message [project]
var msvcLine = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\):\s*(error|warning|info)\s+([A-Za-z]+\d+)?:?\s*(.*?)(?:\s+\[[^\]]+\])?$`)

func parseMSVC(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	seen := make(map[string]bool)
	for _, l := range lines(output) {
		m := msvcLine.FindStringSubmatch(strings.TrimSpace(l))
		if m == nil {
			continue
		}
		// dotnet build repeats every diagnostic in its summary.
		if seen[m[0]] {
			continue
		}
		seen[m[0]] = true
		issues = append(issues, datatypes.Issue{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Rule:     m[5],
			Severity: datatypes.SeverityFromString(m[4]),
			Message:  m[6],
		})
	}
	return issues, nil
}

// =============================================================================
// PYTHON py_compile
// =============================================================================

var (
	pyFileLine = regexp.MustCompile(`^\s*File "(.+)", line (\d+)`)
	pyErrLine  = regexp.MustCompile(`^(?:\w+\.)*(\w*Error|\w*Exception):\s*(.*)$`)
	pyCaret    = regexp.MustCompile(`^(\s*)\^+\s*$`)
)

// parsePythonTraceback reads the syntax error report of py_compile.
func parsePythonTraceback(output []byte) ([]datatypes.Issue, error) {
	var (
		issue   *datatypes.Issue
		srcLine string
		issues  []datatypes.Issue
	)
	ls := lines(output)
	for i, l := range ls {
		if m := pyFileLine.FindStringSubmatch(l); m != nil {
			issue = &datatypes.Issue{File: m[1], Line: atoi(m[2]), Severity: datatypes.SeverityError}
			if i+1 < len(ls) {
				srcLine = ls[i+1]
			}
			continue
		}
		if issue == nil {
			continue
		}
		if m := pyCaret.FindStringSubmatch(l); m != nil {
			indent := len(srcLine) - len(strings.TrimLeft(srcLine, " \t"))
			if col := len(m[1]) - indent + 1; col > 0 {
				issue.Column = col
			}
			continue
		}
		if m := pyErrLine.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
			issue.Rule = m[1]
			issue.Message = m[2]
			if m[1] == "SyntaxError" || m[1] == "IndentationError" || m[1] == "TabError" {
				issue.Rule = "PY0001"
				issue.Message = m[1] + ": " + m[2]
			}
			issues = append(issues, *issue)
			issue = nil
		}
	}
	return issues, nil
}

// =============================================================================
// NODE --check
// =============================================================================

var nodeLoc = regexp.MustCompile(`^(.+):(\d+)$`)

func parseNodeCheck(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	var file string
	var line int
	for _, l := range lines(output) {
		if m := nodeLoc.FindStringSubmatch(l); m != nil && file == "" {
			file, line = m[1], atoi(m[2])
			continue
		}
		if m := pyErrLine.FindStringSubmatch(strings.TrimSpace(l)); m != nil && file != "" {
			issues = append(issues, datatypes.Issue{
				File:     file,
				Line:     line,
				Rule:     m[1],
				Severity: datatypes.SeverityError,
				Message:  m[2],
			})
			file = ""
		}
	}
	return issues, nil
}

// =============================================================================
// MYPY
// =============================================================================

// file:line:col: error: message  [code]
var mypyLine = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(error|warning|note):\s*(.*?)(?:\s+\[([\w-]+)\])?$`)

func parseMypy(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := mypyLine.FindStringSubmatch(l)
		if m == nil || m[4] == "note" {
			continue
		}
		rule := m[6]
		if rule == "" {
			rule = "mypy"
		}
		issues = append(issues, datatypes.Issue{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Rule:     rule,
			Severity: datatypes.SeverityFromString(m[4]),
			Message:  m[5],
		})
	}
	return issues, nil
}

// =============================================================================
// PYLINT
// =============================================================================

// file:line:col: C0114: message (symbol)
var pylintLine = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*([CRWEFI]\d{4}):\s*(.*?)(?:\s+\(([\w-]+)\))?$`)

func parsePylint(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := pylintLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		sev := datatypes.SeverityInfo
		switch m[4][0] {
		case 'E', 'F':
			sev = datatypes.SeverityError
		case 'W':
			sev = datatypes.SeverityWarning
		}
		msg := m[5]
		if m[6] != "" {
			msg = fmt.Sprintf("%s (%s)", msg, m[6])
		}
		issues = append(issues, datatypes.Issue{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]) + 1,
			Rule:     m[4],
			Severity: sev,
			Message:  msg,
		})
	}
	return issues, nil
}

// =============================================================================
// ESLINT
// =============================================================================

type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	RuleID    string `json:"ruleId"`
	Severity  int    `json:"severity"`
	Message   string `json:"message"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
	Fatal     bool   `json:"fatal"`
}

// parseESLint parses --format=json. Severity 2 is an error, 1 a warning.
func parseESLint(output []byte) ([]datatypes.Issue, error) {
	var files []eslintFile
	if err := json.Unmarshal(output, &files); err != nil {
		return nil, fmt.Errorf("parsing eslint output: %w", err)
	}
	var issues []datatypes.Issue
	for _, f := range files {
		for _, m := range f.Messages {
			sev := datatypes.SeverityWarning
			if m.Severity >= 2 || m.Fatal {
				sev = datatypes.SeverityError
			}
			rule := m.RuleID
			if rule == "" && m.Fatal {
				rule = "parse-error"
			}
			issues = append(issues, datatypes.Issue{
				File:      f.FilePath,
				Line:      m.Line,
				Column:    m.Column,
				EndLine:   m.EndLine,
				EndColumn: m.EndColumn,
				Rule:      rule,
				Severity:  sev,
				Message:   m.Message,
			})
		}
	}
	return issues, nil
}

// =============================================================================
// RUFF
// =============================================================================

type ruffIssue struct {
	Code        string       `json:"code"`
	Filename    string       `json:"filename"`
	Message     string       `json:"message"`
	URL         string       `json:"url"`
	Location    ruffLocation `json:"location"`
	EndLocation ruffLocation `json:"end_location"`
	Fix         *struct {
		Message string `json:"message"`
	} `json:"fix"`
}

type ruffLocation struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

func parseRuff(output []byte) ([]datatypes.Issue, error) {
	var raw []ruffIssue
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("parsing ruff output: %w", err)
	}
	issues := make([]datatypes.Issue, 0, len(raw))
	for _, ri := range raw {
		is := datatypes.Issue{
			File:      ri.Filename,
			Line:      ri.Location.Row,
			Column:    ri.Location.Column,
			EndLine:   ri.EndLocation.Row,
			EndColumn: ri.EndLocation.Column,
			Rule:      ri.Code,
			RuleURL:   ri.URL,
			Severity:  ruffSeverity(ri.Code),
			Message:   ri.Message,
		}
		if ri.Fix != nil {
			is.Suggestion = ri.Fix.Message
		}
		issues = append(issues, is)
	}
	return issues, nil
}

// ruffSeverity maps pyflakes (F) and syntax (E9) codes to errors.
func ruffSeverity(code string) datatypes.Severity {
	switch {
	case strings.HasPrefix(code, "F"), strings.HasPrefix(code, "E9"):
		return datatypes.SeverityError
	case strings.HasPrefix(code, "D"), strings.HasPrefix(code, "I"):
		return datatypes.SeverityInfo
	default:
		return datatypes.SeverityWarning
	}
}

// =============================================================================
// GOLANGCI-LINT
// =============================================================================

type golangciOutput struct {
	Issues []struct {
		FromLinter string `json:"FromLinter"`
		Text       string `json:"Text"`
		Severity   string `json:"Severity"`
		Pos        struct {
			Filename string `json:"Filename"`
			Line     int    `json:"Line"`
			Column   int    `json:"Column"`
		} `json:"Pos"`
		LineRange *struct {
			From int `json:"From"`
			To   int `json:"To"`
		} `json:"LineRange,omitempty"`
		Replacement *struct {
			NewLines []string `json:"NewLines"`
		} `json:"Replacement,omitempty"`
	} `json:"Issues"`
}

func parseGolangCI(output []byte) ([]datatypes.Issue, error) {
	var out golangciOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("parsing golangci-lint output: %w", err)
	}
	issues := make([]datatypes.Issue, 0, len(out.Issues))
	for _, gi := range out.Issues {
		is := datatypes.Issue{
			File:     gi.Pos.Filename,
			Line:     gi.Pos.Line,
			Column:   gi.Pos.Column,
			Rule:     gi.FromLinter,
			Severity: datatypes.SeverityWarning,
			Message:  gi.Text,
		}
		if strings.EqualFold(gi.Severity, "error") {
			is.Severity = datatypes.SeverityError
		}
		if gi.LineRange != nil {
			is.EndLine = gi.LineRange.To
		}
		if gi.Replacement != nil && len(gi.Replacement.NewLines) > 0 {
			is.Suggestion = "replace with: " + strings.Join(gi.Replacement.NewLines, "\n")
		}
		issues = append(issues, is)
	}
	return issues, nil
}

// =============================================================================
// GO VET
// =============================================================================

var goVetLine = regexp.MustCompile(`^(?:vet: )?(\S+?\.go):(\d+):(?:(\d+):)?\s*(.*)$`)

func parseGoVet(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := goVetLine.FindStringSubmatch(strings.TrimSpace(l))
		if m == nil {
			continue
		}
		issues = append(issues, datatypes.Issue{
			File:     strings.TrimPrefix(m[1], "./"),
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Rule:     "govet",
			Severity: datatypes.SeverityError,
			Message:  m[4],
		})
	}
	return issues, nil
}

// =============================================================================
// UNIFIED DIFF (gofmt -d)
// =============================================================================

// parseUnifiedDiff reports one format issue per hunk.
func parseUnifiedDiff(output []byte) ([]datatypes.Issue, error) {
	if len(bytes.TrimSpace(output)) == 0 {
		return nil, nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff(output)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	var issues []datatypes.Issue
	for _, fd := range fileDiffs {
		name := strings.TrimPrefix(fd.NewName, "b/")
		if name == "" || name == "/dev/null" {
			name = strings.TrimSuffix(strings.TrimPrefix(fd.OrigName, "a/"), ".orig")
		}
		for _, h := range fd.Hunks {
			added, removed := hunkCounts(h.Body)
			issues = append(issues, datatypes.Issue{
				File:       name,
				Line:       int(h.OrigStartLine),
				EndLine:    int(h.OrigStartLine + h.OrigLines - 1),
				Rule:       "gofmt",
				Severity:   datatypes.SeverityWarning,
				Message:    fmt.Sprintf("file is not formatted (%d line(s) differ, %d to add)", removed, added),
				Suggestion: "run gofmt -w",
			})
		}
	}
	return issues, nil
}

func hunkCounts(body []byte) (added, removed int) {
	for _, l := range bytes.Split(body, []byte("\n")) {
		switch {
		case bytes.HasPrefix(l, []byte("+")):
			added++
		case bytes.HasPrefix(l, []byte("-")):
			removed++
		}
	}
	return added, removed
}

// =============================================================================
// JAVAC / CHECKSTYLE
// =============================================================================

var (
	javacLine      = regexp.MustCompile(`^(.+?\.java):(\d+):\s*(error|warning):\s*(?:\[(\w+)\]\s*)?(.*)$`)
	checkstyleLine = regexp.MustCompile(`^\[(ERROR|WARN|INFO)\]\s+(.+?):(\d+)(?::(\d+))?:\s*(.*?)(?:\s+\[(\w+)\])?$`)
)

func parseJavac(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	ls := lines(output)
	for i, l := range ls {
		m := javacLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		is := datatypes.Issue{
			File:     m[1],
			Line:     atoi(m[2]),
			Rule:     m[4],
			Severity: datatypes.SeverityFromString(m[3]),
			Message:  m[5],
		}
		// javac prints the source line, then a caret line.
		if i+2 < len(ls) {
			if c := strings.Index(ls[i+2], "^"); c >= 0 && strings.TrimSpace(ls[i+2]) == "^" {
				is.Column = c + 1
			}
		}
		issues = append(issues, is)
	}
	return issues, nil
}

func parseCheckstyle(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := checkstyleLine.FindStringSubmatch(strings.TrimSpace(l))
		if m == nil {
			continue
		}
		issues = append(issues, datatypes.Issue{
			File:     m[2],
			Line:     atoi(m[3]),
			Column:   atoi(m[4]),
			Rule:     m[6],
			Severity: datatypes.SeverityFromString(m[1]),
			Message:  m[5],
		})
	}
	return issues, nil
}

// =============================================================================
// YAMLLINT / TIDY / CSSLINT
// =============================================================================

var (
	// file:line:col: [level] message (rule)
	yamllintLine = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*\[(error|warning)\]\s*(.*?)(?:\s+\(([\w-]+)\))?$`)

	// line 3 column 1 - Warning: message
	tidyLine = regexp.MustCompile(`^line (\d+) column (\d+) - (Error|Warning|Info|Access):\s*(.*)$`)

	// file: line 3, col 5, Warning - message
	csslintLine = regexp.MustCompile(`^(.+?): line (\d+), col (\d+), (Error|Warning) - (.*)$`)
)

func parseYamllint(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := yamllintLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		issues = append(issues, datatypes.Issue{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Rule:     m[6],
			Severity: datatypes.SeverityFromString(m[4]),
			Message:  m[5],
		})
	}
	return issues, nil
}

func parseTidy(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := tidyLine.FindStringSubmatch(strings.TrimSpace(l))
		if m == nil {
			continue
		}
		sev := datatypes.SeverityFromString(m[3])
		if m[3] == "Access" {
			sev = datatypes.SeverityInfo
		}
		issues = append(issues, datatypes.Issue{
			Line:     atoi(m[1]),
			Column:   atoi(m[2]),
			Rule:     "tidy",
			Severity: sev,
			Message:  m[4],
		})
	}
	return issues, nil
}

func parseCSSLint(output []byte) ([]datatypes.Issue, error) {
	var issues []datatypes.Issue
	for _, l := range lines(output) {
		m := csslintLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		issues = append(issues, datatypes.Issue{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Rule:     "csslint",
			Severity: datatypes.SeverityFromString(m[4]),
			Message:  m[5],
		})
	}
	return issues, nil
}

// =============================================================================
// SHELLCHECK / HADOLINT
// =============================================================================

type shellcheckIssue struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	EndLine   int    `json:"endLine"`
	Column    int    `json:"column"`
	EndColumn int    `json:"endColumn"`
	Level     string `json:"level"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

func parseShellCheck(output []byte) ([]datatypes.Issue, error) {
	var raw []shellcheckIssue
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("parsing shellcheck output: %w", err)
	}
	issues := make([]datatypes.Issue, 0, len(raw))
	for _, si := range raw {
		code := fmt.Sprintf("SC%d", si.Code)
		issues = append(issues, datatypes.Issue{
			File:      si.File,
			Line:      si.Line,
			Column:    si.Column,
			EndLine:   si.EndLine,
			EndColumn: si.EndColumn,
			Rule:      code,
			RuleURL:   "https://www.shellcheck.net/wiki/" + code,
			Severity:  datatypes.SeverityFromString(si.Level),
			Message:   si.Message,
		})
	}
	return issues, nil
}

type hadolintIssue struct {
	Code    string `json:"code"`
	Column  int    `json:"column"`
	File    string `json:"file"`
	Level   string `json:"level"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func parseHadolint(output []byte) ([]datatypes.Issue, error) {
	var raw []hadolintIssue
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("parsing hadolint output: %w", err)
	}
	issues := make([]datatypes.Issue, 0, len(raw))
	for _, hi := range raw {
		is := datatypes.Issue{
			File:     hi.File,
			Line:     hi.Line,
			Column:   hi.Column,
			Rule:     hi.Code,
			Severity: datatypes.SeverityFromString(hi.Level),
			Message:  hi.Message,
		}
		if strings.HasPrefix(hi.Code, "DL") {
			is.RuleURL = "https://github.com/hadolint/hadolint/wiki/" + hi.Code
		}
		issues = append(issues, is)
	}
	return issues, nil
}
