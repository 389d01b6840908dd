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
	"fmt"
	"os"
	"strings"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/detect"
)

// =============================================================================
// PIPELINE BUILDERS
// =============================================================================

// BuildPipeline returns the external steps for a language.
//
// Description:
//
//	Translates the validators.<lang> section of cfg into steps. Flags that
//	depend on strictness are resolved here from cfg.General.Strict; steps
//	that only run in some modes carry a When condition instead. Languages
//	without external tools (JSON, TOML, Markdown, unknown) return an empty
//	pipeline.
//
// Inputs:
//
//	lang - The detected language
//	cfg - The effective configuration
//
// Outputs:
//
//	Pipeline - Possibly empty, never nil steps slice for known languages
func BuildPipeline(lang detect.Language, cfg *config.Config) Pipeline {
	strict := cfg.General.Strict
	v := cfg.Validators

	var steps []Step
	switch lang {
	case detect.Python:
		steps = pythonSteps(v.Python, strict, cfg.PylintThreshold())
	case detect.JavaScript:
		steps = javascriptSteps(v.JavaScript, strict)
	case detect.TypeScript:
		steps = typescriptSteps(v.TypeScript, strict)
	case detect.C:
		steps = cSteps(v.C.Compiler, "gcc", v.C.Standard, v.C.IncludePaths, strict, v.C.CheckMemory)
	case detect.Cpp:
		steps = cSteps(v.Cpp.Compiler, "g++", v.Cpp.Standard, v.Cpp.IncludePaths, strict, false)
	case detect.Rust:
		steps = rustSteps(v.Rust, strict)
	case detect.CSharp:
		steps = csharpSteps(v.CSharp, strict)
	case detect.Java:
		steps = javaSteps(v.Java, strict)
	case detect.Go:
		steps = goSteps(v.Go)
	case detect.YAML:
		steps = yamlSteps(v.YAML, strict)
	case detect.HTML:
		steps = htmlSteps(v.HTML, strict)
	case detect.CSS:
		steps = cssSteps(v.CSS)
	case detect.Shell:
		steps = shellSteps(v.Shell, strict)
	case detect.Dockerfile:
		steps = dockerfileSteps(v.Dockerfile, strict)
	}
	return Pipeline{Language: string(lang), Steps: steps}
}

func pythonSteps(c config.PythonConfig, strict bool, threshold float64) []Step {
	interp := c.Interpreter
	if interp == "" {
		interp = "python3"
	}

	mypyArgs := []string{"--show-column-numbers", "--no-error-summary"}
	if c.MypyStrict {
		mypyArgs = append(mypyArgs, "--strict")
	}

	pylintArgs := []string{
		fmt.Sprintf("--fail-under=%.1f", threshold),
		"--output-format=text",
		"--score=n",
	}
	if len(c.IgnoreRules) > 0 {
		pylintArgs = append(pylintArgs, "--disable="+strings.Join(c.IgnoreRules, ","))
	}
	if c.MaxLineLength > 0 {
		pylintArgs = append(pylintArgs, fmt.Sprintf("--max-line-length=%d", c.MaxLineLength))
	}

	ruffArgs := []string{"check", "--output-format=json", "--exit-zero"}
	if len(c.IgnoreRules) > 0 {
		ruffArgs = append(ruffArgs, "--ignore="+strings.Join(c.IgnoreRules, ","))
	}

	return []Step{
		{
			Name:     "py_compile",
			Kind:     datatypes.KindSyntax,
			Command:  interp,
			Args:     []string{"-m", "py_compile"},
			Required: true,
			Parser:   "python",
		},
		{
			Name:     "mypy",
			Kind:     datatypes.KindType,
			Command:  "mypy",
			Args:     mypyArgs,
			When:     WhenStrictOrVerbose,
			Advisory: true,
			Parser:   "mypy",
			Stream:   StreamStdout,
		},
		{
			Name:     "pylint",
			Kind:     datatypes.KindLint,
			Command:  "pylint",
			Args:     pylintArgs,
			When:     WhenStrictOrVerbose,
			Advisory: true,
			Parser:   "pylint",
			Stream:   StreamStdout,
			Fallback: &Step{
				Name:     "ruff",
				Kind:     datatypes.KindLint,
				Command:  "ruff",
				Args:     ruffArgs,
				When:     WhenStrictOrVerbose,
				Advisory: true,
				Parser:   "ruff",
				Stream:   StreamStdout,
			},
		},
	}
}

func javascriptSteps(c config.JavaScriptConfig, strict bool) []Step {
	eslintArgs := []string{"--format=json", "--no-error-on-unmatched-pattern"}
	if c.ESLintConfig != "" {
		eslintArgs = append(eslintArgs, "--config", c.ESLintConfig)
	}
	if strict {
		eslintArgs = append(eslintArgs, "--max-warnings=0")
	}
	return []Step{
		{
			Name:     "node_check",
			Kind:     datatypes.KindSyntax,
			Command:  "node",
			Args:     []string{"--check"},
			Required: true,
			Parser:   "node",
			Stream:   StreamStderr,
		},
		{
			Name:     "eslint",
			Kind:     datatypes.KindLint,
			Command:  "eslint",
			Args:     eslintArgs,
			When:     WhenStrictOrVerbose,
			Advisory: true,
			Parser:   "eslint",
			Stream:   StreamStdout,
		},
	}
}

func typescriptSteps(c config.TypeScriptConfig, strict bool) []Step {
	tsc := Step{
		Name:     "tsc",
		Kind:     datatypes.KindType,
		Command:  "tsc",
		Required: true,
		Parser:   "msvc",
	}
	if c.TSConfig != "" {
		// tsc rejects file arguments together with --project.
		tsc.Args = []string{"--noEmit", "--pretty", "false", "--project", c.TSConfig}
		tsc.NoFile = true
	} else {
		tsc.Args = []string{"--noEmit", "--pretty", "false", "--strict"}
		if strict {
			tsc.Args = append(tsc.Args,
				"--noImplicitAny",
				"--noImplicitThis",
				"--alwaysStrict",
				"--strictNullChecks",
				"--strictFunctionTypes",
				"--strictPropertyInitialization",
			)
		}
	}

	eslintArgs := []string{"--format=json", "--no-error-on-unmatched-pattern"}
	if c.ESLintConfig != "" {
		eslintArgs = append(eslintArgs, "--config", c.ESLintConfig)
	}
	return []Step{
		tsc,
		{
			Name:    "eslint",
			Kind:    datatypes.KindLint,
			Command: "eslint",
			Args:    eslintArgs,
			When:    WhenStrict,
			Parser:  "eslint",
			Stream:  StreamStdout,
		},
	}
}

func cSteps(compiler, fallback, std string, includes []string, strict, checkMemory bool) []Step {
	if compiler == "" {
		compiler = fallback
	}
	args := []string{"-fsyntax-only", "-Wall", "-pedantic"}
	for _, inc := range includes {
		args = append(args, "-I"+inc)
	}
	if std != "" {
		args = append(args, "-std="+std)
	}
	if strict {
		args = append(args,
			"-Werror",
			"-Wextra",
			"-Wconversion",
			"-Wformat=2",
			"-Wuninitialized",
		)
		if fallback == "gcc" {
			args = append(args, "-Wmissing-prototypes")
		}
	}

	steps := []Step{{
		Name:     "compile",
		Kind:     datatypes.KindSyntax,
		Command:  compiler,
		Args:     args,
		Required: true,
		Parser:   "gcc",
		Stream:   StreamStderr,
	}}

	if checkMemory {
		memArgs := []string{"-fanalyzer", "-c", "-o", PlaceholderTmp + string(os.PathSeparator) + "out.o"}
		if std != "" {
			memArgs = append(memArgs, "-std="+std)
		}
		for _, inc := range includes {
			memArgs = append(memArgs, "-I"+inc)
		}
		steps = append(steps, Step{
			Name:    "analyzer",
			Kind:    datatypes.KindMemory,
			Command: compiler,
			Args:    append(memArgs, "-Werror=analyzer-malloc-leak", "-Werror=analyzer-use-of-uninitialized-value"),
			When:    WhenStrict,
			Parser:  "gcc",
			Stream:  StreamStderr,
		})
	}
	return steps
}

func rustSteps(c config.RustConfig, strict bool) []Step {
	if c.Clippy {
		args := []string{"clippy", "--quiet", "--message-format=short"}
		extra := append([]string(nil), c.ClippyFlags...)
		if strict {
			extra = append(extra, "-D", "warnings")
		}
		if len(extra) > 0 {
			args = append(args, "--")
			args = append(args, extra...)
		}
		return []Step{{
			Name:     "clippy",
			Kind:     datatypes.KindLint,
			Command:  "cargo",
			Args:     args,
			Required: true,
			NoFile:   true,
			InDir:    true,
			Parser:   "gcc",
			Stream:   StreamStderr,
		}}
	}

	edition := c.Edition
	if edition == "" {
		edition = "2021"
	}
	args := []string{
		"--edition=" + edition,
		"--crate-type=lib",
		"--error-format=short",
		"--emit=metadata",
		"-A", "dead_code",
		"--out-dir", PlaceholderTmp,
	}
	if strict {
		args = append(args, "-D", "warnings")
	}
	return []Step{{
		Name:     "rustc",
		Kind:     datatypes.KindSyntax,
		Command:  "rustc",
		Args:     args,
		Required: true,
		Parser:   "gcc",
		Stream:   StreamStderr,
	}}
}

func csharpSteps(c config.CSharpConfig, strict bool) []Step {
	warn := "-warn:1"
	if strict {
		warn = "-warn:4"
	}
	mcsArgs := []string{"-out:" + PlaceholderTmp + string(os.PathSeparator) + "out.dll", "-target:library", warn}
	if strict {
		mcsArgs = append(mcsArgs, "-warnaserror")
	}
	mcs := Step{
		Name:     "mcs",
		Kind:     datatypes.KindSyntax,
		Command:  "mcs",
		Args:     mcsArgs,
		Required: true,
		Parser:   "msvc",
	}
	if !c.UseDotnet {
		return []Step{mcs}
	}

	dotnetArgs := []string{"build", "-nologo", "-v", "q"}
	if c.Framework != "" {
		dotnetArgs = append(dotnetArgs, "-f", c.Framework)
	}
	if strict {
		dotnetArgs = append(dotnetArgs, "/warnaserror")
	}
	return []Step{{
		Name:     "dotnet_build",
		Kind:     datatypes.KindSyntax,
		Command:  "dotnet",
		Args:     dotnetArgs,
		Required: true,
		NoFile:   true,
		InDir:    true,
		Parser:   "msvc",
		Stream:   StreamStdout,
		Fallback: &mcs,
	}}
}

func javaSteps(c config.JavaConfig, strict bool) []Step {
	args := []string{"-Xlint:all", "-d", PlaceholderTmp}
	if strict {
		args = append([]string{"-Werror"}, args...)
	}
	if c.Version != "" {
		args = append(args, "--release", c.Version)
	}
	steps := []Step{{
		Name:     "javac",
		Kind:     datatypes.KindSyntax,
		Command:  "javac",
		Args:     args,
		Required: true,
		Parser:   "javac",
		Stream:   StreamStderr,
	}}
	if c.CheckstyleConfig != "" {
		steps = append(steps, Step{
			Name:    "checkstyle",
			Kind:    datatypes.KindLint,
			Command: "checkstyle",
			Args:    []string{"-c", c.CheckstyleConfig},
			When:    WhenStrict,
			Parser:  "checkstyle",
			Stream:  StreamStdout,
		})
	}
	return steps
}

func goSteps(c config.GoConfig) []Step {
	golangciArgs := []string{"run", "--out-format=json"}
	golangciArgs = append(golangciArgs, c.LintFlags...)

	steps := []Step{
		{
			Name:     "go_vet",
			Kind:     datatypes.KindSyntax,
			Command:  "go",
			Args:     []string{"vet", PlaceholderFile},
			Required: true,
			InDir:    true,
			Parser:   "govet",
			Stream:   StreamStderr,
		},
	}
	if c.Test {
		steps = append(steps, Step{
			Name:    "go_test",
			Kind:    datatypes.KindTest,
			Command: "go",
			Args:    []string{"test", "./"},
			NoFile:  true,
			InDir:   true,
			Parser:  "govet",
		})
	}
	return append(steps,
		Step{
			Name:         "gofmt",
			Kind:         datatypes.KindFormat,
			Command:      "gofmt",
			Args:         []string{"-d"},
			When:         WhenStrict,
			FailOnOutput: true,
			Parser:       "diff",
			Stream:       StreamStdout,
		},
		Step{
			Name:    "golangci_lint",
			Kind:    datatypes.KindLint,
			Command: "golangci-lint",
			Args:    golangciArgs,
			When:    WhenStrict,
			NoFile:  true,
			InDir:   true,
			Parser:  "golangci",
			Stream:  StreamStdout,
		},
	)
}

func yamlSteps(c config.YAMLConfig, strict bool) []Step {
	args := []string{"-f", "parsable"}
	switch {
	case c.CustomConfig != "":
		args = append(args, "-c", c.CustomConfig)
	case strict:
		args = append(args, "-d", "{extends: default, rules: {line-length: disable}}")
	default:
		args = append(args, "-d", "{extends: relaxed, rules: {line-length: disable}}")
	}
	return []Step{{
		Name:     "yamllint",
		Kind:     datatypes.KindLint,
		Command:  "yamllint",
		Args:     args,
		Required: true,
		Parser:   "yamllint",
		Stream:   StreamStdout,
	}}
}

func htmlSteps(c config.HTMLConfig, strict bool) []Step {
	show := "no"
	var accept []int
	if strict {
		show = "yes"
	} else {
		// tidy exits 1 for warnings only.
		accept = []int{1}
	}
	args := append([]string{"-q", "-e", "--show-warnings", show}, c.TidyFlags...)
	return []Step{{
		Name:       "tidy",
		Kind:       datatypes.KindSyntax,
		Command:    "tidy",
		Args:       args,
		Required:   true,
		AcceptExit: accept,
		Parser:     "tidy",
		Stream:     StreamStderr,
	}}
}

func cssSteps(c config.CSSConfig) []Step {
	args := append([]string{"--format=compact"}, c.CSSLintFlags...)
	return []Step{{
		Name:     "csslint",
		Kind:     datatypes.KindLint,
		Command:  "csslint",
		Args:     args,
		Required: true,
		Parser:   "csslint",
		Stream:   StreamStdout,
	}}
}

func shellSteps(c config.ShellConfig, strict bool) []Step {
	args := []string{"-f", "json"}
	if !strict {
		args = append(args, "--severity=error")
	}
	if c.ShellType != "" {
		args = append(args, "--shell="+c.ShellType)
	}
	if len(c.IgnoreRules) > 0 {
		args = append(args, "--exclude="+strings.Join(c.IgnoreRules, ","))
	}
	return []Step{{
		Name:     "shellcheck",
		Kind:     datatypes.KindLint,
		Command:  "shellcheck",
		Args:     args,
		Required: true,
		Parser:   "shellcheck",
		Stream:   StreamStdout,
	}}
}

func dockerfileSteps(c config.DockerfileConfig, strict bool) []Step {
	args := []string{"-f", "json"}
	if !strict {
		args = append(args, "--failure-threshold=error")
	}
	for _, rule := range c.IgnoreRules {
		args = append(args, "--ignore", rule)
	}
	return []Step{{
		Name:     "hadolint",
		Kind:     datatypes.KindLint,
		Command:  "hadolint",
		Args:     args,
		Required: true,
		Parser:   "hadolint",
		Stream:   StreamStdout,
	}}
}
