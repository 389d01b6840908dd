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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/detect"
)

func stepNames(steps []Step) []string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	return names
}

func findStep(t *testing.T, p Pipeline, name string) Step {
	t.Helper()
	for _, s := range p.Steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %q not in pipeline %v", name, stepNames(p.Steps))
	return Step{}
}

func TestBuildPipeline_ActiveSteps(t *testing.T) {
	tests := []struct {
		lang    detect.Language
		normal  []string
		verbose []string
		strict  []string
	}{
		{detect.Python, []string{"py_compile"}, []string{"py_compile", "mypy", "pylint"}, []string{"py_compile", "mypy", "pylint"}},
		{detect.JavaScript, []string{"node_check"}, []string{"node_check", "eslint"}, []string{"node_check", "eslint"}},
		{detect.TypeScript, []string{"tsc"}, []string{"tsc"}, []string{"tsc", "eslint"}},
		{detect.C, []string{"compile"}, []string{"compile"}, []string{"compile"}},
		{detect.Go, []string{"go_vet"}, []string{"go_vet"}, []string{"go_vet", "gofmt", "golangci_lint"}},
		{detect.Java, []string{"javac"}, []string{"javac"}, []string{"javac", "checkstyle"}},
		{detect.Shell, []string{"shellcheck"}, []string{"shellcheck"}, []string{"shellcheck"}},
		{detect.Markdown, []string{}, []string{}, []string{}},
		{detect.JSON, []string{}, []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			cfg := config.DefaultConfig()
			p := BuildPipeline(tt.lang, cfg)
			assert.Equal(t, tt.normal, stepNames(p.Active(false, false)))
			assert.Equal(t, tt.verbose, stepNames(p.Active(false, true)))
			assert.Equal(t, tt.strict, stepNames(p.Active(true, false)))
		})
	}
}

func TestBuildPipeline_Python(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Validators.Python.IgnoreRules = []string{"C0114", "C0116"}
	cfg.Validators.Python.MypyStrict = true

	p := BuildPipeline(detect.Python, cfg)
	compile := findStep(t, p, "py_compile")
	assert.Equal(t, "python3", compile.Command)
	assert.True(t, compile.Required)
	assert.Equal(t, "python3 -m py_compile {file}", compile.CommandLine())

	assert.Contains(t, findStep(t, p, "mypy").Args, "--strict")

	pylint := findStep(t, p, "pylint")
	assert.Contains(t, pylint.Args, "--fail-under=7.0")
	assert.Contains(t, pylint.Args, "--disable=C0114,C0116")
	assert.Contains(t, pylint.Args, "--max-line-length=99")
	require.NotNil(t, pylint.Fallback)
	assert.Equal(t, "ruff", pylint.Fallback.Command)
	assert.Contains(t, pylint.Fallback.Args, "--ignore=C0114,C0116")

	cfg.General.Strict = true
	pylint = findStep(t, BuildPipeline(detect.Python, cfg), "pylint")
	assert.Contains(t, pylint.Args, "--fail-under=9.0")

	threshold := 8.5
	cfg.Validators.Python.PylintThreshold = &threshold
	pylint = findStep(t, BuildPipeline(detect.Python, cfg), "pylint")
	assert.Contains(t, pylint.Args, "--fail-under=8.5")
}

func TestBuildPipeline_C(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Validators.C.IncludePaths = []string{"include"}
	cfg.Validators.C.CheckMemory = true

	normal := BuildPipeline(detect.C, cfg)
	compile := findStep(t, normal, "compile")
	assert.Equal(t, "gcc", compile.Command)
	assert.Contains(t, compile.Args, "-Iinclude")
	assert.Contains(t, compile.Args, "-std=c11")
	assert.NotContains(t, compile.Args, "-Werror")

	cfg.General.Strict = true
	strict := BuildPipeline(detect.C, cfg)
	compile = findStep(t, strict, "compile")
	assert.Contains(t, compile.Args, "-Werror")
	assert.Contains(t, compile.Args, "-Wmissing-prototypes")
	assert.Equal(t, []string{"compile", "analyzer"}, stepNames(strict.Active(true, false)))

	cpp := findStep(t, BuildPipeline(detect.Cpp, cfg), "compile")
	assert.Equal(t, "g++", cpp.Command)
	assert.Contains(t, cpp.Args, "-std=c++17")
	assert.NotContains(t, cpp.Args, "-Wmissing-prototypes")
}

func TestBuildPipeline_Rust(t *testing.T) {
	cfg := config.DefaultConfig()
	rustc := findStep(t, BuildPipeline(detect.Rust, cfg), "rustc")
	assert.Contains(t, rustc.Args, "--edition=2021")
	assert.NotContains(t, rustc.Args, "warnings")

	cfg.General.Strict = true
	cfg.Validators.Rust.Clippy = true
	clippy := findStep(t, BuildPipeline(detect.Rust, cfg), "clippy")
	assert.Equal(t, "cargo", clippy.Command)
	assert.True(t, clippy.NoFile)
	assert.True(t, clippy.InDir)
	assert.Equal(t, []string{"clippy", "--quiet", "--message-format=short", "--", "-D", "warnings"}, clippy.Args)
}

func TestBuildPipeline_CSharpFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	p := BuildPipeline(detect.CSharp, cfg)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "dotnet", p.Steps[0].Command)
	require.NotNil(t, p.Steps[0].Fallback)
	assert.Equal(t, "mcs", p.Steps[0].Fallback.Command)
	assert.Equal(t, []string{"dotnet", "mcs"}, p.Tools())

	cfg.Validators.CSharp.UseDotnet = false
	p = BuildPipeline(detect.CSharp, cfg)
	assert.Equal(t, "mcs", p.Steps[0].Command)
}

func TestBuildPipeline_TypeScriptProject(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Validators.TypeScript.TSConfig = "tsconfig.json"
	tsc := findStep(t, BuildPipeline(detect.TypeScript, cfg), "tsc")
	assert.True(t, tsc.NoFile)
	assert.Equal(t, "tsc --noEmit --pretty false --project tsconfig.json", tsc.CommandLine())
}

func TestBuildPipeline_HTMLAcceptsWarningsExit(t *testing.T) {
	cfg := config.DefaultConfig()
	tidy := findStep(t, BuildPipeline(detect.HTML, cfg), "tidy")
	assert.True(t, tidy.accepts(1))
	assert.False(t, tidy.accepts(2))
	assert.Contains(t, tidy.Args, "no")

	cfg.General.Strict = true
	tidy = findStep(t, BuildPipeline(detect.HTML, cfg), "tidy")
	assert.False(t, tidy.accepts(1))
	assert.Contains(t, tidy.Args, "yes")
}

func TestExpandArgs(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want []string
	}{
		{
			name: "file appended",
			step: Step{Args: []string{"-m", "py_compile"}},
			want: []string{"-m", "py_compile", "/src/a.py"},
		},
		{
			name: "placeholders",
			step: Step{Args: []string{"--out-dir", PlaceholderTmp, PlaceholderFile}},
			want: []string{"--out-dir", "/tmp/x", "/src/a.py"},
		},
		{
			name: "in dir uses base name",
			step: Step{Args: []string{"vet", PlaceholderFile}, InDir: true},
			want: []string{"vet", "a.py"},
		},
		{
			name: "no file",
			step: Step{Args: []string{"build"}, NoFile: true},
			want: []string{"build"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandArgs(tt.step, "/src/a.py", "/tmp/x"))
		})
	}
}

func TestStepClone(t *testing.T) {
	fb := Step{Name: "fb", Args: []string{"x"}}
	s := Step{Name: "s", Args: []string{"a"}, Fallback: &fb}
	c := s.Clone()
	c.Args[0] = "changed"
	c.Fallback.Args[0] = "changed"
	assert.Equal(t, "a", s.Args[0])
	assert.Equal(t, "x", fb.Args[0])
}

func TestWhen(t *testing.T) {
	assert.True(t, WhenAlways.Active(false, false))
	assert.False(t, WhenStrict.Active(false, true))
	assert.True(t, WhenStrictOrVerbose.Active(false, true))
	assert.Equal(t, "strict-or-verbose", WhenStrictOrVerbose.String())
}
