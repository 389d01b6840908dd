// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools reports which external validators are installed.
//
// A Requirement names a binary, how to ask it for its version and the
// oldest version synx supports. Detector resolves requirements through the
// lint Executor, so availability checks and validation share one view of
// PATH.
package tools

import (
	"regexp"
	"sort"
)

// Requirement describes one external tool.
type Requirement struct {
	// Name is the executable looked up in PATH.
	Name string `json:"name"`

	Description string `json:"description"`

	// VersionArgs are passed to Name to print its version. Empty skips the
	// version check.
	VersionArgs []string `json:"version_args,omitempty"`

	// VersionPattern's first capture group is the version number.
	VersionPattern string `json:"version_pattern,omitempty"`

	// MinVersion is the oldest supported version, e.g. "3.8.0". Empty
	// accepts any version.
	MinVersion string `json:"min_version,omitempty"`

	Alternatives []string `json:"alternatives,omitempty"`
	InstallHint  string   `json:"install_hint"`
	InfoURL      string   `json:"info_url,omitempty"`
}

// genericVersion is used when a requirement has VersionArgs but no pattern.
var genericVersion = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

var catalogue = map[string]Requirement{
	"python3": {
		Name: "python3", Description: "Python interpreter",
		VersionArgs: []string{"--version"}, VersionPattern: `Python (\d+\.\d+\.\d+)`, MinVersion: "3.8.0",
		InstallHint: "Install using your system's package manager", InfoURL: "https://www.python.org",
	},
	"mypy": {
		Name: "mypy", Description: "Python static type checker",
		VersionArgs: []string{"--version"}, VersionPattern: `mypy (\d+\.\d+\.\d+)`, MinVersion: "1.0.0",
		Alternatives: []string{"pyright"},
		InstallHint:  "pip install mypy", InfoURL: "https://mypy.readthedocs.io",
	},
	"pylint": {
		Name: "pylint", Description: "Python linter",
		VersionArgs: []string{"--version"}, VersionPattern: `pylint (\d+\.\d+\.\d+)`, MinVersion: "2.0.0",
		Alternatives: []string{"ruff"},
		InstallHint:  "pip install pylint", InfoURL: "https://pylint.readthedocs.io",
	},
	"ruff": {
		Name: "ruff", Description: "Fast Python linter",
		VersionArgs: []string{"--version"}, VersionPattern: `ruff (\d+\.\d+\.\d+)`,
		InstallHint: "pip install ruff", InfoURL: "https://docs.astral.sh/ruff",
	},
	"node": {
		Name: "node", Description: "Node.js JavaScript runtime",
		VersionArgs: []string{"--version"}, VersionPattern: `v(\d+\.\d+\.\d+)`, MinVersion: "18.0.0",
		Alternatives: []string{"deno"},
		InstallHint:  "Visit https://nodejs.org for installation instructions", InfoURL: "https://nodejs.org",
	},
	"eslint": {
		Name: "eslint", Description: "JavaScript linter",
		VersionArgs: []string{"--version"}, VersionPattern: `v(\d+\.\d+\.\d+)`, MinVersion: "8.0.0",
		InstallHint: "npm install -g eslint", InfoURL: "https://eslint.org",
	},
	"tsc": {
		Name: "tsc", Description: "TypeScript compiler",
		VersionArgs: []string{"--version"}, VersionPattern: `Version (\d+\.\d+\.\d+)`, MinVersion: "4.0.0",
		InstallHint: "npm install -g typescript", InfoURL: "https://www.typescriptlang.org",
	},
	"gcc": {
		Name: "gcc", Description: "GNU C compiler",
		VersionArgs: []string{"--version"}, VersionPattern: `gcc \(.*\) (\d+\.\d+\.\d+)`, MinVersion: "9.0.0",
		Alternatives: []string{"clang"},
		InstallHint:  "Install using your system's package manager", InfoURL: "https://gcc.gnu.org",
	},
	"g++": {
		Name: "g++", Description: "GNU C++ compiler",
		VersionArgs: []string{"--version"}, VersionPattern: `g\+\+ \(.*\) (\d+\.\d+\.\d+)`, MinVersion: "9.0.0",
		Alternatives: []string{"clang++"},
		InstallHint:  "Install using your system's package manager", InfoURL: "https://gcc.gnu.org",
	},
	"clang": {
		Name: "clang", Description: "LLVM C compiler",
		VersionArgs: []string{"--version"}, VersionPattern: `clang version (\d+\.\d+\.\d+)`,
		InstallHint: "Install using your system's package manager", InfoURL: "https://clang.llvm.org",
	},
	"rustc": {
		Name: "rustc", Description: "Rust compiler",
		VersionArgs: []string{"--version"}, VersionPattern: `rustc (\d+\.\d+\.\d+)`, MinVersion: "1.70.0",
		InstallHint: "Visit https://rustup.rs for installation instructions", InfoURL: "https://www.rust-lang.org",
	},
	"cargo": {
		Name: "cargo", Description: "Rust package manager (clippy)",
		VersionArgs: []string{"--version"}, VersionPattern: `cargo (\d+\.\d+\.\d+)`,
		InstallHint: "Visit https://rustup.rs for installation instructions", InfoURL: "https://doc.rust-lang.org/cargo",
	},
	"go": {
		Name: "go", Description: "Go toolchain",
		VersionArgs: []string{"version"}, VersionPattern: `go(\d+\.\d+(?:\.\d+)?)`, MinVersion: "1.21.0",
		InstallHint: "Visit https://go.dev/dl for installation instructions", InfoURL: "https://go.dev",
	},
	"gofmt": {
		Name: "gofmt", Description: "Go formatter (ships with the Go toolchain)",
		InstallHint: "Install the Go toolchain", InfoURL: "https://pkg.go.dev/cmd/gofmt",
	},
	"golangci-lint": {
		Name: "golangci-lint", Description: "Go linters aggregator",
		VersionArgs: []string{"--version"}, VersionPattern: `version v?(\d+\.\d+\.\d+)`,
		InstallHint: "Visit https://golangci-lint.run for installation instructions", InfoURL: "https://golangci-lint.run",
	},
	"javac": {
		Name: "javac", Description: "Java compiler",
		VersionArgs: []string{"-version"}, VersionPattern: `javac (\d+(?:\.\d+)*)`, MinVersion: "11.0.0",
		InstallHint: "Install a JDK using your system's package manager", InfoURL: "https://openjdk.org",
	},
	"checkstyle": {
		Name: "checkstyle", Description: "Java style checker",
		VersionArgs: []string{"--version"},
		InstallHint: "Install using your system's package manager", InfoURL: "https://checkstyle.org",
	},
	"dotnet": {
		Name: "dotnet", Description: ".NET SDK",
		VersionArgs: []string{"--version"}, VersionPattern: `(\d+\.\d+\.\d+)`,
		Alternatives: []string{"mcs"},
		InstallHint:  "Visit https://dotnet.microsoft.com for installation instructions", InfoURL: "https://dotnet.microsoft.com",
	},
	"mcs": {
		Name: "mcs", Description: "Mono C# compiler",
		VersionArgs: []string{"--version"}, VersionPattern: `(\d+\.\d+\.\d+)`,
		InstallHint: "Install mono using your system's package manager", InfoURL: "https://www.mono-project.com",
	},
	"yamllint": {
		Name: "yamllint", Description: "YAML linter",
		VersionArgs: []string{"--version"}, VersionPattern: `yamllint (\d+\.\d+\.\d+)`,
		InstallHint: "pip install yamllint", InfoURL: "https://yamllint.readthedocs.io",
	},
	"tidy": {
		Name: "tidy", Description: "HTML validator",
		VersionArgs: []string{"-version"}, VersionPattern: `version (\d+\.\d+\.\d+)`,
		InstallHint: "Install tidy using your system's package manager", InfoURL: "https://www.html-tidy.org",
	},
	"csslint": {
		Name: "csslint", Description: "CSS linter",
		VersionArgs: []string{"--version"}, VersionPattern: `v?(\d+\.\d+\.\d+)`,
		InstallHint: "npm install -g csslint", InfoURL: "https://github.com/CSSLint/csslint",
	},
	"shellcheck": {
		Name: "shellcheck", Description: "Shell script analyzer",
		VersionArgs: []string{"--version"}, VersionPattern: `version: (\d+\.\d+\.\d+)`,
		InstallHint: "Install shellcheck using your system's package manager", InfoURL: "https://www.shellcheck.net",
	},
	"hadolint": {
		Name: "hadolint", Description: "Dockerfile linter",
		VersionArgs: []string{"--version"}, VersionPattern: `(\d+\.\d+\.\d+)`,
		InstallHint: "Visit https://github.com/hadolint/hadolint for installation instructions", InfoURL: "https://github.com/hadolint/hadolint",
	},
}

// Lookup returns the catalogued requirement for name. Unknown names get a
// presence-only requirement.
func Lookup(name string) (Requirement, bool) {
	if r, ok := catalogue[name]; ok {
		return r, true
	}
	return Requirement{
		Name:        name,
		InstallHint: "Install " + name + " and make sure it is on PATH",
	}, false
}

// Catalogue returns every known requirement sorted by name.
func Catalogue() []Requirement {
	out := make([]Requirement, 0, len(catalogue))
	for _, r := range catalogue {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
