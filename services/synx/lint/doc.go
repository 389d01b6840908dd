// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint dispatches a file to the checkers for its language and
// folds their findings into one datatypes.Result.
//
// # Pipeline
//
// For each file the Runner:
//
//	custom validator? ──yes──▶ run it, done
//	        │no
//	        ▼
//	tree-sitter syntax check ──fail──▶ invalid, done
//	        │
//	        ▼
//	language steps (compiler, then linters/type checkers in strict mode)
//	        │
//	        ▼
//	built-in Python style rules (strict mode)
//
// # Steps
//
// A Step runs one external tool. Steps carry a When condition (always,
// strict, strict-or-verbose), a Kind, and the name of the parser for the
// tool's output:
//
//	| Language   | Always                     | Strict / verbose              |
//	|------------|----------------------------|-------------------------------|
//	| python     | python3 -m py_compile      | mypy, pylint (ruff fallback)  |
//	| javascript | node --check               | eslint                        |
//	| typescript | tsc --noEmit               | eslint                        |
//	| c / cpp    | gcc / g++ -fsyntax-only    | -Werror ..., gcc -fanalyzer   |
//	| rust       | rustc or cargo clippy      | -D warnings                   |
//	| csharp     | dotnet build, else mcs     | warnings as errors            |
//	| java       | javac -Xlint:all           | checkstyle                    |
//	| go         | go vet                     | gofmt -d, golangci-lint       |
//	| yaml       | yamllint                   | default instead of relaxed    |
//	| html       | tidy                       | warnings shown                |
//	| css        | csslint                    |                               |
//	| shell      | shellcheck                 | all severities                |
//	| dockerfile | hadolint                   | all severities                |
//
// JSON is decoded in-process.
//
// # Missing tools
//
// A missing required tool leaves the file skipped, which passes unless
// strict mode is on. A missing optional tool is recorded on the step
// outcome and otherwise ignored.
//
// # Thread Safety
//
// Runner is safe for concurrent use.
package lint
