// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/detect"
)

var rustRules = []Rule{
	{
		Code:        "R0001",
		Name:        "unused_variable",
		Language:    detect.Rust,
		Severity:    datatypes.SeverityWarning,
		Description: "Variable is defined but never used",
		Explanation: explanation(
			"Reported when a variable is bound but never read.",
			"An unused binding is usually left over from a refactor, or it is a value you meant to use and forgot.",
			"Unused variables add noise. A reader has to work out whether the value matters, and a forgotten use can hide a real bug.",
			"- Remove the variable\n- Use it where it was meant to be used\n- Prefix the name with an underscore (`_`) to mark it as intentionally unused",
		),
		IncorrectExample: `
fn process_data(data: &str) {
    let processed = data.trim(); // never used
    println!("Processing completed");
}
`,
		CorrectExample: `
fn process_data(data: &str) {
    let processed = data.trim();
    println!("Processing completed: {}", processed);
}

fn process_data_quietly(data: &str) {
    let _processed = data.trim();
    println!("Processing completed");
}
`,
		DocLink: "https://doc.rust-lang.org/rustc/lints/listing/warn-by-default.html#unused-variables",
		CommonFixes: []string{
			"Remove the variable declaration",
			"Use the variable in your code",
			"Prefix the variable name with an underscore (_)",
		},
		SeverityRationale: "A warning: the program still runs correctly, but the code carries something it does not need.",
	},
	{
		Code:        "R0002",
		Name:        "unused_import",
		Language:    detect.Rust,
		Severity:    datatypes.SeverityWarning,
		Description: "Imported item is never used",
		Explanation: explanation(
			"Reported when a `use` declaration brings in an item that the module never refers to.",
			"Imports name specific modules, functions or types. An import nobody uses is dead weight in the module header.",
			"Unused imports misstate what a module depends on and add a little compile work.",
			"Remove the import. If it is needed soon, add it back when the code that uses it lands.",
		),
		IncorrectExample: `
use std::collections::HashMap; // never used
use std::fs::File;

fn main() {
    let file = File::open("data.txt").unwrap();
}
`,
		CorrectExample: `
use std::fs::File;

fn main() {
    let file = File::open("data.txt").unwrap();
}
`,
		DocLink: "https://doc.rust-lang.org/rustc/lints/listing/warn-by-default.html#unused-imports",
		CommonFixes: []string{
			"Remove the unused import",
		},
		SeverityRationale: "A warning: runtime behaviour is unaffected.",
	},
	{
		Code:        "R0003",
		Name:        "unused_must_use",
		Language:    detect.Rust,
		Severity:    datatypes.SeverityWarning,
		Description: "Return value of a #[must_use] function is discarded",
		Explanation: explanation(
			"Reported when the result of a function or type marked `#[must_use]` is dropped.",
			"`#[must_use]` marks values whose loss is almost always a mistake. `Result` is the common case: dropping it drops the error.",
			"A discarded `Result` means a failed file operation or network call goes unnoticed.",
			"- Bind the value and use it\n- Handle it with `match`, `if let` or `?`\n- Discard it on purpose with `let _ = ...`",
		),
		IncorrectExample: `
fn main() {
    std::fs::File::open("file.txt"); // error ignored
}
`,
		CorrectExample: `
fn main() {
    match std::fs::File::open("file.txt") {
        Ok(_file) => {}
        Err(e) => println!("Error opening file: {}", e),
    }

    let _ = std::fs::File::open("file.txt");
}
`,
		DocLink: "https://doc.rust-lang.org/rustc/lints/listing/warn-by-default.html#unused-must-use",
		CommonFixes: []string{
			"Handle the return value with a match or if let",
			"Use .unwrap() or .expect() where a panic is acceptable",
			"Explicitly discard with let _ = ...",
		},
		SeverityRationale: "A warning: ignoring the value is often a bug, but an explicit discard is sometimes correct.",
	},
	{
		Code:        "R0004",
		Name:        "dead_code",
		Language:    detect.Rust,
		Severity:    datatypes.SeverityWarning,
		Description: "Code is never used or reachable",
		Explanation: explanation(
			"Reported for items that are never used and statements that can never run.",
			"Dead code includes functions nobody calls, statements after a `return`, and branches behind constant conditions.",
			"It still has to be read and maintained, and its presence often points at a logic error.",
			"Remove it, make it reachable, or mark intentionally unused items with `#[allow(dead_code)]`.",
		),
		IncorrectExample: `
fn main() {
    println!("Hello, world!");
    return;
    println!("never printed");
}

fn unused_function() {}
`,
		CorrectExample: `
fn main() {
    println!("Hello, world!");
}

#[allow(dead_code)]
fn reserved_for_later() {}
`,
		DocLink: "https://doc.rust-lang.org/rustc/lints/listing/warn-by-default.html#dead-code",
		CommonFixes: []string{
			"Remove the unused code",
			"Make the code reachable",
			"Add #[allow(dead_code)] for intentional cases",
		},
		SeverityRationale: "A warning: dead code costs maintenance but does not change behaviour.",
	},
}
