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

var javascriptRules = []Rule{
	{
		Code:        "J0001",
		Name:        "no-unused-vars",
		Language:    detect.JavaScript,
		Severity:    datatypes.SeverityWarning,
		Description: "Variable is defined but never used",
		Explanation: explanation(
			"Reported when a variable, function or parameter is declared and never used.",
			"Unused bindings usually come from incomplete refactoring or copy and paste. Sometimes they are a value that was meant to be used.",
			"They make code harder to follow, and at module scope they keep objects alive for no reason.",
			"Remove the binding, use it, or prefix a required but unused parameter with an underscore if your eslint config allows it.",
		),
		IncorrectExample: `
function process(data, config) {
    const processed = data.trim();
    return data.length;
}
`,
		CorrectExample: `
function process(data) {
    return data.length;
}

function processWithConfig(data, _config) {
    return data.length;
}
`,
		DocLink: "https://eslint.org/docs/latest/rules/no-unused-vars",
		CommonFixes: []string{
			"Remove the unused variable or parameter",
			"Use the variable in your code",
			"Prefix parameter names with underscore",
		},
		SeverityRationale: "A warning: behaviour is unaffected, but the code is harder to maintain.",
	},
	{
		Code:        "J0002",
		Name:        "no-var",
		Language:    detect.JavaScript,
		Severity:    datatypes.SeverityWarning,
		Description: "Unexpected var, use let or const instead",
		Explanation: explanation(
			"Reported for declarations that use `var`.",
			"`var` is function-scoped and hoisted. `let` and `const` are block-scoped and cannot be used before their declaration.",
			"Function scoping leaks loop variables into closures and lets a name be redeclared silently.",
			"Use `const` for bindings that are never reassigned and `let` otherwise.",
		),
		IncorrectExample: `
for (var i = 0; i < 3; i++) {
    setTimeout(() => console.log(i)); // prints 3 three times
}
`,
		CorrectExample: `
for (let i = 0; i < 3; i++) {
    setTimeout(() => console.log(i)); // prints 0, 1, 2
}
`,
		DocLink: "https://eslint.org/docs/latest/rules/no-var",
		CommonFixes: []string{
			"Replace var with const",
			"Replace var with let when the variable is reassigned",
		},
		SeverityRationale: "A warning: var works, but its scoping rules cause subtle bugs.",
	},
}
