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

const pep8 = "https://peps.python.org/pep-0008/"

// py fills the fields shared by every Python rule.
func py(code, name string, sev datatypes.Severity, desc, expl, bad, good, link, rationale string, fixes ...string) Rule {
	return Rule{
		Code:              code,
		Name:              name,
		Language:          detect.Python,
		Severity:          sev,
		Description:       desc,
		Explanation:       expl,
		IncorrectExample:  bad,
		CorrectExample:    good,
		DocLink:           link,
		CommonFixes:       fixes,
		SeverityRationale: rationale,
	}
}

var pythonRules = []Rule{
	py("PY0001", "syntax-error", datatypes.SeverityError,
		"Python source could not be parsed",
		explanation(
			"Reported when the file is not valid Python.",
			"The parser stops at the first token it cannot fit into the grammar. Unbalanced brackets, missing colons and inconsistent indentation are the usual causes.",
			"A file with a syntax error cannot be imported or run at all.",
			"Go to the reported line. The real mistake is often on the line before it, for example an unclosed parenthesis.",
		),
		`
def greet(name):
    print("Hello, " + name
`,
		`
def greet(name):
    print("Hello, " + name)
`,
		"https://docs.python.org/3/reference/grammar.html",
		"An error: the interpreter refuses to load the file.",
		"Close every bracket and string", "Add the missing colon after if/def/class", "Use spaces consistently for indentation"),

	py("PY0002", "missing-type-hints", datatypes.SeverityWarning,
		"Function lacks parameter or return type hints",
		explanation(
			"Reported for a function whose parameters or return value are not annotated. `self` and `cls` are exempt.",
			"Type hints let mypy and editors check call sites. Without them, the function is opaque to static analysis.",
			"Annotated signatures document intent and catch wrong argument types before runtime.",
			"Annotate every parameter and add `-> ReturnType`, using `-> None` for procedures.",
		),
		`
def add(a, b):
    return a + b
`,
		`
def add(a: int, b: int) -> int:
    return a + b
`,
		"https://peps.python.org/pep-0484/",
		"A warning: the code runs the same with or without hints.",
		"Annotate parameters", "Add a return annotation"),

	py("PY0003", "missing-module-docstring", datatypes.SeverityWarning,
		"Module has no docstring",
		explanation(
			"Reported when the first statement of a non-empty module is not a string literal.",
			"The module docstring is what `help()` and documentation tools show for the module.",
			"It is the first thing a reader looks for to learn what a file is for.",
			"Start the file with a triple-quoted string describing the module.",
		),
		`
import math

def area(r: float) -> float:
    return math.pi * r * r
`,
		`
"""Geometry helpers."""
import math

def area(r: float) -> float:
    return math.pi * r * r
`,
		"https://peps.python.org/pep-0257/",
		"A warning: documentation only.",
		"Add a module docstring as the first statement"),

	py("PY0004", "line-too-long", datatypes.SeverityError,
		"Line exceeds the maximum length",
		explanation(
			"Reported when a line is longer than the configured maximum, 99 characters by default.",
			"Length is counted in characters, not bytes.",
			"Long lines are hard to read side by side and in diffs.",
			"Wrap inside brackets, split long expressions, or move long strings into variables.",
		),
		`
result = some_function(first_argument, second_argument, third_argument, fourth_argument, fifth)
`,
		`
result = some_function(
    first_argument, second_argument, third_argument, fourth_argument, fifth
)
`,
		pep8+"#maximum-line-length",
		"An error in strict mode: line length is a hard project limit.",
		"Wrap the line inside parentheses", "Split the expression into named parts"),

	py("PY101", "class-name-capwords", datatypes.SeverityError,
		"Class name is not CapWords",
		explanation(
			"Reported when a class name is not written in CapWords.",
			"Leading underscores are allowed. Everything after them must start with an upper-case letter and contain no underscores.",
			"Naming conventions tell a reader at a glance whether a name is a class, function or constant.",
			"Rename the class, for example `my_class` to `MyClass`.",
		),
		`
class user_account:
    pass
`,
		`
class UserAccount:
    pass
`,
		pep8+"#class-names",
		"An error in strict mode: names are part of the public interface.",
		"Rename the class to CapWords"),

	py("PY102", "function-name-snake-case", datatypes.SeverityError,
		"Function name is not snake_case",
		explanation(
			"Reported when a function or method name is not lower-case with underscores.",
			"Leading underscores are allowed for private helpers.",
			"Consistent naming makes functions easy to tell apart from classes.",
			"Rename the function, for example `calculateTotal` to `calculate_total`.",
		),
		`
def calculateTotal(items):
    return sum(items)
`,
		`
def calculate_total(items):
    return sum(items)
`,
		pep8+"#function-and-variable-names",
		"An error in strict mode: names are part of the public interface.",
		"Rename the function to snake_case"),

	py("PY103", "bare-except", datatypes.SeverityError,
		"Bare except clause",
		explanation(
			"Reported for `except:` with no exception type.",
			"A bare except catches everything, including `KeyboardInterrupt` and `SystemExit`.",
			"It hides real bugs and can make a program impossible to stop with Ctrl-C.",
			"Catch the specific exceptions you expect, or `Exception` if you really must catch broadly.",
		),
		`
try:
    value = int(text)
except:
    value = 0
`,
		`
try:
    value = int(text)
except ValueError:
    value = 0
`,
		pep8+"#programming-recommendations",
		"An error: swallowed exceptions hide failures.",
		"Name the exception type", "Use except Exception as a last resort"),

	py("PY104", "none-comparison", datatypes.SeverityError,
		"Comparison to None with == or !=",
		explanation(
			"Reported for `x == None` and `x != None`.",
			"`None` is a singleton, so identity is the correct test. `==` calls `__eq__`, which a class may override.",
			"An overridden `__eq__` can make `== None` return the wrong answer.",
			"Use `is None` or `is not None`.",
		),
		`
if result == None:
    return
`,
		`
if result is None:
    return
`,
		pep8+"#programming-recommendations",
		"An error: the comparison can silently give the wrong result.",
		"Replace == None with is None", "Replace != None with is not None"),

	py("PY105", "multiple-imports", datatypes.SeverityError,
		"Multiple modules imported on one line",
		explanation(
			"Reported for `import a, b`.",
			"`from x import a, b` is fine. Only plain imports of several modules are flagged.",
			"One import per line keeps diffs small and makes unused imports easy to spot.",
			"Split the statement into one import per line.",
		),
		`
import os, sys
`,
		`
import os
import sys
`,
		pep8+"#imports",
		"An error in strict mode: import layout is enforced.",
		"Put each import on its own line"),

	py("PY106", "type-comparison", datatypes.SeverityError,
		"Types compared with == instead of isinstance()",
		explanation(
			"Reported for comparisons such as `type(x) == int`.",
			"Comparing types directly ignores subclasses.",
			"Code that checks `type(x) == dict` rejects an `OrderedDict` that would have worked.",
			"Use `isinstance(x, T)`.",
		),
		`
if type(value) == list:
    value.append(1)
`,
		`
if isinstance(value, list):
    value.append(1)
`,
		pep8+"#programming-recommendations",
		"An error: the check is usually wrong for subclasses.",
		"Replace the comparison with isinstance()"),

	py("PY107", "multiple-statements", datatypes.SeverityError,
		"Statement on the same line as its block header",
		explanation(
			"Reported for compound statements written on one line, such as `if x: return`.",
			"The body of `if`, `for`, `while`, `def` and friends belongs on its own indented line.",
			"One-line bodies are easy to miss when reading and awkward to extend.",
			"Move the statement onto a new, indented line.",
		),
		`
if ready: start()
`,
		`
if ready:
    start()
`,
		pep8+"#other-recommendations",
		"An error in strict mode: layout is enforced.",
		"Move the body to its own line"),

	py("PY108", "assignment-spacing", datatypes.SeverityError,
		"Missing whitespace around assignment operator",
		explanation(
			"Reported when `=` or an augmented operator such as `+=` is not surrounded by spaces in an assignment statement.",
			"Keyword arguments and parameter defaults are not assignments and are not checked.",
			"Consistent spacing makes assignments stand out from comparisons.",
			"Put one space on each side of the operator.",
		),
		`
total=0
total+=1
`,
		`
total = 0
total += 1
`,
		pep8+"#other-recommendations",
		"An error in strict mode: formatting is enforced.",
		"Add a space before and after the operator"),

	py("PY109", "trailing-whitespace", datatypes.SeverityWarning,
		"Line ends with whitespace",
		explanation(
			"Reported when a non-blank line ends in spaces or tabs.",
			"Trailing whitespace is invisible in most editors.",
			"It produces noisy diffs when someone's editor strips it later.",
			"Delete the trailing whitespace or enable trim-on-save in your editor.",
		),
		"\nname = \"synx\"   \n",
		"\nname = \"synx\"\n",
		pep8,
		"A warning: cosmetic only.",
		"Remove trailing whitespace", "Enable trim-on-save"),

	py("PY110", "blank-line-whitespace", datatypes.SeverityWarning,
		"Blank line contains whitespace",
		explanation(
			"Reported when an otherwise empty line contains spaces or tabs.",
			"Editors that auto-indent often leave these behind.",
			"Like trailing whitespace, it shows up as noise in diffs.",
			"Make the line truly empty.",
		),
		"\ndef a() -> None:\n    pass\n    \ndef b() -> None:\n    pass\n",
		"\ndef a() -> None:\n    pass\n\ndef b() -> None:\n    pass\n",
		pep8,
		"A warning: cosmetic only.",
		"Remove whitespace from blank lines"),
}
