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
	"sort"
	"strings"
	"sync"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
)

// =============================================================================
// RULE POLICY
// =============================================================================

// RulePolicy overrides the severity a tool assigned to its rules.
//
// Description:
//
//	Rules are matched case-insensitively by exact name, by hierarchy
//	("errcheck" matches "errcheck/assert"), or by code prefix followed by a
//	digit ("SA" matches "SA1000"). Rules matching no list keep the severity
//	the tool reported.
//
// Thread Safety: Treat as immutable after creation.
type RulePolicy struct {
	// BlockOn rules become errors.
	BlockOn []string

	// WarnOn rules become warnings.
	WarnOn []string

	// Ignore rules are dropped.
	Ignore []string
}

func matchesAny(rule string, patterns []string) bool {
	rule = strings.ToLower(rule)
	for _, p := range patterns {
		if matchesRule(rule, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ShouldBlock reports whether the rule is promoted to an error.
func (p *RulePolicy) ShouldBlock(rule string) bool { return matchesAny(rule, p.BlockOn) }

// ShouldWarn reports whether the rule is set to a warning.
func (p *RulePolicy) ShouldWarn(rule string) bool { return matchesAny(rule, p.WarnOn) }

// ShouldIgnore reports whether the rule is dropped.
func (p *RulePolicy) ShouldIgnore(rule string) bool { return matchesAny(rule, p.Ignore) }

// Severity returns the severity for an issue of the given rule.
//
// Description:
//
//	Ignore is checked by the caller. BlockOn wins over WarnOn. The tool's
//	own severity is returned when neither matches.
func (p *RulePolicy) Severity(rule string, reported datatypes.Severity) datatypes.Severity {
	switch {
	case p.ShouldBlock(rule):
		return datatypes.SeverityError
	case p.ShouldWarn(rule):
		return datatypes.SeverityWarning
	default:
		return reported
	}
}

// WithIgnored returns a copy that also ignores rules.
func (p RulePolicy) WithIgnored(rules ...string) RulePolicy {
	p.BlockOn = append([]string(nil), p.BlockOn...)
	p.WarnOn = append([]string(nil), p.WarnOn...)
	p.Ignore = append(append([]string(nil), p.Ignore...), rules...)
	return p
}

// matchesRule checks if a rule matches a pattern.
// Examples:
//   - "errcheck" matches "errcheck"
//   - "SA1000" matches "SA" (prefix)
//   - "errcheck/assert" matches "errcheck" (hierarchy)
func matchesRule(rule, pattern string) bool {
	if rule == pattern {
		return true
	}
	if strings.HasPrefix(rule, pattern+"/") {
		return true
	}
	if strings.HasPrefix(rule, pattern) && len(rule) > len(pattern) {
		next := rule[len(pattern)]
		if next >= '0' && next <= '9' {
			return true
		}
	}
	return false
}

// =============================================================================
// DEFAULT POLICIES
// =============================================================================

// DefaultGoPolicy applies to go vet, gofmt and golangci-lint.
//
// Description:
//
//	Blocks on correctness and security issues that indicate bugs.
//	Warns on code quality issues that don't affect correctness.
//	Ignores complexity metrics and naming.
var DefaultGoPolicy = RulePolicy{
	BlockOn: []string{
		"govet",
		"errcheck",
		"typecheck",
		"staticcheck",
		"SA",
		"gosec",
		"G",
		"nilness",
		"nilerr",
		"gofmt",
	},
	WarnOn: []string{
		"ineffassign",
		"unused",
		"shadow",
		"prealloc",
		"copylock",
		"unconvert",
		"unparam",
		"goimports",
	},
	Ignore: []string{
		"lll",
		"whitespace",
		"wsl",
		"gocyclo",
		"gocognit",
		"funlen",
		"revive/var-naming",
		"stylecheck/ST1003",
	},
}

// DefaultRuffPolicy applies to ruff.
//
// Description:
//
//	F = Pyflakes (unused imports, undefined names)
//	S = bandit security rules
//	E, W = pycodestyle
//	C90 = mccabe complexity
var DefaultRuffPolicy = RulePolicy{
	BlockOn: []string{"F", "S", "E9", "PGH"},
	WarnOn:  []string{"E", "W", "C90", "I"},
	Ignore:  []string{"E501", "D"},
}

// DefaultPylintPolicy applies to pylint message ids.
//
// Description:
//
//	E and F are errors and fatal messages. W is a warning. C and R
//	(convention, refactor) are reported as the tool rates them.
var DefaultPylintPolicy = RulePolicy{
	BlockOn: []string{"E", "F"},
	WarnOn:  []string{"W"},
	Ignore:  []string{"I"},
}

// DefaultTSPolicy applies to eslint for TypeScript and JavaScript.
var DefaultTSPolicy = RulePolicy{
	BlockOn: []string{
		"@typescript-eslint/no-unsafe",
		"@typescript-eslint/no-explicit-any",
		"no-undef",
		"no-unused-vars",
		"no-eval",
		"no-implied-eval",
		"parse-error",
	},
	WarnOn: []string{
		"eqeqeq",
		"no-console",
		"prefer-const",
		"complexity",
	},
	Ignore: []string{
		"indent",
		"semi",
		"quotes",
		"comma-dangle",
		"max-len",
	},
}

// =============================================================================
// POLICY REGISTRY
// =============================================================================

// PolicyRegistry holds policies keyed by language or "language/tool".
//
// Thread Safety: Safe for concurrent use after initialization.
type PolicyRegistry struct {
	mu       sync.RWMutex
	policies map[string]*RulePolicy
}

// NewPolicyRegistry creates a registry with the default policies.
func NewPolicyRegistry() *PolicyRegistry {
	r := &PolicyRegistry{policies: make(map[string]*RulePolicy)}
	r.registerDefaults()
	return r
}

// PoliciesFromConfig returns the default policies with each language's
// ignore_rules added to its Ignore list.
func PoliciesFromConfig(cfg *config.Config) *PolicyRegistry {
	r := NewPolicyRegistry()
	if cfg == nil {
		return r
	}
	extra := map[string][]string{
		"python":     cfg.Validators.Python.IgnoreRules,
		"shell":      cfg.Validators.Shell.IgnoreRules,
		"dockerfile": cfg.Validators.Dockerfile.IgnoreRules,
	}
	for key, p := range r.policies {
		lang, _, _ := strings.Cut(key, "/")
		if rules := extra[lang]; len(rules) > 0 {
			np := p.WithIgnored(rules...)
			r.policies[key] = &np
		}
	}
	for lang, rules := range extra {
		if len(rules) > 0 && r.policies[lang] == nil {
			r.policies[lang] = &RulePolicy{Ignore: append([]string(nil), rules...)}
		}
	}
	return r
}

func (r *PolicyRegistry) registerDefaults() {
	goPolicy := DefaultGoPolicy
	ruff := DefaultRuffPolicy
	pylint := DefaultPylintPolicy
	ts := DefaultTSPolicy
	r.policies["go"] = &goPolicy
	r.policies["python/ruff"] = &ruff
	r.policies["python/pylint"] = &pylint
	r.policies["typescript"] = &ts
	r.policies["javascript"] = &ts
}

// Get returns the policy for a tool of a language.
//
// Description:
//
//	Looks up "language/tool" first, then "language".
//
// Inputs:
//
//	language - The language identifier, e.g. "python"
//	tool - The step name, e.g. "ruff". May be empty.
//
// Outputs:
//
//	*RulePolicy - The policy, or nil if none applies
//
// Thread Safety: Safe for concurrent use.
func (r *PolicyRegistry) Get(language, tool string) *RulePolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool != "" {
		if p, ok := r.policies[language+"/"+tool]; ok {
			return p
		}
	}
	return r.policies[language]
}

// Register adds or replaces a policy. key is a language or "language/tool".
//
// Thread Safety: Safe for concurrent use.
func (r *PolicyRegistry) Register(key string, policy *RulePolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[key] = policy
}

// Keys returns the registered keys, sorted.
func (r *PolicyRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.policies))
	for k := range r.policies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyPolicy drops ignored issues and sets each remaining issue's severity.
//
// Description:
//
//	A nil policy returns issues unchanged. Issues without a rule are kept
//	as reported.
//
// Inputs:
//
//	issues - Issues as reported by the tool
//	policy - The policy to apply, may be nil
//
// Outputs:
//
//	[]datatypes.Issue - The filtered issues, new slice
func ApplyPolicy(issues []datatypes.Issue, policy *RulePolicy) []datatypes.Issue {
	if policy == nil {
		return issues
	}
	out := make([]datatypes.Issue, 0, len(issues))
	for _, is := range issues {
		if is.Rule == "" {
			out = append(out, is)
			continue
		}
		if policy.ShouldIgnore(is.Rule) {
			continue
		}
		is.Severity = policy.Severity(is.Rule, is.Severity)
		out = append(out, is)
	}
	return out
}
