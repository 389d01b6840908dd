// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityFromString(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"error", SeverityError},
		{"Fatal", SeverityError},
		{"warning", SeverityWarning},
		{"warn", SeverityWarning},
		{"note", SeverityInfo},
		{"convention", SeverityInfo},
		{"style", SeverityInfo},
		{"whatever", SeverityWarning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityFromString(tt.in), tt.in)
	}
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(Issue{Severity: SeverityError, Message: "boom"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"error"`)

	var is Issue
	require.NoError(t, json.Unmarshal(data, &is))
	assert.Equal(t, SeverityError, is.Severity)

	assert.Error(t, json.Unmarshal([]byte(`{"severity":"loud"}`), &is))
}

func TestIssueLocation(t *testing.T) {
	assert.Equal(t, "a.py:3:7", Issue{File: "a.py", Line: 3, Column: 7}.Location())
	assert.Equal(t, "a.py:3", Issue{File: "a.py", Line: 3}.Location())
	assert.Equal(t, "a.py", Issue{File: "a.py"}.Location())
}

func TestResult_AddIssuesAndOrder(t *testing.T) {
	r := &Result{Status: StatusInvalid}
	r.AddIssues(
		Issue{Line: 9, Severity: SeverityError, Rule: "b"},
		Issue{Line: 2, Severity: SeverityError, Rule: "a"},
		Issue{Line: 1, Severity: SeverityWarning},
		Issue{Line: 1, Severity: SeverityInfo},
	)

	assert.Len(t, r.Errors, 2)
	assert.Len(t, r.Warnings, 1)
	assert.Len(t, r.Infos, 1)
	assert.Equal(t, 4, r.IssueCount())
	assert.True(t, r.HasIssues())

	all := r.AllIssues()
	require.Len(t, all, 4)
	assert.Equal(t, 2, all[0].Line, "errors first, sorted by line")
	assert.Equal(t, 9, all[1].Line)
	assert.Equal(t, SeverityWarning, all[2].Severity)
	assert.Equal(t, 9, r.Errors[0].Line, "AllIssues does not reorder the result")
}

func TestStatusPassing(t *testing.T) {
	assert.True(t, StatusValid.Passing())
	assert.True(t, StatusSkipped.Passing())
	assert.False(t, StatusInvalid.Passing())
	assert.False(t, StatusError.Passing())

	r := &Result{Status: StatusSkipped}
	assert.True(t, r.Valid())
}

func TestResultStep(t *testing.T) {
	r := &Result{Steps: []StepOutcome{{Name: "py_compile", Passed: true}}}
	s, ok := r.Step("py_compile")
	assert.True(t, ok)
	assert.True(t, s.Passed)
	_, ok = r.Step("mypy")
	assert.False(t, ok)
}
