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
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/A5873/synx/services/synx/datatypes"
)

// CheckJSON decodes content and reports the first error as an issue.
//
// Description:
//
//	With allowComments, // and /* */ comments outside strings are blanked
//	first so reported offsets still point into the original text. Empty
//	input is an error.
//
// Outputs:
//
//	*datatypes.Issue - The decode error with 1-based line and column, or nil
func CheckJSON(content []byte, allowComments bool) *datatypes.Issue {
	data := content
	if allowComments {
		data = stripJSONComments(content)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &datatypes.Issue{
			Line:     1,
			Column:   1,
			Rule:     "json-syntax",
			Severity: datatypes.SeverityError,
			Message:  "empty document",
		}
	}

	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		return nil
	}

	offset := int64(len(data))
	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		offset = synErr.Offset
	}
	line, col := lineCol(data, offset)
	return &datatypes.Issue{
		Line:     line,
		Column:   col,
		Rule:     "json-syntax",
		Severity: datatypes.SeverityError,
		Message:  err.Error(),
	}
}

func (r *Runner) runJSON(path string, content []byte, st *pipelineState) {
	start := time.Now()
	issue := CheckJSON(content, r.cfg.Validators.JSON.AllowComments)
	st.res.Steps = append(st.res.Steps, datatypes.StepOutcome{
		Name:     "json",
		Tool:     "encoding/json",
		Kind:     datatypes.KindSyntax,
		Passed:   issue == nil,
		Duration: time.Since(start),
	})
	st.checked = true
	if issue != nil {
		issue.File = path
		issue.Source = "json"
		st.res.AddIssues(*issue)
		st.fatal = true
		st.res.Message = "invalid JSON"
	}
}

// lineCol converts a byte offset into 1-based line and column. The column
// points at the offending byte, which is the one before offset.
func lineCol(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	pos := int(offset) - 1
	if pos < 0 {
		pos = 0
	}
	line, col := 1, 1
	for i := 0; i < pos && i < len(data); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// stripJSONComments replaces comments with spaces, keeping newlines.
func stripJSONComments(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)

	inString, escaped := false, false
	for i := 0; i < len(out); i++ {
		c := out[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
		case c == '/' && i+1 < len(out) && out[i+1] == '/':
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			i += 2
			for ; i < len(out); i++ {
				if out[i] == '*' && i+1 < len(out) && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
			}
		}
	}
	return out
}
