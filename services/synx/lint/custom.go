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
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/detect"
)

// customFor returns the custom validator for a file type. The type key
// (language, mapping or extension) is tried first, then the raw extension.
func (r *Runner) customFor(ft detect.FileType) (config.CustomValidatorConfig, bool) {
	custom := r.cfg.Validators.Custom
	if len(custom) == 0 {
		return config.CustomValidatorConfig{}, false
	}
	if c, ok := custom[ft.Key()]; ok {
		return c, true
	}
	if ft.Ext != "" {
		if c, ok := custom[ft.Ext]; ok {
			return c, true
		}
	}
	return config.CustomValidatorConfig{}, false
}

// runCustom runs a configured validator command.
//
// Description:
//
//	Runs command args... [strict_args...] <file>. The file is valid when the
//	command exits 0 and, if success_pattern is set, the combined output
//	matches it. A missing command leaves the file skipped.
func (r *Runner) runCustom(ctx context.Context, path string, c config.CustomValidatorConfig, st *pipelineState) error {
	outcome := datatypes.StepOutcome{
		Name: "custom",
		Tool: c.Command,
		Kind: datatypes.KindCustom,
	}
	if !r.IsAvailable(c.Command) {
		outcome.Skipped = true
		outcome.Reason = fmt.Sprintf("%s not installed", c.Command)
		st.res.Steps = append(st.res.Steps, outcome)
		st.requiredMissing = c.Command
		return nil
	}

	var pattern *regexp.Regexp
	if c.SuccessPattern != "" {
		p, err := regexp.Compile(c.SuccessPattern)
		if err != nil {
			return fmt.Errorf("%w: success_pattern: %v", ErrInvalidInput, err)
		}
		pattern = p
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	args := append([]string(nil), c.Args...)
	if r.cfg.General.Strict {
		args = append(args, c.StrictArgs...)
	}
	args = append(args, abs)

	start := time.Now()
	out, err := r.exec.Run(ctx, Command{
		Name:    c.Command,
		Args:    args,
		Timeout: time.Duration(r.cfg.General.Timeout) * time.Second,
	})
	outcome.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrToolTimeout) {
			return fmt.Errorf("%s timed out", c.Command)
		}
		return NewToolError(c.Command, "custom", err)
	}

	combined := out.Combined()
	passed := out.ExitCode == 0
	reason := ""
	switch {
	case !passed:
		reason = fmt.Sprintf("exit status %d", out.ExitCode)
	case pattern != nil && !pattern.Match(combined):
		passed = false
		reason = fmt.Sprintf("output does not match %q", c.SuccessPattern)
	}

	outcome.Passed = passed
	outcome.ExitCode = out.ExitCode
	outcome.Reason = reason
	outcome.Output = truncate(string(combined), maxStepOutput)
	st.res.Steps = append(st.res.Steps, outcome)
	st.checked = true
	recordStepMetrics(ctx, "custom", c.Command, outcome.Duration, passed)

	if !passed {
		msg := strings.TrimSpace(summarize(combined, 5))
		if msg == "" {
			msg = reason
		}
		st.res.AddIssues(datatypes.Issue{
			File:     path,
			Severity: datatypes.SeverityError,
			Message:  fmt.Sprintf("%s: %s", c.Command, msg),
			Source:   "custom",
		})
		st.fatal = true
		st.res.Message = "custom validator failed: " + reason
	}
	return nil
}
