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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
	"github.com/A5873/synx/services/synx/detect"
	"github.com/A5873/synx/services/synx/style"
	"github.com/A5873/synx/services/synx/syntax"
)

// maxStepOutput bounds StepOutcome.Output.
const maxStepOutput = 4096

// ResultCache stores results by content hash. Implemented by the cache package.
type ResultCache interface {
	// Get returns a result for path when the content hash, configuration
	// fingerprint and strictness all match.
	Get(path, hash, configHash string, strict bool) (*datatypes.Result, bool)

	// Put stores a result. size is the file size in bytes.
	Put(path string, res *datatypes.Result, size int64) error
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner validates files.
//
// Description:
//
//	Detects each file's type and runs its pipeline: custom validator, the
//	tree-sitter pre-check, the language's external steps, and the Python
//	style checker in strict mode. Tool availability is probed once per
//	command and remembered.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	cfg      *config.Config
	exec     Executor
	cache    ResultCache
	policies *PolicyRegistry
	logger   *logging.Logger

	// fingerprint is cfg.Fingerprint(), taken once at construction.
	fingerprint string

	availMu   sync.RWMutex
	available map[string]bool
}

// Option configures the Runner.
type Option func(*Runner)

// WithExecutor replaces the process executor.
func WithExecutor(e Executor) Option {
	return func(r *Runner) {
		r.exec = e
	}
}

// WithCache enables result caching.
func WithCache(c ResultCache) Option {
	return func(r *Runner) {
		r.cache = c
	}
}

// WithPolicies sets a custom policy registry.
func WithPolicies(p *PolicyRegistry) Option {
	return func(r *Runner) {
		r.policies = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner for cfg.
//
// Description:
//
//	A nil cfg uses config.DefaultConfig. Policies default to
//	PoliciesFromConfig(cfg). No cache is used unless WithCache is given.
//
// Inputs:
//
//	cfg - The effective configuration
//	opts - Optional configuration options
//
// Outputs:
//
//	*Runner - The configured runner
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := &Runner{
		cfg:       cfg,
		exec:      NewExecExecutor(),
		available: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policies == nil {
		r.policies = PoliciesFromConfig(cfg)
	}
	if r.logger == nil {
		r.logger = logging.Default()
	}
	r.fingerprint = cfg.Fingerprint()
	return r
}

// Config returns the runner's configuration.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// IsAvailable reports whether command is in PATH. Results are memoised.
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) IsAvailable(command string) bool {
	r.availMu.RLock()
	ok, seen := r.available[command]
	r.availMu.RUnlock()
	if seen {
		return ok
	}

	_, err := r.exec.LookPath(command)
	ok = err == nil

	r.availMu.Lock()
	r.available[command] = ok
	r.availMu.Unlock()

	if !ok {
		r.logger.Debug("tool not installed", "tool", command)
	}
	return ok
}

// =============================================================================
// VALIDATE
// =============================================================================

// Validate checks one file.
//
// Description:
//
//	Reads the file, consults the cache, runs the pipeline, and stores
//	valid and invalid results back. Problems with the file itself (missing,
//	unreadable, directory) and tool timeouts are reported as StatusError
//	results, not as errors.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	path - The file to validate
//
// Outputs:
//
//	*datatypes.Result - The outcome, never nil when err is nil
//	error - ErrInvalidInput for an empty path, or the context's error
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) Validate(ctx context.Context, path string) (*datatypes.Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strict := r.cfg.General.Strict
	ctx, span := startValidateSpan(ctx, path, strict)
	defer span.End()

	start := time.Now()
	res := &datatypes.Result{
		Path:       path,
		Language:   string(detect.Unknown),
		FileType:   "Unknown",
		Strict:     strict,
		CheckedAt:  start,
		ConfigHash: r.fingerprint,
	}
	defer func() {
		setValidateSpanResult(span, res)
		recordValidateMetrics(ctx, res)
	}()

	ft, err := detect.Detect(path, r.cfg.FileMappings)
	if err == nil {
		res.Language = ft.Key()
		res.FileType = ft.String()
	}

	info, err := os.Stat(path)
	if err != nil {
		return r.fail(res, start, fmt.Sprintf("cannot read file: %v", err)), nil
	}
	if info.IsDir() {
		return r.fail(res, start, "is a directory"), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return r.fail(res, start, fmt.Sprintf("cannot read file: %v", err)), nil
	}
	sum := sha256.Sum256(content)
	res.ContentHash = hex.EncodeToString(sum[:])

	if r.cache != nil {
		if cached, ok := r.cache.Get(path, res.ContentHash, r.fingerprint, strict); ok {
			out := *cached
			out.Cached = true
			out.Path = path
			*res = out
			r.logger.Debug("cache hit", "file", path, "status", res.Status)
			return res, nil
		}
	}

	if err := r.check(ctx, path, content, ft, res); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		res.Status = datatypes.StatusError
		res.Message = err.Error()
	}
	res.Duration = time.Since(start)

	r.logger.Debug("validated",
		"file", path,
		"language", res.Language,
		"status", res.Status,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
		"duration", res.Duration,
	)

	if r.cache != nil && (res.Status == datatypes.StatusValid || res.Status == datatypes.StatusInvalid) {
		if err := r.cache.Put(path, res, info.Size()); err != nil {
			r.logger.Warn("cache store failed", "file", path, "error", err)
		}
	}
	return res, nil
}

func (r *Runner) fail(res *datatypes.Result, start time.Time, msg string) *datatypes.Result {
	res.Status = datatypes.StatusError
	res.Message = msg
	res.Duration = time.Since(start)
	return res
}

// pipelineState accumulates one file's outcome across steps.
type pipelineState struct {
	res             *datatypes.Result
	checked         bool
	fatal           bool
	requiredMissing string
}

// check runs the validation pipeline and sets res.Status.
func (r *Runner) check(ctx context.Context, path string, content []byte, ft detect.FileType, res *datatypes.Result) error {
	st := &pipelineState{res: res}
	strict := r.cfg.General.Strict

	if custom, ok := r.customFor(ft); ok {
		if err := r.runCustom(ctx, path, custom, st); err != nil {
			return err
		}
		r.finish(st, ft)
		return nil
	}

	lang := ft.Language
	if r.cfg.General.BuiltinSyntax && syntax.Supported(lang) {
		stop, err := r.runSyntax(ctx, path, content, lang, st)
		if err != nil {
			return err
		}
		if stop {
			r.finish(st, ft)
			return nil
		}
	}

	if lang == detect.JSON {
		r.runJSON(path, content, st)
	}

	pipeline := BuildPipeline(lang, r.cfg)
	for _, step := range pipeline.Active(strict, r.cfg.General.Verbose) {
		stop, err := r.runStep(ctx, path, lang, step, st)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	if lang == detect.Python && strict && r.cfg.General.BuiltinStyle && st.requiredMissing == "" && !st.fatal {
		if err := r.runStyle(ctx, path, content, st); err != nil {
			return err
		}
	}

	r.finish(st, ft)
	return nil
}

// finish decides the status from the accumulated state.
func (r *Runner) finish(st *pipelineState, ft detect.FileType) {
	res := st.res
	strict := r.cfg.General.Strict
	switch {
	case st.fatal:
		res.Status = datatypes.StatusInvalid
		if res.Message == "" {
			res.Message = fmt.Sprintf("%d error(s)", len(res.Errors))
		}
	case st.requiredMissing != "":
		res.Message = fmt.Sprintf("%s not installed", st.requiredMissing)
		res.Status = datatypes.StatusSkipped
		if strict {
			res.Status = datatypes.StatusInvalid
		}
	case !st.checked:
		res.Message = fmt.Sprintf("no validator for %s files", ft)
		res.Status = datatypes.StatusSkipped
		if strict {
			res.Status = datatypes.StatusInvalid
		}
	default:
		res.Status = datatypes.StatusValid
	}
}

// =============================================================================
// BUILT-IN CHECKS
// =============================================================================

// runSyntax runs the tree-sitter check. It returns true when the file is
// invalid and no further step should run.
func (r *Runner) runSyntax(ctx context.Context, path string, content []byte, lang detect.Language, st *pipelineState) (bool, error) {
	sr, err := syntax.Check(ctx, content, lang, path)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		r.logger.Debug("syntax pre-check skipped", "file", path, "error", err)
		return false, nil
	}

	rule := "syntax-error"
	if lang == detect.Python {
		rule = "PY0001"
	}
	issues := make([]datatypes.Issue, 0, len(sr.Errors))
	for _, se := range sr.Errors {
		sev := datatypes.SeverityError
		if sr.Advisory {
			sev = datatypes.SeverityWarning
		}
		issues = append(issues, datatypes.Issue{
			File:       path,
			Line:       se.Line,
			Column:     se.Column,
			EndLine:    se.EndLine,
			Rule:       rule,
			Severity:   sev,
			Message:    se.Message,
			Suggestion: se.Suggestion,
			Source:     "tree-sitter",
		})
	}
	st.res.AddIssues(issues...)
	st.res.Steps = append(st.res.Steps, datatypes.StepOutcome{
		Name:     "tree-sitter",
		Kind:     datatypes.KindSyntax,
		Passed:   sr.Valid,
		Advisory: sr.Advisory,
		Duration: sr.Duration,
	})

	if sr.Advisory {
		return false, nil
	}
	st.checked = true
	if !sr.Valid {
		st.fatal = true
		st.res.Message = "syntax error"
		return true, nil
	}
	return false, nil
}

func (r *Runner) runStyle(ctx context.Context, path string, content []byte, st *pipelineState) error {
	start := time.Now()
	py := r.cfg.Validators.Python
	issues, err := style.Check(ctx, content, path, style.Options{
		MaxLineLength: py.MaxLineLength,
		Ignore:        py.IgnoreRules,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Debug("style check skipped", "file", path, "error", err)
		return nil
	}
	failed := style.Fails(issues)
	st.res.AddIssues(issues...)
	st.res.Steps = append(st.res.Steps, datatypes.StepOutcome{
		Name:     "style",
		Tool:     style.Source,
		Kind:     datatypes.KindStyle,
		Passed:   !failed,
		Duration: time.Since(start),
	})
	st.checked = true
	if failed {
		st.fatal = true
		st.res.Message = "style violations"
	}
	return nil
}

// =============================================================================
// EXTERNAL STEPS
// =============================================================================

// runStep executes one step. It returns true when the pipeline should stop.
func (r *Runner) runStep(ctx context.Context, path string, lang detect.Language, step Step, st *pipelineState) (bool, error) {
	strict := r.cfg.General.Strict

	for !r.IsAvailable(step.Command) && step.Fallback != nil {
		r.logger.Debug("using fallback tool", "tool", step.Command, "fallback", step.Fallback.Command)
		step = *step.Fallback
	}
	if !r.IsAvailable(step.Command) {
		st.res.Steps = append(st.res.Steps, datatypes.StepOutcome{
			Name:     step.Name,
			Tool:     step.Command,
			Kind:     step.Kind,
			Skipped:  true,
			Advisory: step.Advisory,
			Reason:   fmt.Sprintf("%s not installed", step.Command),
		})
		if step.Required {
			st.requiredMissing = step.Command
			return true, nil
		}
		return false, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", path, err)
	}

	var tmp string
	if stepUsesTmp(step) {
		tmp, err = os.MkdirTemp("", "synx-"+step.Name+"-")
		if err != nil {
			return false, fmt.Errorf("creating temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
	}

	cmd := Command{
		Name:    step.Command,
		Args:    expandArgs(step, abs, tmp),
		Timeout: time.Duration(r.cfg.General.Timeout) * time.Second,
	}
	if step.InDir {
		cmd.Dir = filepath.Dir(abs)
	}

	r.logger.Debug("running step", "file", path, "step", step.Name, "command", cmd.Name, "args", cmd.Args)
	start := time.Now()
	out, err := r.exec.Run(ctx, cmd)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if errors.Is(err, ErrToolTimeout) {
			return false, fmt.Errorf("%s timed out after %s", step.Command, cmd.Timeout)
		}
		return false, NewToolError(step.Command, string(lang), err)
	}

	passed := step.accepts(out.ExitCode)
	if step.FailOnOutput && len(bytes.TrimSpace(out.Stdout)) > 0 {
		passed = false
	}
	recordStepMetrics(ctx, step.Name, step.Command, elapsed, passed)

	issues := r.parseStep(step, out, path)
	issues = normalizeIssues(issues, path, abs, cmd.Dir, step.Name)
	issues = ApplyPolicy(issues, r.policies.Get(string(lang), step.Name))

	if !passed && !hasError(issues) {
		msg := summarize(out.Combined(), 5)
		if msg == "" {
			msg = "no output"
		}
		text := fmt.Sprintf("%s failed (exit %d): %s", step.Command, out.ExitCode, msg)
		if out.ExitCode == 0 {
			text = fmt.Sprintf("%s reported changes: %s", step.Command, msg)
		}
		issues = append(issues, datatypes.Issue{
			File:     path,
			Severity: datatypes.SeverityError,
			Message:  text,
			Source:   step.Name,
		})
	}

	fatal := !passed
	if step.Advisory && !strict {
		fatal = false
	}
	if !fatal {
		issues = demote(issues)
	}

	st.res.AddIssues(issues...)
	st.res.Steps = append(st.res.Steps, datatypes.StepOutcome{
		Name:     step.Name,
		Tool:     step.Command,
		Kind:     step.Kind,
		Passed:   passed,
		Advisory: step.Advisory,
		ExitCode: out.ExitCode,
		Duration: elapsed,
		Output:   truncate(string(out.Combined()), maxStepOutput),
	})
	if !step.Advisory {
		st.checked = true
	}
	if fatal {
		st.fatal = true
		if step.Required {
			return true, nil
		}
	}
	return false, nil
}

func (r *Runner) parseStep(step Step, out Output, path string) []datatypes.Issue {
	var data []byte
	switch step.Stream {
	case StreamStdout:
		data = out.Stdout
	case StreamStderr:
		data = out.Stderr
	default:
		data = out.Combined()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	parser := GetParser(step.Parser)
	if parser == nil {
		parser = parseRaw
	}
	issues, err := parser(data)
	if err != nil {
		r.logger.Debug("unparseable tool output",
			"file", path,
			"step", step.Name,
			"error", fmt.Errorf("%w: %v", ErrParseOutput, err),
		)
		return nil
	}
	return issues
}

func stepUsesTmp(step Step) bool {
	for _, a := range step.Args {
		if strings.Contains(a, PlaceholderTmp) {
			return true
		}
	}
	return false
}

// expandArgs substitutes placeholders and appends the file when needed.
func expandArgs(step Step, abs, tmp string) []string {
	file := abs
	if step.InDir {
		file = filepath.Base(abs)
	}
	args := make([]string, 0, len(step.Args)+1)
	for _, a := range step.Args {
		a = strings.ReplaceAll(a, PlaceholderFile, file)
		a = strings.ReplaceAll(a, PlaceholderTmp, tmp)
		args = append(args, a)
	}
	if !step.NoFile && !step.hasFilePlaceholder() {
		args = append(args, file)
	}
	return args
}

// normalizeIssues points issues for the validated file at path and drops
// issues a project-level tool reported for other files.
func normalizeIssues(issues []datatypes.Issue, path, abs, dir, source string) []datatypes.Issue {
	out := issues[:0]
	for _, is := range issues {
		if !sameFile(is.File, abs, dir) {
			continue
		}
		is.File = path
		if is.Source == "" {
			is.Source = source
		}
		out = append(out, is)
	}
	return out
}

func sameFile(reported, abs, dir string) bool {
	if reported == "" {
		return true
	}
	if !filepath.IsAbs(reported) {
		if dir == "" {
			if a, err := filepath.Abs(reported); err == nil {
				reported = a
			}
		} else {
			reported = filepath.Join(dir, reported)
		}
	}
	return filepath.Clean(reported) == filepath.Clean(abs)
}

func hasError(issues []datatypes.Issue) bool {
	for _, is := range issues {
		if is.Severity == datatypes.SeverityError {
			return true
		}
	}
	return false
}

func demote(issues []datatypes.Issue) []datatypes.Issue {
	for i := range issues {
		if issues[i].Severity == datatypes.SeverityError {
			issues[i].Severity = datatypes.SeverityWarning
		}
	}
	return issues
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}

// =============================================================================
// BATCH OPERATIONS
// =============================================================================

// ValidateFiles validates files concurrently.
//
// Description:
//
//	Runs at most general.workers validations at once (one per CPU when
//	zero). Results are returned in input order. progress, when non-nil, is
//	called once per finished file from the worker goroutine.
//
// Inputs:
//
//	ctx - Context for cancellation
//	paths - Files to validate
//	progress - Optional per-file callback. Must be safe for concurrent use.
//
// Outputs:
//
//	[]*datatypes.Result - Results in input order
//	error - The first input or context error
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) ValidateFiles(ctx context.Context, paths []string, progress func(*datatypes.Result)) ([]*datatypes.Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	results := make([]*datatypes.Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers())

	for i, p := range paths {
		g.Go(func() error {
			res, err := r.Validate(gctx, p)
			if err != nil {
				return fmt.Errorf("validating %s: %w", p, err)
			}
			results[i] = res
			if progress != nil {
				progress(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Workers returns the effective parallelism.
func (r *Runner) Workers() int {
	if n := r.cfg.General.Workers; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
