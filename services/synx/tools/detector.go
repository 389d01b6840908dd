// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/detect"
	"github.com/A5873/synx/services/synx/lint"
)

// State is the outcome of detecting one tool.
type State int

const (
	// Available means the tool is installed and new enough.
	Available State = iota

	// NotInstalled means the binary is not on PATH.
	NotInstalled

	// WrongVersion means the installed version is older than MinVersion.
	WrongVersion
)

// String returns a short label.
func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case NotInstalled:
		return "not installed"
	case WrongVersion:
		return "wrong version"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by label.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the detection result for one requirement.
type Status struct {
	Requirement Requirement `json:"requirement"`
	State       State       `json:"state"`
	Path        string      `json:"path,omitempty"`

	// Version is empty when it could not be determined.
	Version string `json:"version,omitempty"`
}

// OK reports whether the tool can be used.
func (s Status) OK() bool {
	return s.State == Available
}

// LanguageReport groups the tools one language pipeline may run.
type LanguageReport struct {
	Language detect.Language `json:"language"`
	Tools    []Status        `json:"tools"`

	// Ready is true when every default-mode step has its tool or a
	// fallback installed. Languages checked in-process are always ready.
	Ready bool `json:"ready"`
}

const versionTimeout = 5 * time.Second

// Detector resolves requirements against the local system.
//
// Thread Safety: Safe for concurrent use.
type Detector struct {
	exec   lint.Executor
	logger *logging.Logger
}

// NewDetector creates a Detector. A nil executor runs real processes.
func NewDetector(exec lint.Executor) *Detector {
	if exec == nil {
		exec = lint.NewExecExecutor()
	}
	return &Detector{exec: exec, logger: logging.Default()}
}

// Detect checks whether req is installed and new enough.
//
// Description:
//
//	Looks the binary up in PATH, then runs the version command and
//	compares the captured version against MinVersion with semantic
//	versioning. A version that cannot be determined is reported as
//	Available with an empty Version.
//
// Inputs:
//
//	ctx - Context for cancellation
//	req - The requirement to check
//
// Outputs:
//
//	Status - Never an error; failures map to NotInstalled
//
// Thread Safety: Safe for concurrent use.
func (d *Detector) Detect(ctx context.Context, req Requirement) Status {
	st := Status{Requirement: req, State: NotInstalled}

	path, err := d.exec.LookPath(req.Name)
	if err != nil {
		return st
	}
	st.Path = path
	st.State = Available

	if len(req.VersionArgs) == 0 {
		return st
	}

	out, err := d.exec.Run(ctx, lint.Command{Name: req.Name, Args: req.VersionArgs, Timeout: versionTimeout})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Warn("could not determine tool version", "tool", req.Name, "error", err)
		}
		return st
	}

	st.Version = ExtractVersion(string(out.Combined()), req.VersionPattern)
	if st.Version == "" {
		d.logger.Warn("could not determine tool version", "tool", req.Name)
		return st
	}
	if req.MinVersion != "" && !AtLeast(st.Version, req.MinVersion) {
		st.State = WrongVersion
	}
	return st
}

// DetectAll checks reqs concurrently and returns statuses in input order.
func (d *Detector) DetectAll(ctx context.Context, reqs []Requirement) []Status {
	out := make([]Status, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, req := range reqs {
		g.Go(func() error {
			out[i] = d.Detect(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Languages reports tool availability for every language with a pipeline.
//
// Description:
//
//	Builds each language's pipeline from cfg so configured interpreters and
//	compilers are the ones checked, then detects every tool the pipeline
//	may run, fallbacks included.
//
// Inputs:
//
//	ctx - Context for cancellation
//	cfg - Effective configuration
//
// Outputs:
//
//	[]LanguageReport - Sorted by language
func (d *Detector) Languages(ctx context.Context, cfg *config.Config) []LanguageReport {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	langs := detect.Languages()
	reports := make([]LanguageReport, 0, len(langs))

	var reqs []Requirement
	index := make(map[string]int)
	for _, lang := range langs {
		for _, name := range lint.BuildPipeline(lang, cfg).Tools() {
			if _, ok := index[name]; ok {
				continue
			}
			req, _ := Lookup(name)
			index[name] = len(reqs)
			reqs = append(reqs, req)
		}
	}
	statuses := d.DetectAll(ctx, reqs)

	for _, lang := range langs {
		p := lint.BuildPipeline(lang, cfg)
		rep := LanguageReport{Language: lang, Ready: true}
		for _, name := range p.Tools() {
			rep.Tools = append(rep.Tools, statuses[index[name]])
		}
		for _, step := range p.Active(false, false) {
			if !chainAvailable(&step, statuses, index) {
				rep.Ready = false
				break
			}
		}
		reports = append(reports, rep)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Language < reports[j].Language })
	return reports
}

func chainAvailable(s *lint.Step, statuses []Status, index map[string]int) bool {
	for ; s != nil; s = s.Fallback {
		if i, ok := index[s.Command]; ok && statuses[i].OK() {
			return true
		}
	}
	return false
}

// ExtractVersion returns the first capture group of pattern in output, or
// the first dotted number when pattern is empty.
func ExtractVersion(output, pattern string) string {
	re := genericVersion
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return ""
		}
	}
	m := re.FindStringSubmatch(output)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// AtLeast reports whether version >= min. Unparseable versions compare as
// satisfying the requirement.
func AtLeast(version, min string) bool {
	v, m := canonical(version), canonical(min)
	if v == "" || m == "" {
		return true
	}
	return semver.Compare(v, m) >= 0
}

// canonical turns "1.70", "3.8.10" or "1.8.0.292" into a semver string
// ("v1.70.0"); it returns "" when the result is not valid semver.
func canonical(version string) string {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(version), "v"), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	v := "v" + strings.Join(parts, ".")
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// Summary returns a one-line description of a status.
func (s Status) Summary() string {
	switch s.State {
	case Available:
		if s.Version != "" {
			return fmt.Sprintf("%s %s (%s)", s.Requirement.Name, s.Version, s.Path)
		}
		return fmt.Sprintf("%s (%s)", s.Requirement.Name, s.Path)
	case WrongVersion:
		return fmt.Sprintf("%s %s is older than %s", s.Requirement.Name, s.Version, s.Requirement.MinVersion)
	default:
		return fmt.Sprintf("%s not installed: %s", s.Requirement.Name, s.Requirement.InstallHint)
	}
}
