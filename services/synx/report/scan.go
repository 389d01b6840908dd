// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/A5873/synx/services/synx/scan"
)

// Scan renders a directory scan: totals, a per-type table and the invalid,
// errored and skipped files relative to the root.
func (r *Reporter) Scan(res *scan.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.Format == FormatJSON {
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := io.WriteString(r.w, r.renderScan(res))
	return err
}

func (r *Reporter) renderScan(res *scan.Result) string {
	st := r.styles
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s %s\n", st.Title.Render("Scan results for"), st.Path.Render(res.Root))

	b.WriteString("\n" + st.Bold.Render("Summary") + "\n")
	fmt.Fprintf(&b, "  Total files:    %d\n", res.Total)
	fmt.Fprintf(&b, "  %s Valid:        %s\n", st.Valid.Render(IconValid), st.Valid.Render(fmt.Sprint(res.Valid)))
	fmt.Fprintf(&b, "  %s Invalid:      %s\n", st.Invalid.Render(IconInvalid), st.Invalid.Render(fmt.Sprint(len(res.Invalid))))
	if len(res.Errored) > 0 {
		fmt.Fprintf(&b, "  %s Errored:      %s\n", st.Invalid.Render(IconInvalid), st.Invalid.Render(fmt.Sprint(len(res.Errored))))
	}
	fmt.Fprintf(&b, "  %s Skipped:      %s\n", st.Warning.Render(IconSkipped), st.Warning.Render(fmt.Sprint(len(res.Skipped))))
	fmt.Fprintf(&b, "  Duration:       %s\n", res.Duration.Round(time.Millisecond))

	if types := res.Types(); len(types) > 0 {
		b.WriteString("\n" + st.Bold.Render("By file type") + "\n")
		width := 0
		for _, t := range types {
			width = max(width, len(t))
		}
		for _, t := range types {
			tr := res.ByType[t]
			rate := 0
			if tr.Total > 0 {
				rate = tr.Valid * 100 / tr.Total
			}
			pct := fmt.Sprintf("[%3d%%]", rate)
			switch {
			case rate >= 90:
				pct = st.Valid.Render(pct)
			case rate >= 70:
				pct = st.Warning.Render(pct)
			default:
				pct = st.Invalid.Render(pct)
			}
			fmt.Fprintf(&b, "  %-*s %s %d valid, %d total\n", width, t, pct, tr.Valid, tr.Total)
		}
	}

	r.writeFileList(&b, res.Root, "Invalid files", IconInvalid, st.Invalid.Render, res.Invalid)
	r.writeFileList(&b, res.Root, "Errored files", IconInvalid, st.Invalid.Render, res.Errored)
	if r.opts.Verbose {
		r.writeFileList(&b, res.Root, "Skipped", IconSkipped, st.Warning.Render, res.Skipped)
	}

	status := st.Valid.Bold(true).Render("PASSED")
	if !res.Passed() {
		status = st.Invalid.Bold(true).Render("FAILED")
	}
	fmt.Fprintf(&b, "\nFinal status: %s\n", status)
	b.WriteString(st.Muted.Render(strings.Repeat("=", 60)) + "\n")
	return b.String()
}

func (r *Reporter) writeFileList(b *strings.Builder, root, title, icon string, render func(...string) string, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", r.styles.Bold.Render(title))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = f
		}
		fmt.Fprintf(b, "  %s %s\n", render(icon), render(rel))
	}
}
