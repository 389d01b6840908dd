// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/A5873/synx/services/synx/detect"
	"github.com/A5873/synx/services/synx/report"
	"github.com/A5873/synx/services/synx/tools"
)

func newToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show which external validators are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			det := tools.NewDetector(nil)
			langs := det.Languages(ctx, a.cfg)

			var goStatus *tools.Status
			wd, _ := os.Getwd()
			if _, err := tools.FindGoMod(wd); err == nil {
				req, err := tools.GoRequirement(wd)
				if err != nil {
					return err
				}
				st := det.Detect(ctx, req)
				goStatus = &st
			}

			format, err := report.ParseFormat(a.flags.format)
			if err != nil {
				return err
			}
			if format == report.FormatJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Languages []tools.LanguageReport `json:"languages"`
					GoModule  *tools.Status          `json:"go_module,omitempty"`
				}{langs, goStatus})
			}

			styles := report.NewStyles(a.stdout, report.ColorEnabled(a.stdout, a.flags.noColor))
			for _, lr := range langs {
				icon := styles.Valid.Render(report.IconValid)
				if !lr.Ready {
					icon = styles.Warning.Render(report.IconWarning)
				}
				fmt.Fprintf(a.stdout, "%s %s\n", icon, detect.DisplayName(lr.Language))
				if len(lr.Tools) == 0 {
					fmt.Fprintf(a.stdout, "    %s\n", styles.Muted.Render("built in"))
				}
				for _, st := range lr.Tools {
					fmt.Fprintf(a.stdout, "    %s\n", st.Summary())
				}
			}
			if goStatus != nil {
				fmt.Fprintf(a.stdout, "\ngo.mod toolchain: %s\n", goStatus.Summary())
			}
			return nil
		},
	}
}
