// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package daemon

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
)

// ErrUnsupportedPlatform is returned for operating systems without a
// service manager template.
var ErrUnsupportedPlatform = errors.New("no service manager support for this platform")

// LaunchdLabel identifies the launchd job.
const LaunchdLabel = "dev.synx.daemon"

// ServiceSpec describes how the service manager should start the daemon.
type ServiceSpec struct {
	// Executable is the absolute path of the synx binary.
	Executable string

	// ConfigPath is passed as --config when set.
	ConfigPath string

	WorkingDir string

	// LogDir receives stdout/stderr under launchd.
	LogDir string
}

// Args returns the daemon command line.
func (s ServiceSpec) Args() []string {
	args := []string{s.Executable, "daemon", "run"}
	if s.ConfigPath != "" {
		args = append(args, "--config", s.ConfigPath)
	}
	return args
}

var systemdTemplate = template.Must(template.New("systemd").Funcs(template.FuncMap{
	"quote": systemdQuote,
}).Parse(`[Unit]
Description=synx file validation daemon
After=default.target

[Service]
Type=simple
ExecStart={{range $i, $a := .Args}}{{if $i}} {{end}}{{quote $a}}{{end}}
{{- if .WorkingDir}}
WorkingDirectory={{.WorkingDir}}
{{- end}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

var launchdTemplate = template.Must(template.New("launchd").Funcs(template.FuncMap{
	"xml": xmlEscape,
}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
{{- range .Spec.Args}}
		<string>{{xml .}}</string>
{{- end}}
	</array>
{{- if .Spec.WorkingDir}}
	<key>WorkingDirectory</key>
	<string>{{xml .Spec.WorkingDir}}</string>
{{- end}}
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
{{- if .Spec.LogDir}}
	<key>StandardOutPath</key>
	<string>{{xml .Spec.LogDir}}/daemon.out.log</string>
	<key>StandardErrorPath</key>
	<string>{{xml .Spec.LogDir}}/daemon.err.log</string>
{{- end}}
</dict>
</plist>
`))

// SystemdUnit renders a systemd user unit.
func SystemdUnit(spec ServiceSpec) (string, error) {
	if spec.Executable == "" {
		return "", errors.New("service: executable path is required")
	}
	var buf bytes.Buffer
	if err := systemdTemplate.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("rendering systemd unit: %w", err)
	}
	return buf.String(), nil
}

// LaunchdPlist renders a launchd agent definition.
func LaunchdPlist(spec ServiceSpec) (string, error) {
	if spec.Executable == "" {
		return "", errors.New("service: executable path is required")
	}
	var buf bytes.Buffer
	data := struct {
		Label string
		Spec  ServiceSpec
	}{LaunchdLabel, spec}
	if err := launchdTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering launchd plist: %w", err)
	}
	return buf.String(), nil
}

// ServiceFile renders the service definition for goos and returns where
// it belongs under home.
//
// Outputs:
//
//	path - ~/.config/systemd/user/synx.service or
//	       ~/Library/LaunchAgents/dev.synx.daemon.plist
//	content - The rendered file
//	error - ErrUnsupportedPlatform or a render error
func ServiceFile(goos, home string, spec ServiceSpec) (path, content string, err error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		content, err = SystemdUnit(spec)
		path = filepath.Join(home, ".config", "systemd", "user", "synx.service")
	case "darwin":
		content, err = LaunchdPlist(spec)
		path = filepath.Join(home, "Library", "LaunchAgents", LaunchdLabel+".plist")
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
	return path, content, err
}

// InstallServiceFile writes content to path, creating parent directories.
func InstallServiceFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// systemdQuote quotes an ExecStart argument when it contains whitespace or
// quotes.
func systemdQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	return strconv.Quote(s)
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
