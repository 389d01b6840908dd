// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_Extensions(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.go", Go},
		{"calc.py", Python},
		{"stubs.pyi", Python},
		{"lib.rs", Rust},
		{"hello.c", C},
		{"hello.CPP", Cpp},
		{"widget.cc", Cpp},
		{"Person.cs", CSharp},
		{"app.mjs", JavaScript},
		{"view.tsx", TypeScript},
		{"Main.java", Java},
		{"data.json", JSON},
		{"ci.yml", YAML},
		{"index.htm", HTML},
		{"site.css", CSS},
		{"run.sh", Shell},
		{"Cargo.toml", TOML},
		{"README.md", Markdown},
		{"Dockerfile", Dockerfile},
		{"Dockerfile.prod", Dockerfile},
		{"Makefile", Makefile},
		{"Jenkinsfile", Groovy},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ft, err := Detect(tt.path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ft.Language)
			assert.Equal(t, SourceExtension, ft.Source)
		})
	}
}

func TestDetect_MappingWins(t *testing.T) {
	mappings := map[string]string{
		"BUILD":       "py",
		"Jenkinsfile": "groovy",
		"special.txt": "weird",
		"config.json": "yaml",
	}

	ft, err := Detect("/repo/BUILD", mappings)
	require.NoError(t, err)
	assert.Equal(t, Python, ft.Language)
	assert.Equal(t, SourceMapping, ft.Source)

	ft, err = Detect("config.json", mappings)
	require.NoError(t, err)
	assert.Equal(t, YAML, ft.Language, "mapping beats extension")

	ft, err = Detect("special.txt", mappings)
	require.NoError(t, err)
	assert.False(t, ft.IsKnown())
	assert.Equal(t, "weird", ft.Key())
	assert.Equal(t, "Unknown (weird)", ft.String())
}

func TestDetect_Shebang(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    Language
	}{
		{"script-bash", "#!/bin/bash\necho hi\n", Shell},
		{"script-env-python", "#!/usr/bin/env python3\nprint(1)\n", Python},
		{"script-env-flags", "#!/usr/bin/env -S node --no-warnings\n", JavaScript},
		{"script-none", "just text\n", Unknown},
		{"script-empty", "", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0755))

			ft, err := Detect(path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ft.Language)
			if tt.want != Unknown {
				assert.Equal(t, SourceShebang, ft.Source)
			}
		})
	}
}

func TestDetect_UnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.xyz")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	ft, err := Detect(path, nil)
	require.NoError(t, err)
	assert.False(t, ft.IsKnown())
	assert.Equal(t, "xyz", ft.Key())
	assert.Equal(t, "Unknown (xyz)", ft.String())
}

func TestDetect_Errors(t *testing.T) {
	_, err := Detect("", nil)
	assert.True(t, errors.Is(err, ErrEmptyPath))

	ft, err := Detect(filepath.Join(t.TempDir(), "missing-no-ext"), nil)
	assert.Error(t, err)
	assert.False(t, ft.IsKnown())
}

func TestFromShebang(t *testing.T) {
	assert.Equal(t, Shell, FromShebang("#!/bin/sh"))
	assert.Equal(t, Python, FromShebang("#!/usr/local/bin/python3.12"))
	assert.Equal(t, TypeScript, FromShebang("#!/usr/bin/env ts-node"))
	assert.Equal(t, Unknown, FromShebang("#!"))
	assert.Equal(t, Unknown, FromShebang("# comment"))
	assert.Equal(t, Unknown, FromShebang("#!/usr/bin/env"))
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, Python, ParseLanguage("python"))
	assert.Equal(t, Python, ParseLanguage(".py"))
	assert.Equal(t, Cpp, ParseLanguage("C++"))
	assert.Equal(t, Cpp, ParseLanguage("hpp"))
	assert.Equal(t, Groovy, ParseLanguage("Jenkinsfile"))
	assert.Equal(t, Unknown, ParseLanguage("cobol"))
}

func TestExtensionForAndDisplayName(t *testing.T) {
	assert.Equal(t, ".py", ExtensionFor(Python))
	assert.Equal(t, ".cpp", ExtensionFor(Cpp))
	assert.Equal(t, "", ExtensionFor(Unknown))
	assert.Equal(t, "C#", DisplayName(CSharp))
	assert.Equal(t, "Unknown", DisplayName(Language("cobol")))
}

func TestLanguagesSorted(t *testing.T) {
	langs := Languages()
	require.NotEmpty(t, langs)
	for i := 1; i < len(langs); i++ {
		assert.Less(t, string(langs[i-1]), string(langs[i]))
	}
}
