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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
)

type capturedWrite struct {
	query string
	auth  string
	body  string
}

func influxServer(t *testing.T) (*httptest.Server, func() []capturedWrite) {
	t.Helper()
	var mu sync.Mutex
	var writes []capturedWrite
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		writes = append(writes, capturedWrite{query: r.URL.RawQuery, auth: r.Header.Get("Authorization"), body: string(body)})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedWrite {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedWrite(nil), writes...)
	}
}

func TestNewInfluxHistory_Disabled(t *testing.T) {
	_, err := NewInfluxHistory(config.HistoryConfig{})
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestInfluxHistory_Record(t *testing.T) {
	srv, writes := influxServer(t)
	t.Setenv("SYNX_TEST_INFLUX_TOKEN", "secret-token")

	h, err := NewInfluxHistory(config.HistoryConfig{URL: srv.URL, Bucket: "checks", TokenEnv: "SYNX_TEST_INFLUX_TOKEN"})
	require.NoError(t, err)
	defer h.Close()

	res := &datatypes.Result{
		Path:      "/src/app.py",
		Language:  "python",
		FileType:  "Python",
		Status:    datatypes.StatusInvalid,
		Strict:    true,
		Duration:  25 * time.Millisecond,
		CheckedAt: time.Unix(1700000000, 0),
	}
	res.AddIssues(
		datatypes.Issue{Severity: datatypes.SeverityError, Message: "syntax"},
		datatypes.Issue{Severity: datatypes.SeverityWarning, Message: "style"},
	)
	require.NoError(t, h.Record(context.Background(), res))

	got := writes()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].query, "org=synx")
	assert.Contains(t, got[0].query, "bucket=checks")
	assert.Equal(t, "Token secret-token", got[0].auth)

	body := got[0].body
	assert.Contains(t, body, "synx_validations,")
	assert.Contains(t, body, "status=invalid")
	assert.Contains(t, body, "strict=true")
	assert.Contains(t, body, "language=python")
	assert.Contains(t, body, "errors=1i")
	assert.Contains(t, body, "warnings=1i")
	assert.Contains(t, body, "duration_ms=25")
	assert.Contains(t, body, "1700000000000000000")
}

func TestInfluxHistory_RecordNil(t *testing.T) {
	srv, writes := influxServer(t)
	h, err := NewInfluxHistory(config.HistoryConfig{URL: srv.URL})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Record(context.Background(), nil))
	assert.Empty(t, writes())
}

func TestInfluxHistory_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"bad token"}`))
	}))
	defer srv.Close()

	h, err := NewInfluxHistory(config.HistoryConfig{URL: srv.URL})
	require.NoError(t, err)
	defer h.Close()

	err = h.Record(context.Background(), &datatypes.Result{Path: "/a", Status: datatypes.StatusValid})
	assert.Error(t, err)
}
