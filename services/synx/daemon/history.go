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
	"errors"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/A5873/synx/services/synx/config"
	"github.com/A5873/synx/services/synx/datatypes"
)

// ErrHistoryDisabled is returned by NewInfluxHistory when no URL is set.
var ErrHistoryDisabled = errors.New("history: no InfluxDB URL configured")

const (
	historyMeasurement = "synx_validations"
	defaultTokenEnv    = "INFLUXDB_TOKEN"
	defaultHistoryOrg  = "synx"
	defaultBucket      = "synx"
)

// History records validation results somewhere durable.
type History interface {
	Record(ctx context.Context, res *datatypes.Result) error
	Close()
}

// InfluxHistory writes one point per validation to an InfluxDB v2 bucket.
type InfluxHistory struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxHistory connects to the bucket named in cfg.
//
// The token is read from the environment variable cfg.TokenEnv
// (INFLUXDB_TOKEN by default). Org and bucket default to "synx".
func NewInfluxHistory(cfg config.HistoryConfig) (*InfluxHistory, error) {
	if cfg.URL == "" {
		return nil, ErrHistoryDisabled
	}
	tokenEnv := cfg.TokenEnv
	if tokenEnv == "" {
		tokenEnv = defaultTokenEnv
	}
	org := cfg.Org
	if org == "" {
		org = defaultHistoryOrg
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}

	client := influxdb2.NewClient(cfg.URL, os.Getenv(tokenEnv))
	return &InfluxHistory{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		org:      org,
		bucket:   bucket,
	}, nil
}

// Record writes res as a point. Tags carry the file identity and outcome;
// fields carry the counts and duration.
func (h *InfluxHistory) Record(ctx context.Context, res *datatypes.Result) error {
	if res == nil {
		return nil
	}
	ts := res.CheckedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2.NewPointWithMeasurement(historyMeasurement).
		AddTag("path", res.Path).
		AddTag("language", res.Language).
		AddTag("status", string(res.Status)).
		AddTag("strict", boolTag(res.Strict)).
		AddField("errors", len(res.Errors)).
		AddField("warnings", len(res.Warnings)).
		AddField("infos", len(res.Infos)).
		AddField("duration_ms", float64(res.Duration)/float64(time.Millisecond)).
		AddField("cached", res.Cached).
		SetTime(ts)
	if res.FileType != "" {
		p.AddTag("file_type", res.FileType)
	}
	return h.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (h *InfluxHistory) Close() {
	h.client.Close()
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
