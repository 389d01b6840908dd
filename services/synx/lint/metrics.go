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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/A5873/synx/services/synx/datatypes"
)

var (
	tracer = otel.Tracer("synx.lint")
	meter  = otel.Meter("synx.lint")
)

var (
	validateLatency metric.Float64Histogram
	validateTotal   metric.Int64Counter
	stepLatency     metric.Float64Histogram
	errorsFound     metric.Int64Counter
	warningsFound   metric.Int64Counter
	cacheHits       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		validateLatency, err = meter.Float64Histogram(
			"synx_validate_duration_seconds",
			metric.WithDescription("Duration of file validations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		validateTotal, err = meter.Int64Counter(
			"synx_validate_total",
			metric.WithDescription("Total number of file validations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stepLatency, err = meter.Float64Histogram(
			"synx_step_duration_seconds",
			metric.WithDescription("Duration of external tool steps"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		errorsFound, err = meter.Int64Counter(
			"synx_errors_found_total",
			metric.WithDescription("Total number of error issues found"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		warningsFound, err = meter.Int64Counter(
			"synx_warnings_found_total",
			metric.WithDescription("Total number of warning issues found"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"synx_cache_hits_total",
			metric.WithDescription("Validations answered from the cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startValidateSpan(ctx context.Context, path string, strict bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Validate",
		trace.WithAttributes(
			attribute.String("synx.path", path),
			attribute.Bool("synx.strict", strict),
		),
	)
}

func setValidateSpanResult(span trace.Span, res *datatypes.Result) {
	span.SetAttributes(
		attribute.String("synx.language", res.Language),
		attribute.String("synx.status", string(res.Status)),
		attribute.Int("synx.error_count", len(res.Errors)),
		attribute.Int("synx.warning_count", len(res.Warnings)),
		attribute.Bool("synx.cached", res.Cached),
	)
}

func recordValidateMetrics(ctx context.Context, res *datatypes.Result) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("language", res.Language),
		attribute.String("status", string(res.Status)),
	)
	validateTotal.Add(ctx, 1, attrs)
	if res.Cached {
		cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("language", res.Language)))
		return
	}
	validateLatency.Record(ctx, res.Duration.Seconds(), attrs)

	lang := metric.WithAttributes(attribute.String("language", res.Language))
	errorsFound.Add(ctx, int64(len(res.Errors)), lang)
	warningsFound.Add(ctx, int64(len(res.Warnings)), lang)
}

func recordStepMetrics(ctx context.Context, step, tool string, d time.Duration, passed bool) {
	if err := initMetrics(); err != nil {
		return
	}
	stepLatency.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("tool", tool),
		attribute.Bool("passed", passed),
	))
}
