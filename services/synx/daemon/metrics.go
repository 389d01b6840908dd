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
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

// metrics are registered per daemon so several can coexist in one process.
type metrics struct {
	events        *prometheus.CounterVec
	validations   *prometheus.CounterVec
	duration      prometheus.Histogram
	inflight      prometheus.Gauge
	rateWait      prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "synx_daemon_events_total",
			Help: "File events by outcome",
		}, []string{"outcome"}),

		validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "synx_daemon_validations_total",
			Help: "Validations by result status",
		}, []string{"status"}),

		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "synx_daemon_validation_duration_seconds",
			Help:    "Validation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),

		inflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "synx_daemon_inflight_validations",
			Help: "Validations currently running",
		}),

		rateWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "synx_daemon_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the validation rate limiter",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "synx_daemon_http_requests_total",
			Help: "API requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synx_daemon_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
	}
}

// middleware records request count and latency per route template.
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
