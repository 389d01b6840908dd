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
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/A5873/synx/services/synx/datatypes"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string   `json:"status"`
	PID           int      `json:"pid"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	WatchPaths    []string `json:"watch_paths"`
}

// ValidateRequest is the body of POST /v1/validate.
type ValidateRequest struct {
	Path string `json:"path" binding:"required"`
}

// ResultsResponse is returned by GET /v1/results.
type ResultsResponse struct {
	Count   int                 `json:"count"`
	Results []*datatypes.Result `json:"results"`
}

// Router builds the HTTP API.
func (d *Daemon) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("synx-daemon"))
	router.Use(d.metrics.middleware())

	router.GET("/health", d.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherers, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/stats", d.handleStats)
		v1.GET("/results", d.handleResults)
		v1.GET("/result", d.handleResult)
		v1.POST("/validate", d.handleValidate)
		v1.GET("/events", d.hub.handle)
	}
	return router
}

func (d *Daemon) handleHealth(c *gin.Context) {
	var uptime float64
	if !d.started.IsZero() {
		uptime = time.Since(d.started).Seconds()
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		PID:           os.Getpid(),
		UptimeSeconds: uptime,
		WatchPaths:    d.Roots(),
	})
}

func (d *Daemon) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, d.Stats())
}

func (d *Daemon) handleResults(c *gin.Context) {
	failing, _ := strconv.ParseBool(c.Query("failing"))
	results := d.Results(failing)
	c.JSON(http.StatusOK, ResultsResponse{Count: len(results), Results: results})
}

func (d *Daemon) handleResult(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "path is required", Code: "MISSING_PATH"})
		return
	}
	res, ok := d.Result(path)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no result for path", Code: "NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (d *Daemon) handleValidate(c *gin.Context) {
	if c.ContentType() != gin.MIMEJSON {
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Error: "content type must be application/json", Code: "UNSUPPORTED_MEDIA_TYPE"})
		return
	}

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_PATH"})
		return
	}
	if !d.filter.Within(abs) || !d.filter.Allow(abs) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "path is not under a watched root", Code: "OUTSIDE_WATCH_PATHS"})
		return
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found", Code: "NOT_FOUND"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_PATH"})
		return
	case !info.Mode().IsRegular():
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "not a regular file", Code: "NOT_A_FILE"})
		return
	}

	res, err := d.Validate(c.Request.Context(), abs)
	if err != nil {
		d.logger.Warn("api validation failed", "file", abs, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "VALIDATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, res)
}
