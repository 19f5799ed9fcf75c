package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aevon-lab/geosplit/internal/core/config"
	httperr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
	"github.com/aevon-lab/geosplit/internal/metrics"
	"github.com/aevon-lab/geosplit/internal/pipeline"
	"github.com/aevon-lab/geosplit/internal/source"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

const maxBodySizeBytes = 1 << 20

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgBusy           = "Too many splits in progress"
)

// RunFunc runs one split. pipeline.Run in production.
type RunFunc func(ctx context.Context, cfg config.Config, deps pipeline.Dependencies) (pipeline.Summary, error)

// SplitRequest overrides the server's base configuration for one split. Empty fields keep
// the base value.
type SplitRequest struct {
	Input        string         `json:"input" binding:"required"`
	SplitKey     string         `json:"split_key" binding:"required"`
	Folder       string         `json:"folder"`
	Extension    string         `json:"extension"`
	AbsentPolicy string         `json:"absent_policy"`
	Concurrency  int            `json:"concurrency"`
	Filter       *FilterRequest `json:"filter"`
}

type FilterRequest struct {
	Key    string   `json:"key"`
	Mode   string   `json:"mode"`
	Values []string `json:"values"`
	Text   string   `json:"text"`
}

// Service exposes split runs and dataset discovery over HTTP.
type Service struct {
	base    config.Config
	metrics *metrics.Collector
	run     RunFunc
	slots   *semaphore.Weighted
}

// NewService creates the split service. At most maxConcurrent splits run at once; further
// requests are rejected instead of queued.
func NewService(base config.Config, m *metrics.Collector, run RunFunc, maxConcurrent int) *Service {
	if run == nil {
		run = pipeline.Run
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		base:    base,
		metrics: m,
		run:     run,
		slots:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (s *Service) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/splits", s.SplitHandler)
	v1.GET("/keys", s.KeysHandler)
	v1.GET("/values", s.ValuesHandler)
}

// SplitHandler runs a split synchronously and responds with its summary.
func (s *Service) SplitHandler(c *gin.Context) {
	req, ok := s.parseSplit(c)
	if !ok {
		return
	}

	if !s.slots.TryAcquire(1) {
		slog.Warn("Split rejected, server busy", "input", req.Input)
		c.JSON(http.StatusTooManyRequests, httperr.ErrorResponse{
			ErrorType: httperr.HttpBusyError,
			Message:   msgBusy,
		})
		return
	}
	defer s.slots.Release(1)

	cfg := s.configFor(req)
	if err := cfg.Validate(); err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Received split request", "input", req.Input, "split_key", req.SplitKey, "folder", req.Folder)

	summary, err := s.run(c.Request.Context(), cfg, pipeline.Dependencies{Metrics: s.metrics})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "completed",
		"documents":   summary.Documents,
		"read":        summary.Read,
		"staged":      summary.Staged,
		"skipped":     summary.Skipped,
		"elapsed_ms":  summary.Elapsed.Milliseconds(),
		"destination": summary.Destination,
	})
}

// KeysHandler lists the attribute keys of a dataset.
func (s *Service) KeysHandler(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		writeBadRequest(c, "query parameter 'path' is required")
		return
	}

	r, err := source.NewReader(path)
	if err != nil {
		writeError(c, err)
		return
	}
	keys, err := source.Keys(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": r.Path(), "keys": keys})
}

// ValuesHandler lists the distinct values of one attribute of a dataset.
func (s *Service) ValuesHandler(c *gin.Context) {
	path, key := c.Query("path"), c.Query("key")
	if path == "" || key == "" {
		writeBadRequest(c, "query parameters 'path' and 'key' are required")
		return
	}

	r, err := source.NewReader(path)
	if err != nil {
		writeError(c, err)
		return
	}
	values, err := source.DistinctValues(c.Request.Context(), r, key)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v.Interface()
	}
	c.JSON(http.StatusOK, gin.H{"path": r.Path(), "key": key, "values": out})
}

func (s *Service) parseSplit(c *gin.Context) (*SplitRequest, bool) {
	limited := io.LimitReader(c.Request.Body, maxBodySizeBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   msgReadBodyFailed,
		})
		return nil, false
	}
	if len(body) > maxBodySizeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Request body exceeds maximum allowed size",
		})
		return nil, false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var req SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid split request", "error", err)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   msgInvalidJSON,
			Details:   err.Error(),
		})
		return nil, false
	}
	return &req, true
}

// configFor layers a request over the base configuration. The base is never mutated.
func (s *Service) configFor(req *SplitRequest) config.Config {
	cfg := s.base
	cfg.Input.Path = req.Input
	cfg.Split.Key = req.SplitKey
	if req.Folder != "" {
		cfg.Output.Folder = req.Folder
	}
	if req.Extension != "" {
		cfg.Output.Extension = req.Extension
	}
	if req.AbsentPolicy != "" {
		cfg.Split.AbsentPolicy = groupkey.AbsentPolicy(req.AbsentPolicy)
	}
	if req.Concurrency > 0 {
		cfg.Finalize.Concurrency = req.Concurrency
	}
	if req.Filter != nil {
		cfg.Filter = config.FilterConfig{
			Key:    req.Filter.Key,
			Mode:   req.Filter.Mode,
			Values: append([]string(nil), req.Filter.Values...),
			Text:   req.Filter.Text,
		}
	}
	return cfg
}

func writeBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.KindInvalidConfig,
		Message:   msg,
	})
}

// writeError maps a run error to a status code and the shared error envelope.
func writeError(c *gin.Context, err error) {
	kind := httperr.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case httperr.KindInvalidConfig, httperr.KindSourceUnreadable, httperr.KindDecode:
		status = http.StatusBadRequest
	case httperr.KindCanceled:
		status = http.StatusRequestTimeout
	}

	var details interface{}
	var corrupt *httperr.StagingCorruptError
	if errors.As(err, &corrupt) {
		details = corrupt.Details()
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Split request failed", "kind", kind, "error", err)
	} else {
		slog.Warn("Split request rejected", "kind", kind, "error", err)
	}
	c.JSON(status, httperr.ErrorResponse{
		ErrorType: kind,
		Message:   err.Error(),
		Details:   details,
	})
}
