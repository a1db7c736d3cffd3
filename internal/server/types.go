// Package server exposes the recognition pipeline over HTTP: multipart
// uploads for one-shot processing, a WebSocket endpoint for progress
// streaming, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docufuse/docufuse/internal/engine"
	"github.com/docufuse/docufuse/internal/fusion"
	"github.com/docufuse/docufuse/internal/pipeline"
)

// processor is the slice of the pipeline the server drives.
type processor interface {
	ProcessImage(ctx context.Context, raw []byte, mimeType string, opts pipeline.Options) (fusion.UnifiedResult, error)
	Engines() []engine.Engine
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    processor
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// EngineInfo describes one configured engine.
type EngineInfo struct {
	ID           string              `json:"id"`
	Capabilities engine.Capabilities `json:"capabilities"`
}

// EnginesResponse is the /engines payload.
type EnginesResponse struct {
	Engines []EngineInfo `json:"engines"`
	Count   int          `json:"count"`
}

// ProcessResponse wraps a recognition result for JSON output.
type ProcessResponse struct {
	Success bool                 `json:"success"`
	Result  *fusion.UnifiedResult `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// NewServer creates a server around an already-built pipeline.
func NewServer(config Config, p processor) *Server {
	if config.CORSOrigin == "" {
		config.CORSOrigin = "*"
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	return &Server{
		pipeline:    p,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
}

// Close releases pipeline resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/engines", s.corsMiddleware(s.enginesHandler))
	mux.HandleFunc("/process", s.corsMiddleware(s.processHandler))
	mux.HandleFunc("/ws", s.processWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) requestTimeout() time.Duration {
	if s.timeoutSec <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.timeoutSec) * time.Second
}
