package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docufuse/docufuse/internal/orchestrate"
	"github.com/docufuse/docufuse/internal/pipeline"
	"github.com/docufuse/docufuse/internal/raster"
	"github.com/docufuse/docufuse/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("encode health response", "error", err)
	}
}

// enginesHandler lists the configured engines and their capabilities.
func (s *Server) enginesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	engines := s.pipeline.Engines()
	infos := make([]EngineInfo, len(engines))
	for i, eng := range engines {
		infos[i] = EngineInfo{ID: eng.ID(), Capabilities: eng.Capabilities()}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(EnginesResponse{Engines: infos, Count: len(infos)}); err != nil {
		slog.Error("encode engines response", "error", err)
	}
}

// processHandler runs one recognition invocation over an uploaded image.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	uploadSizeBytes.Observe(float64(len(raw)))

	opts, err := optionsFromRequest(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	started := time.Now()
	result, err := s.pipeline.ProcessImage(ctx, raw, mimeFromUpload(header.Header.Get("Content-Type"), header.Filename), opts)
	if err != nil {
		recognitionRequestsTotal.WithLabelValues("http", "error").Inc()
		var decodeErr *raster.DecodeError
		if errors.As(err, &decodeErr) {
			s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
			return
		}
		s.writeErrorResponse(w, fmt.Sprintf("Processing failed: %v", err), http.StatusInternalServerError)
		return
	}
	observeResult("http", result.Method, result.OverallConfidence, len(result.Text), time.Since(started).Seconds())

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	switch format {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, pipeline.ToPlainText(result))
	case "csv":
		out, err := pipeline.ToCSV(result)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, out)
	default:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ProcessResponse{Success: true, Result: &result}); err != nil {
			slog.Error("encode process response", "error", err)
		}
	}
}

// optionsFromRequest builds per-invocation options from form values.
func optionsFromRequest(r *http.Request) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()

	if v := r.FormValue("preprocess"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid preprocess value %q", v)
		}
		opts.Preprocess = b
	}
	if v := r.FormValue("layout"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid layout value %q", v)
		}
		opts.DetectLayout = b
	}
	if v := r.FormValue("languages"); v != "" {
		opts.LanguageHints = strings.Split(v, ",")
	}
	if v := r.FormValue("mode"); v != "" {
		mode, err := orchestrate.ParseMode(v)
		if err != nil {
			return opts, err
		}
		opts.Mode = &mode
	}
	if v := r.FormValue("confidence_threshold"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil || th <= 0 || th > 1 {
			return opts, fmt.Errorf("invalid confidence threshold %q", v)
		}
		opts.ConfidenceThreshold = th
	}
	return opts, nil
}

// mimeFromUpload prefers the declared content type, falling back to the
// upload's file extension.
func mimeFromUpload(contentType, filename string) string {
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	return pipeline.MIMEForPath(filename)
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: message}); err != nil {
		slog.Error("encode error response", "error", err)
	}
}
