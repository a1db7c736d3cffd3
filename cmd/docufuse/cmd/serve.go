package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docufuse/docufuse/internal/server"
)

// serveCmd starts the HTTP API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP recognition API",
	Long: `Start an HTTP server exposing the recognition pipeline.

Endpoints:
  POST /process  - recognize an uploaded image
  GET  /engines  - list configured engines and capabilities
  GET  /health   - health check
  GET  /metrics  - Prometheus metrics
  GET  /ws       - WebSocket recognition with progress streaming

Examples:
  docufuse serve
  docufuse serve --port 8080
  docufuse serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "host to bind to")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on")
	serveCmd.Flags().String("cors-origin", "", "allowed CORS origin")
	serveCmd.Flags().Int("max-upload-size", 0, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 0, "per-request processing timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}
	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	maxUploadMB := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	timeoutSec := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	p, err := buildPipeline(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Config{
		Host:        host,
		Port:        port,
		CORSOrigin:  corsOrigin,
		MaxUploadMB: int64(maxUploadMB),
		TimeoutSec:  timeoutSec,
	}, p)
	defer func() { _ = srv.Close() }()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	return nil
}
