// Package pipeline wires normalization, layout analysis, orchestration,
// fusion, and enrichment into the single entry point callers use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docufuse/docufuse/internal/cache"
	"github.com/docufuse/docufuse/internal/engine"
	"github.com/docufuse/docufuse/internal/enrich"
	"github.com/docufuse/docufuse/internal/fusion"
	"github.com/docufuse/docufuse/internal/layout"
	"github.com/docufuse/docufuse/internal/orchestrate"
	"github.com/docufuse/docufuse/internal/raster"
)

// Config holds configuration for the recognition pipeline and its stages.
type Config struct {
	Raster      raster.Options
	Layout      layout.Config
	Orchestrate orchestrate.Config
	Fusion      fusion.Config

	// CacheDir enables the on-disk result cache for file processing when
	// non-empty.
	CacheDir string

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with stage defaults.
func DefaultConfig() Config {
	return Config{
		Raster:      raster.DefaultOptions(),
		Layout:      layout.DefaultConfig(),
		Orchestrate: orchestrate.DefaultConfig(),
		Fusion:      fusion.DefaultConfig(),
		Parallel:    DefaultParallelConfig(),
	}
}

// Options are per-invocation knobs. Zero values defer to the pipeline
// config.
type Options struct {
	// Preprocess applies the full enhancement chain before recognition.
	// When false only grayscale reduction runs.
	Preprocess bool
	// DetectLayout runs structural layout analysis on the normalized raster.
	DetectLayout bool
	// LanguageHints are forwarded to every engine.
	LanguageHints []string

	// Mode overrides the configured orchestration mode when set.
	Mode *orchestrate.Mode
	// ConfidenceThreshold overrides the sequential acceptance bar when > 0.
	ConfidenceThreshold float64
	// PerEngineTimeout overrides the per-engine deadline when > 0.
	PerEngineTimeout time.Duration
}

// DefaultOptions enables the full pipeline.
func DefaultOptions() Options {
	return Options{Preprocess: true, DetectLayout: true}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	engines []engine.Engine
	logger  *slog.Logger
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithEngines sets the recognition engines, highest priority first.
func (b *Builder) WithEngines(engines ...engine.Engine) *Builder {
	b.engines = engines
	return b
}

// WithMode sets the default orchestration mode.
func (b *Builder) WithMode(mode orchestrate.Mode) *Builder {
	b.cfg.Orchestrate.Mode = mode
	return b
}

// WithConfidenceThreshold sets the sequential acceptance threshold.
func (b *Builder) WithConfidenceThreshold(th float64) *Builder {
	if th > 0 {
		b.cfg.Orchestrate.ConfidenceThreshold = th
	}
	return b
}

// WithPerEngineTimeout sets the per-engine deadline.
func (b *Builder) WithPerEngineTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.Orchestrate.PerEngineTimeout = d
	}
	return b
}

// WithOverallTimeout bounds a whole invocation.
func (b *Builder) WithOverallTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.Orchestrate.OverallTimeout = d
	}
	return b
}

// WithRasterOptions replaces the normalization options.
func (b *Builder) WithRasterOptions(opts raster.Options) *Builder {
	b.cfg.Raster = opts
	return b
}

// WithLayoutConfig replaces the layout analysis config.
func (b *Builder) WithLayoutConfig(cfg layout.Config) *Builder {
	b.cfg.Layout = cfg
	return b
}

// WithFusionConfig replaces the fusion config.
func (b *Builder) WithFusionConfig(cfg fusion.Config) *Builder {
	b.cfg.Fusion = cfg
	return b
}

// WithCacheDir enables the on-disk result cache.
func (b *Builder) WithCacheDir(dir string) *Builder {
	b.cfg.CacheDir = dir
	return b
}

// WithParallelWorkers sets the worker count for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// WithLogger sets the pipeline logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration without building.
func (b *Builder) Validate() error {
	if len(b.engines) == 0 {
		return errors.New("no recognition engines configured")
	}
	if err := b.cfg.Raster.Validate(); err != nil {
		return fmt.Errorf("raster options: %w", err)
	}
	if err := b.cfg.Orchestrate.Validate(); err != nil {
		return fmt.Errorf("orchestration config: %w", err)
	}
	return nil
}

// Build initializes the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{cfg: b.cfg, engines: b.engines, log: logger}

	if b.cfg.CacheDir != "" {
		c, err := cache.New(b.cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		p.cache = c
	}
	return p, nil
}

// Pipeline runs the full recognition flow for one image at a time. Safe for
// concurrent use: all per-invocation state is local.
type Pipeline struct {
	cfg     Config
	engines []engine.Engine
	cache   *cache.Cache
	log     *slog.Logger
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Engines returns the configured engines in priority order.
func (p *Pipeline) Engines() []engine.Engine { return p.engines }

// ProcessImage runs one recognition invocation over raw image bytes.
// Unreadable input is the only hard failure; every degraded condition is
// reported through fields of the returned result.
func (p *Pipeline) ProcessImage(ctx context.Context, raw []byte, mimeType string, opts Options) (fusion.UnifiedResult, error) {
	started := time.Now()

	rasterOpts := p.cfg.Raster
	rasterOpts.Enhance = opts.Preprocess
	normalized, err := raster.Normalize(raw, mimeType, rasterOpts)
	if err != nil {
		return fusion.UnifiedResult{}, err
	}

	var lay layout.Map
	if opts.DetectLayout {
		lay = layout.Analyze(normalized, p.cfg.Layout)
	}

	orch, err := orchestrate.New(p.orchestrateConfig(opts), p.engines...)
	if err != nil {
		return fusion.UnifiedResult{}, err
	}
	run := orch.Run(ctx, engine.Input{
		Raw:        raw,
		MIME:       mimeType,
		Normalized: normalized.Gray,
		Languages:  opts.LanguageHints,
	})

	result := fusion.Fuse(run.Results, lay, p.cfg.Fusion)
	result = enrich.Enrich(result, nil)

	p.log.Info("image processed",
		"method", result.Method,
		"outcome", run.Outcome.String(),
		"confidence", result.OverallConfidence,
		"regions", len(lay),
		"duration", time.Since(started))
	return result, nil
}

// ProcessFile runs ProcessImage over a file, consulting the result cache and
// stamping file provenance.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, opts Options) (fusion.UnifiedResult, error) {
	var key string
	if p.cache != nil {
		k, err := p.cache.Key(path)
		if err == nil {
			key = k
			if res, ok := p.cache.Get(key); ok {
				p.log.Debug("cache hit", "path", path)
				return res, nil
			}
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fusion.UnifiedResult{}, fmt.Errorf("read %s: %w", path, err)
	}

	result, err := p.ProcessImage(ctx, raw, MIMEForPath(path), opts)
	if err != nil {
		return fusion.UnifiedResult{}, err
	}
	result = enrich.Enrich(result, enrich.FileHandle{Path: path})

	if p.cache != nil && key != "" {
		if err := p.cache.Put(key, result); err != nil {
			p.log.Warn("cache write failed", "path", path, "error", err)
		}
	}
	return result, nil
}

func (p *Pipeline) orchestrateConfig(opts Options) orchestrate.Config {
	cfg := p.cfg.Orchestrate
	if opts.Mode != nil {
		cfg.Mode = *opts.Mode
	}
	if opts.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = opts.ConfidenceThreshold
	}
	if opts.PerEngineTimeout > 0 {
		cfg.PerEngineTimeout = opts.PerEngineTimeout
	}
	cfg.Logger = p.log
	return cfg
}

// Close releases engine resources for engines that hold any.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, eng := range p.engines {
		closer, ok := eng.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MIMEForPath guesses the MIME type from the file extension. Unknown
// extensions return an empty string and leave detection to the decoder.
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return ""
	}
}
