package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/docufuse/docufuse/internal/config"
	"github.com/docufuse/docufuse/internal/engine"
	"github.com/docufuse/docufuse/internal/engine/gvision"
	"github.com/docufuse/docufuse/internal/engine/structural"
	"github.com/docufuse/docufuse/internal/engine/tessstat"
	"github.com/docufuse/docufuse/internal/engine/visionllm"
	"github.com/docufuse/docufuse/internal/fusion"
	"github.com/docufuse/docufuse/internal/orchestrate"
	"github.com/docufuse/docufuse/internal/pipeline"
	"github.com/docufuse/docufuse/internal/raster"
)

// buildEngines assembles the configured engines in priority order: primary
// (vision LLM or Google Vision), structural, statistical. An engine that
// fails to initialize is skipped with a warning; recognition degrades to the
// remaining engines.
func buildEngines(ctx context.Context, cfg *config.Config) ([]engine.Engine, error) {
	var engines []engine.Engine

	if cfg.Engines.VisionLLM.Enabled {
		apiKey := cfg.Engines.VisionLLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		eng, err := visionllm.New(visionllm.Config{
			APIKey:    apiKey,
			BaseURL:   cfg.Engines.VisionLLM.BaseURL,
			Model:     cfg.Engines.VisionLLM.Model,
			MaxTokens: cfg.Engines.VisionLLM.MaxTokens,
		})
		if err != nil {
			slog.Warn("vision LLM engine unavailable", "error", err)
		} else {
			engines = append(engines, eng)
		}
	}

	if cfg.Engines.GoogleVision.Enabled {
		eng, err := gvision.New(ctx, gvision.Config{
			CredentialsFile: cfg.Engines.GoogleVision.CredentialsFile,
		})
		if err != nil {
			slog.Warn("google vision engine unavailable", "error", err)
		} else {
			engines = append(engines, eng)
		}
	}

	if cfg.Engines.Structural.Enabled {
		eng, err := structural.New(structural.Config{
			ModelPath:   cfg.Engines.Structural.ModelPath,
			DictPath:    cfg.Engines.Structural.DictPath,
			ImageHeight: cfg.Engines.Structural.ImageHeight,
			NumThreads:  cfg.Engines.Structural.NumThreads,
		})
		if err != nil {
			slog.Warn("structural engine unavailable", "error", err)
		} else {
			engines = append(engines, eng)
		}
	}

	if cfg.Engines.Statistical.Enabled {
		engines = append(engines, tessstat.New(tessstat.Config{
			Languages: cfg.Engines.Statistical.Languages,
		}))
	}

	if len(engines) == 0 {
		return nil, errors.New("no recognition engines could be initialized")
	}
	return engines, nil
}

// buildPipeline assembles the pipeline from the resolved configuration.
// progress may be nil.
func buildPipeline(ctx context.Context, cfg *config.Config, progress pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	engines, err := buildEngines(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mode, err := orchestrate.ParseMode(cfg.Pipeline.Mode)
	if err != nil {
		return nil, err
	}

	rasterOpts := raster.DefaultOptions()
	if cfg.Pipeline.ClipLimit > 0 {
		rasterOpts.ClipLimit = cfg.Pipeline.ClipLimit
	}
	if cfg.Pipeline.TileGrid > 0 {
		rasterOpts.TileGrid = cfg.Pipeline.TileGrid
	}
	if cfg.Pipeline.BlockSize > 0 {
		rasterOpts.BlockSize = cfg.Pipeline.BlockSize
	}
	if cfg.Pipeline.ThresholdC != 0 {
		rasterOpts.C = float64(cfg.Pipeline.ThresholdC)
	}
	if cfg.Pipeline.DenoiseRadius > 0 {
		rasterOpts.DenoiseRadius = cfg.Pipeline.DenoiseRadius
	}

	fusionCfg := fusion.DefaultConfig()
	if cfg.Pipeline.DisagreementRatio > 0 {
		fusionCfg.DisagreementRatio = cfg.Pipeline.DisagreementRatio
	}
	if cfg.Pipeline.Penalty > 0 {
		fusionCfg.Penalty = cfg.Pipeline.Penalty
	}

	b := pipeline.NewBuilder().
		WithEngines(engines...).
		WithMode(mode).
		WithConfidenceThreshold(cfg.Pipeline.ConfidenceThreshold).
		WithPerEngineTimeout(time.Duration(cfg.Pipeline.PerEngineTimeoutSec)*time.Second).
		WithOverallTimeout(time.Duration(cfg.Pipeline.OverallTimeoutSec)*time.Second).
		WithRasterOptions(rasterOpts).
		WithFusionConfig(fusionCfg).
		WithParallelWorkers(cfg.Batch.Workers).
		WithLogger(slog.Default())

	if cfg.Cache.Enabled {
		b = b.WithCacheDir(cfg.Cache.Dir)
	}
	if progress != nil {
		b = b.WithProgressCallback(progress)
	}
	return b.Build()
}

// parseModeFlag parses a --mode flag value into an Options override.
func parseModeFlag(s string) (*orchestrate.Mode, error) {
	mode, err := orchestrate.ParseMode(s)
	if err != nil {
		return nil, err
	}
	return &mode, nil
}

// optionsFromConfig derives per-invocation defaults from configuration.
func optionsFromConfig(cfg *config.Config, languages []string) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Preprocess = cfg.Pipeline.Preprocess
	opts.DetectLayout = cfg.Pipeline.DetectLayout
	if len(languages) > 0 {
		opts.LanguageHints = languages
	} else {
		opts.LanguageHints = cfg.Engines.Languages
	}
	return opts
}
