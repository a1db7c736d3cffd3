// Package config defines the application configuration and its loader.
// Settings come from a YAML file, environment variables with the DOCUFUSE
// prefix, and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"

	"github.com/docufuse/docufuse/internal/orchestrate"
)

// Config is the complete configuration for the docufuse application.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Engines  EnginesConfig  `mapstructure:"engines" yaml:"engines" json:"engines"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache" json:"cache"`
}

// PipelineConfig contains recognition pipeline settings.
type PipelineConfig struct {
	// Mode is "fusion" or "sequential".
	Mode                string  `mapstructure:"mode" yaml:"mode" json:"mode"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
	PerEngineTimeoutSec int     `mapstructure:"per_engine_timeout_sec" yaml:"per_engine_timeout_sec" json:"per_engine_timeout_sec"`
	OverallTimeoutSec   int     `mapstructure:"overall_timeout_sec" yaml:"overall_timeout_sec" json:"overall_timeout_sec"`
	Preprocess          bool    `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	DetectLayout        bool    `mapstructure:"detect_layout" yaml:"detect_layout" json:"detect_layout"`

	// Normalization tuning
	ClipLimit     float64 `mapstructure:"clip_limit" yaml:"clip_limit" json:"clip_limit"`
	TileGrid      int     `mapstructure:"tile_grid" yaml:"tile_grid" json:"tile_grid"`
	BlockSize     int     `mapstructure:"block_size" yaml:"block_size" json:"block_size"`
	ThresholdC    int     `mapstructure:"threshold_c" yaml:"threshold_c" json:"threshold_c"`
	DenoiseRadius int     `mapstructure:"denoise_radius" yaml:"denoise_radius" json:"denoise_radius"`

	// Fusion tuning
	DisagreementRatio float64 `mapstructure:"disagreement_ratio" yaml:"disagreement_ratio" json:"disagreement_ratio"`
	Penalty           float64 `mapstructure:"penalty" yaml:"penalty" json:"penalty"`
}

// EnginesConfig contains per-engine settings.
type EnginesConfig struct {
	VisionLLM    VisionLLMConfig    `mapstructure:"vision_llm" yaml:"vision_llm" json:"vision_llm"`
	GoogleVision GoogleVisionConfig `mapstructure:"google_vision" yaml:"google_vision" json:"google_vision"`
	Structural   StructuralConfig   `mapstructure:"structural" yaml:"structural" json:"structural"`
	Statistical  StatisticalConfig  `mapstructure:"statistical" yaml:"statistical" json:"statistical"`
	Languages    []string           `mapstructure:"languages" yaml:"languages" json:"languages"`
}

// VisionLLMConfig configures the vision-language primary engine.
type VisionLLMConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model     string `mapstructure:"model" yaml:"model" json:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
}

// GoogleVisionConfig configures the alternate cloud primary engine.
type GoogleVisionConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
}

// StructuralConfig configures the local layout-aware engine.
type StructuralConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ModelPath   string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath    string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	ImageHeight int    `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	NumThreads  int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// StatisticalConfig configures the Tesseract fallback engine.
type StatisticalConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Languages []string `mapstructure:"languages" yaml:"languages" json:"languages"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// DefaultConfig returns the application defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			Mode:                "fusion",
			ConfidenceThreshold: 0.8,
			PerEngineTimeoutSec: 60,
			Preprocess:          true,
			DetectLayout:        true,
			ClipLimit:           2.0,
			TileGrid:            8,
			BlockSize:           11,
			ThresholdC:          2,
			DenoiseRadius:       1,
			DisagreementRatio:   0.5,
			Penalty:             0.8,
		},
		Engines: EnginesConfig{
			VisionLLM:   VisionLLMConfig{Enabled: true, Model: "gpt-4o-mini", MaxTokens: 1000},
			Structural:  StructuralConfig{Enabled: true, ImageHeight: 48},
			Statistical: StatisticalConfig{Enabled: true, Languages: []string{"jpn", "eng"}},
		},
		Output: OutputConfig{Format: "json"},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
		},
		Batch: BatchConfig{Workers: 0, ContinueOnError: true},
		Cache: CacheConfig{Enabled: false, Dir: ".docufuse-cache"},
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if _, err := orchestrate.ParseMode(c.Pipeline.Mode); err != nil {
		return err
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %.2f outside [0,1]", c.Pipeline.ConfidenceThreshold)
	}
	if c.Pipeline.Penalty <= 0 || c.Pipeline.Penalty > 1 {
		return fmt.Errorf("disagreement penalty %.2f outside (0,1]", c.Pipeline.Penalty)
	}
	if c.Pipeline.BlockSize > 0 && c.Pipeline.BlockSize%2 == 0 {
		return fmt.Errorf("block size %d must be odd", c.Pipeline.BlockSize)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.Server.MaxUploadMB)
	}
	if !c.Engines.VisionLLM.Enabled && !c.Engines.GoogleVision.Enabled &&
		!c.Engines.Structural.Enabled && !c.Engines.Statistical.Enabled {
		return fmt.Errorf("no engines enabled")
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache enabled but no cache dir set")
	}
	return nil
}
