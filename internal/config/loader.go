package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "docufuse"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "DOCUFUSE"
)

// Loader loads configuration from files and environment variables.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings keep working.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from the search paths, the environment, and
// defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithFile reads configuration from a specific file. An empty path falls
// back to the standard search.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithoutValidation reads configuration without running validation,
// for commands that patch settings from flags before validating themselves.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults and env vars apply.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &cfg, nil
}

// Get returns a raw value from the configuration.
func (l *Loader) Get(key string) interface{} { return l.v.Get(key) }

// Set overrides a value in the configuration.
func (l *Loader) Set(key string, value interface{}) { l.v.Set(key, value) }

// ConfigFileUsed returns the path of the config file actually read.
func (l *Loader) ConfigFileUsed() string { return l.v.ConfigFileUsed() }

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}
	l.v.AddConfigPath("/etc/docufuse")
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "docufuse"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "docufuse"))
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("pipeline.mode", defaults.Pipeline.Mode)
	l.v.SetDefault("pipeline.confidence_threshold", defaults.Pipeline.ConfidenceThreshold)
	l.v.SetDefault("pipeline.per_engine_timeout_sec", defaults.Pipeline.PerEngineTimeoutSec)
	l.v.SetDefault("pipeline.overall_timeout_sec", defaults.Pipeline.OverallTimeoutSec)
	l.v.SetDefault("pipeline.preprocess", defaults.Pipeline.Preprocess)
	l.v.SetDefault("pipeline.detect_layout", defaults.Pipeline.DetectLayout)
	l.v.SetDefault("pipeline.clip_limit", defaults.Pipeline.ClipLimit)
	l.v.SetDefault("pipeline.tile_grid", defaults.Pipeline.TileGrid)
	l.v.SetDefault("pipeline.block_size", defaults.Pipeline.BlockSize)
	l.v.SetDefault("pipeline.threshold_c", defaults.Pipeline.ThresholdC)
	l.v.SetDefault("pipeline.denoise_radius", defaults.Pipeline.DenoiseRadius)
	l.v.SetDefault("pipeline.disagreement_ratio", defaults.Pipeline.DisagreementRatio)
	l.v.SetDefault("pipeline.penalty", defaults.Pipeline.Penalty)

	l.v.SetDefault("engines.vision_llm.enabled", defaults.Engines.VisionLLM.Enabled)
	l.v.SetDefault("engines.vision_llm.model", defaults.Engines.VisionLLM.Model)
	l.v.SetDefault("engines.vision_llm.max_tokens", defaults.Engines.VisionLLM.MaxTokens)
	l.v.SetDefault("engines.google_vision.enabled", defaults.Engines.GoogleVision.Enabled)
	l.v.SetDefault("engines.structural.enabled", defaults.Engines.Structural.Enabled)
	l.v.SetDefault("engines.structural.image_height", defaults.Engines.Structural.ImageHeight)
	l.v.SetDefault("engines.statistical.enabled", defaults.Engines.Statistical.Enabled)
	l.v.SetDefault("engines.statistical.languages", defaults.Engines.Statistical.Languages)

	l.v.SetDefault("output.format", defaults.Output.Format)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	l.v.SetDefault("batch.workers", defaults.Batch.Workers)
	l.v.SetDefault("batch.continue_on_error", defaults.Batch.ContinueOnError)

	l.v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	l.v.SetDefault("cache.dir", defaults.Cache.Dir)
}

// GenerateDefaultConfigFile writes a config file populated with defaults.
func GenerateDefaultConfigFile(filename string) error {
	loader := &Loader{v: viper.New()}
	loader.setDefaults()
	if filename == "" {
		filename = "docufuse.yaml"
	}
	return loader.v.WriteConfigAs(filename)
}
