package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfigFile(t *testing.T, content map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(content)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "docufuse.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "fusion", cfg.Pipeline.Mode)
	assert.InDelta(t, 0.8, cfg.Pipeline.ConfidenceThreshold, 1e-9)
	assert.InDelta(t, 2.0, cfg.Pipeline.ClipLimit, 1e-9)
	assert.Equal(t, 11, cfg.Pipeline.BlockSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad mode", func(c *Config) { c.Pipeline.Mode = "race" }},
		{"threshold above one", func(c *Config) { c.Pipeline.ConfidenceThreshold = 1.2 }},
		{"zero penalty", func(c *Config) { c.Pipeline.Penalty = 0 }},
		{"even block size", func(c *Config) { c.Pipeline.BlockSize = 12 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"no engines", func(c *Config) {
			c.Engines.VisionLLM.Enabled = false
			c.Engines.GoogleVision.Enabled = false
			c.Engines.Structural.Enabled = false
			c.Engines.Statistical.Enabled = false
		}},
		{"cache without dir", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Dir = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "fusion", cfg.Pipeline.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadWithFile(t *testing.T) {
	resetViper(t)
	path := writeConfigFile(t, map[string]any{
		"log_level": "debug",
		"pipeline": map[string]any{
			"mode":                 "sequential",
			"confidence_threshold": 0.9,
		},
		"server": map[string]any{"port": 9090},
		"engines": map[string]any{
			"statistical": map[string]any{"languages": []string{"deu"}},
		},
	})

	cfg, err := NewLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sequential", cfg.Pipeline.Mode)
	assert.InDelta(t, 0.9, cfg.Pipeline.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"deu"}, cfg.Engines.Statistical.Languages)
	// Untouched settings keep their defaults.
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
}

func TestLoadWithFileInvalidSettings(t *testing.T) {
	resetViper(t)
	path := writeConfigFile(t, map[string]any{"pipeline": map[string]any{"mode": "race"}})

	_, err := NewLoader().LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithoutValidationSkipsChecks(t *testing.T) {
	resetViper(t)
	path := writeConfigFile(t, map[string]any{"pipeline": map[string]any{"mode": "race"}})

	cfg, err := NewLoader().LoadWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, "race", cfg.Pipeline.Mode)
}

func TestLoadMissingFile(t *testing.T) {
	resetViper(t)
	_, err := NewLoader().LoadWithFile("/nonexistent/docufuse.yaml")
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())
	t.Setenv("DOCUFUSE_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "pipeline")
	assert.Contains(t, decoded, "engines")
}
