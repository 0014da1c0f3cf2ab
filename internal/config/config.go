// Package config loads and validates engine configuration: server
// settings, engine-level worker/channel tuning, and named pipeline
// definitions (chunking + stage chain), the way the teacher's
// internal/config/config.go loads yaml with default tags.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adapipe/engine/internal/perr"
)

// Config is the top-level configuration document.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Engine    EngineConfig              `yaml:"engine"`
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

// ServerConfig controls the host process's listening ports and log level.
type ServerConfig struct {
	Port        int    `yaml:"port" default:"8080"`
	MetricsPort int    `yaml:"metrics_port" default:"9090"`
	LogLevel    string `yaml:"log_level" default:"info"`
}

// EngineConfig tunes the orchestrator's worker pool and channel sizing
// (spec §5's execute_parallel worker count and channel depth).
type EngineConfig struct {
	Workers           int           `yaml:"workers" default:"4"`
	ChannelBufferSize int           `yaml:"channel_buffer_size" default:"16"`
	DefaultChunkSize  int           `yaml:"default_chunk_size" default:"4194304"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func (c *EngineConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ChannelBufferSize <= 0 {
		c.ChannelBufferSize = 16
	}
	if c.DefaultChunkSize <= 0 {
		c.DefaultChunkSize = 4 * 1024 * 1024
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks the engine tuning knobs are usable.
func (c EngineConfig) Validate() error {
	if c.Workers <= 0 {
		return perr.InvalidConfiguration("engine.workers must be positive, got %d", c.Workers)
	}
	if c.ChannelBufferSize <= 0 {
		return perr.InvalidConfiguration("engine.channel_buffer_size must be positive, got %d", c.ChannelBufferSize)
	}
	if c.DefaultChunkSize <= 0 {
		return perr.InvalidConfiguration("engine.default_chunk_size must be positive, got %d", c.DefaultChunkSize)
	}
	return nil
}

// ApplyDefaults fills zero-valued top-level fields with defaults and
// ensures the Pipelines map is non-nil.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	c.Engine.ApplyDefaults()
	if c.Pipelines == nil {
		c.Pipelines = make(map[string]PipelineConfig)
	}
}

// Validate checks the whole document, including every named pipeline.
func (c Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	for name, p := range c.Pipelines {
		if err := p.Validate(); err != nil {
			return perr.Wrap(perr.KindInvalidConfiguration, err, "pipeline %q", name)
		}
	}
	return nil
}

// Load reads and parses a YAML configuration file, applying defaults and
// validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.IO(err, "read config file %q", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, perr.Wrap(perr.KindInvalidConfiguration, err, "parse config file %q", path)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
