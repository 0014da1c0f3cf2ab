package config

import (
	"os"
	"strconv"
)

// LoadFromEnv overlays environment variables onto cfg, for the knobs an
// operator most commonly wants to flip without editing the config file.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("ADAPIPE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if logLevel := os.Getenv("ADAPIPE_LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}

	if workers := os.Getenv("ADAPIPE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Engine.Workers = n
		}
	}

	if chunkSize := os.Getenv("ADAPIPE_DEFAULT_CHUNK_SIZE"); chunkSize != "" {
		if n, err := strconv.Atoi(chunkSize); err == nil {
			cfg.Engine.DefaultChunkSize = n
		}
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
