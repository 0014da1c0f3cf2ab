package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineConfigApplyDefaults(t *testing.T) {
	var e EngineConfig
	e.ApplyDefaults()
	assert.Equal(t, 4, e.Workers)
	assert.Equal(t, 16, e.ChannelBufferSize)
	assert.Equal(t, 4*1024*1024, e.DefaultChunkSize)
}

func TestEngineConfigValidateRejectsZeroWorkers(t *testing.T) {
	e := EngineConfig{Workers: 0, ChannelBufferSize: 1, DefaultChunkSize: 1}
	assert.Error(t, e.Validate())
}

func TestConfigApplyDefaultsInitializesPipelinesMap(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.NotNil(t, c.Pipelines)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestLoadParsesYAMLAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
server:
  port: 9000
engine:
  workers: 8
pipelines:
  nightly:
    chunking:
      algorithm: fixed
      fixed_size: 1048576
    stages:
      - name: compression
        algorithm: zstd
        parameters:
          algorithm: zstd
          level: "3"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Engine.Workers)
	require.Contains(t, cfg.Pipelines, "nightly")
	assert.Equal(t, "zstd", cfg.Pipelines["nightly"].Stages[0].Algorithm)
}

func TestLoadRejectsInvalidPipeline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
pipelines:
  bad:
    chunking:
      algorithm: fixed
      fixed_size: 0
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnvOverridesFields(t *testing.T) {
	t.Setenv("ADAPIPE_PORT", "7000")
	t.Setenv("ADAPIPE_WORKERS", "12")

	cfg := &Config{}
	cfg.ApplyDefaults()
	LoadFromEnv(cfg)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Engine.Workers)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("ADAPIPE_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvOrDefault("ADAPIPE_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("ADAPIPE_UNSET_KEY", "fallback"))
}
