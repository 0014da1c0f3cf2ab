package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPresetsValidate(t *testing.T) {
	for _, p := range []PipelineConfig{
		PresetBalanced, PresetArchive, PresetThroughput, PresetPassthrough, PresetCompliance,
	} {
		assert.NoError(t, p.Validate(), "preset %q", p.Name)
	}
}

func TestGetPresetAliases(t *testing.T) {
	cases := map[string]string{
		"balanced": "balanced", "smart": "balanced", "default": "balanced",
		"archive": "archive", "cold": "archive",
		"throughput": "throughput", "hpc": "throughput", "performance": "throughput", "fast": "throughput",
		"passthrough": "passthrough", "none": "passthrough",
		"compliance": "compliance", "enterprise": "compliance", "pq": "compliance",
	}
	for alias, want := range cases {
		p, err := GetPreset(alias)
		require.NoError(t, err, "alias %q", alias)
		assert.Equal(t, want, p.Name, "alias %q", alias)
	}
}

func TestGetPresetUnknownName(t *testing.T) {
	_, err := GetPreset("does-not-exist")
	assert.Error(t, err)
}

func TestPresetCompliancePlacesChecksumsAroundPayloadStages(t *testing.T) {
	stages := PresetCompliance.Stages
	require.Len(t, stages, 4)
	assert.Equal(t, "input_checksum", stages[0].Name)
	assert.Equal(t, "output_checksum", stages[len(stages)-1].Name)
}
