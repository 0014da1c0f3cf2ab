package config

import (
	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// Presets mirror internal/crypto/config.go's ConfigSmartStorage/
// ConfigArchive/ConfigHPC/ConfigPassthrough/ConfigEnterprise five-preset
// shape, translated from that package's boolean-flag PipelineConfig onto
// this package's concrete stage.Configuration chain.

// PresetBalanced is general-purpose: FastCDC chunking, zstd level 3,
// aes256gcm. Equivalent to ConfigSmartStorage.
var PresetBalanced = PipelineConfig{
	Name: "balanced",
	Chunking: ChunkingConfig{
		Algorithm: chunk.ChunkingFastCDC,
		MinSize:   1 * 1024 * 1024,
		AvgSize:   4 * 1024 * 1024,
		MaxSize:   16 * 1024 * 1024,
	},
	Stages: []stage.Configuration{
		{Name: "compression", Algorithm: "zstd", Operation: stage.Forward,
			Parameters: map[string]string{"algorithm": "zstd", "level": "3"}},
		{Name: "encryption", Algorithm: "aes256gcm", Operation: stage.Forward,
			Parameters: map[string]string{"algorithm": "aes256gcm", "key_id": "default"}},
	},
}

// PresetArchive maximizes space savings for cold storage: bigger chunks,
// zstd level 9. Equivalent to ConfigArchive.
var PresetArchive = PipelineConfig{
	Name: "archive",
	Chunking: ChunkingConfig{
		Algorithm: chunk.ChunkingFastCDC,
		MinSize:   2 * 1024 * 1024,
		AvgSize:   8 * 1024 * 1024,
		MaxSize:   32 * 1024 * 1024,
	},
	Stages: []stage.Configuration{
		{Name: "compression", Algorithm: "zstd", Operation: stage.Forward,
			Parameters: map[string]string{"algorithm": "zstd", "level": "9"}},
		{Name: "encryption", Algorithm: "aes256gcm", Operation: stage.Forward,
			Parameters: map[string]string{"algorithm": "aes256gcm", "key_id": "default"}},
	},
}

// PresetThroughput trades space for speed: fixed-size chunking, no
// compression, encryption only. Equivalent to ConfigHPC.
var PresetThroughput = PipelineConfig{
	Name: "throughput",
	Chunking: ChunkingConfig{
		Algorithm: chunk.ChunkingFixed,
		FixedSize: 8 * 1024 * 1024,
	},
	Stages: []stage.Configuration{
		{Name: "encryption", Algorithm: "aes256gcm", Operation: stage.Forward,
			Parameters: map[string]string{"algorithm": "aes256gcm", "key_id": "default"}},
	},
}

// PresetPassthrough skips every stage, for already-encoded input.
// Equivalent to ConfigPassthrough.
var PresetPassthrough = PipelineConfig{
	Name:        "passthrough",
	Passthrough: true,
	Chunking: ChunkingConfig{
		Algorithm: chunk.ChunkingFixed,
		FixedSize: 4 * 1024 * 1024,
	},
}

// PresetCompliance adds an input and output checksum stage around the
// balanced chain, for regulated data that needs a verifiable audit trail.
// Equivalent to ConfigEnterprise (post-quantum key wrap is tracked as an
// open question, see DESIGN.md).
var PresetCompliance = PipelineConfig{
	Name: "compliance",
	Chunking: ChunkingConfig{
		Algorithm: chunk.ChunkingFastCDC,
		MinSize:   1 * 1024 * 1024,
		AvgSize:   4 * 1024 * 1024,
		MaxSize:   16 * 1024 * 1024,
	},
	Stages: []stage.Configuration{
		{Name: "input_checksum", Algorithm: "sha256", Operation: stage.Forward},
		{Name: "compression", Algorithm: "zstd", Operation: stage.Forward,
			Parameters: map[string]string{"algorithm": "zstd", "level": "3"}},
		{Name: "encryption", Algorithm: "aes256gcm", Operation: stage.Forward,
			Parameters: map[string]string{"algorithm": "aes256gcm", "key_id": "default"}},
		{Name: "output_checksum", Algorithm: "sha256", Operation: stage.Forward},
	},
}

// GetPreset returns a named preset, accepting the same kind of aliases as
// internal/crypto/config.go's GetPreset.
func GetPreset(name string) (PipelineConfig, error) {
	switch name {
	case "balanced", "smart", "default":
		return PresetBalanced, nil
	case "archive", "cold":
		return PresetArchive, nil
	case "throughput", "hpc", "performance", "fast":
		return PresetThroughput, nil
	case "passthrough", "none":
		return PresetPassthrough, nil
	case "compliance", "enterprise", "pq":
		return PresetCompliance, nil
	default:
		return PipelineConfig{}, perr.InvalidConfiguration("unknown preset %q", name)
	}
}
