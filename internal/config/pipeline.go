package config

import (
	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// ChunkingConfig configures how a pipeline's source splits an input file,
// generalizing internal/crypto/config.go's ChunkingAlgo/Min/Avg/MaxChunkSize
// fields onto internal/chunk's FileSource constructors.
type ChunkingConfig struct {
	Algorithm chunk.ChunkingAlgorithm `yaml:"algorithm"`
	FixedSize int                     `yaml:"fixed_size"`
	MinSize   int                     `yaml:"min_size"`
	AvgSize   int                     `yaml:"avg_size"`
	MaxSize   int                     `yaml:"max_size"`
}

// Boundaries returns the FastCDC boundaries this config describes.
func (c ChunkingConfig) Boundaries() chunk.FastCDCBoundaries {
	return chunk.FastCDCBoundaries{Min: c.MinSize, Avg: c.AvgSize, Max: c.MaxSize}
}

// PipelineConfig names one processing pipeline: how its source is chunked,
// and the ordered chain of stages each chunk flows through (spec §3's
// PipelineConfiguration, the stage-chain equivalent of
// internal/crypto/config.go's PipelineConfig).
type PipelineConfig struct {
	Name        string                `yaml:"name"`
	Passthrough bool                  `yaml:"passthrough"`
	Chunking    ChunkingConfig        `yaml:"chunking"`
	Stages      []stage.Configuration `yaml:"stages"`
}

// Validate checks a pipeline definition for internal consistency, mirroring
// internal/crypto/config.go's PipelineConfig.Validate.
func (p PipelineConfig) Validate() error {
	if p.Passthrough {
		return nil
	}
	switch p.Chunking.Algorithm {
	case chunk.ChunkingFixed:
		if p.Chunking.FixedSize <= 0 {
			return perr.InvalidConfiguration("chunking.fixed_size must be positive for fixed chunking")
		}
	case chunk.ChunkingFastCDC:
		b := p.Chunking.Boundaries()
		if b.Min <= 0 || b.Avg <= 0 || b.Max <= 0 || b.Min > b.Avg || b.Avg > b.Max {
			return perr.InvalidConfiguration("chunking bounds must satisfy 0 < min <= avg <= max")
		}
	default:
		return perr.InvalidConfiguration("unknown chunking algorithm %q", p.Chunking.Algorithm)
	}

	for _, s := range p.Stages {
		if s.Algorithm == "" {
			return perr.InvalidConfiguration("stage %q missing algorithm", s.Name)
		}
		switch s.Algorithm {
		case "aes256gcm", "chacha20poly1305", "xchacha20poly1305":
			if _, ok := s.Parameters["key_id"]; !ok {
				return perr.MissingParameter("key_id")
			}
		case "zstd", "gzip", "snappy", "brotli", "lz4":
			if _, ok := s.Parameters["algorithm"]; !ok {
				return perr.MissingParameter("algorithm")
			}
		}
	}
	// Stage ordering (spec §4.3's PreBinary/PostBinary rule) is enforced by
	// internal/orchestrator at Resolver.Build time, once each stage.Service
	// is constructed and can report its real Position(); a static
	// Configuration only names an algorithm, not yet a Position.
	return nil
}
