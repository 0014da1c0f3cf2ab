// Package stages implements the built-in stage services from spec §4.3:
// compression, authenticated encryption, checksum, base64, and debug/tee,
// plus a WASM-hosted custom transform stage.
package stages

import (
	"bytes"
	"io"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// compressionCodec is the minimal surface every wired compression algorithm
// implements; compressionStage dispatches Forward/Reverse through it.
type compressionCodec interface {
	compress(data []byte) ([]byte, error)
	decompress(data []byte) ([]byte, error)
}

type compressionStage struct {
	algorithm string
	codec     compressionCodec
}

// NewCompression builds the compression stage (spec §4.3) from its
// StageConfiguration. algorithm ∈ {zstd, gzip, snappy} are wired against the
// pack's compression libraries; brotli and lz4 are accepted identifiers with
// no wired codec (no library in the example pack implements either), so they
// fail at construction with InvalidConfiguration exactly like any other
// unknown algorithm would at the registry layer.
func NewCompression(cfg stage.Configuration) (stage.Service, error) {
	p := stage.NewParams(cfg.Parameters)
	algo, err := p.OneOf("algorithm", "zstd", "gzip", "snappy", "brotli", "lz4")
	if err != nil {
		return nil, err
	}
	level, err := p.IntOr("level", 3)
	if err != nil {
		return nil, err
	}

	var codec compressionCodec
	switch algo {
	case "zstd":
		codec, err = newZstdCodec(level)
	case "gzip":
		codec, err = newGzipCodec(level)
	case "snappy":
		codec = snappyCodec{}
	case "brotli", "lz4":
		return nil, perr.InvalidConfiguration("compression algorithm %q has no wired codec in this build", algo)
	}
	if err != nil {
		return nil, err
	}

	return &compressionStage{algorithm: algo, codec: codec}, nil
}

func (s *compressionStage) ProcessChunk(c chunk.FileChunk, cfg stage.Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	var out []byte
	var err error
	switch cfg.Operation {
	case stage.Forward:
		out, err = s.codec.compress(c.Data())
		if err != nil {
			return chunk.FileChunk{}, perr.Compression(err, "%s compress failed", s.algorithm)
		}
	case stage.Reverse:
		out, err = s.codec.decompress(c.Data())
		if err != nil {
			return chunk.FileChunk{}, perr.Compression(err, "%s decompress failed", s.algorithm)
		}
	default:
		return chunk.FileChunk{}, perr.InvalidConfiguration("unknown stage operation %q", cfg.Operation)
	}
	return c.WithData(out)
}

func (s *compressionStage) Position() stage.Position       { return stage.AnyPos }
func (s *compressionStage) IsReversible() bool              { return true }
func (s *compressionStage) StageType() stage.Type           { return stage.TypeCompression }
func (s *compressionStage) RequiresSequential() bool         { return false }

// --- zstd ---

type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCodec(level int) (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, perr.Compression(err, "create zstd encoder")
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, perr.Compression(err, "create zstd decoder")
	}
	return &zstdCodec{encoder: enc, decoder: dec}, nil
}

func (c *zstdCodec) compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (c *zstdCodec) decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

// --- gzip ---

type gzipCodec struct{ level int }

func newGzipCodec(level int) (*gzipCodec, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &gzipCodec{level: level}, nil
}

func (c *gzipCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// --- snappy ---

type snappyCodec struct{}

func (snappyCodec) compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}
