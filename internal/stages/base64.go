package stages

import (
	"encoding/base64"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// base64Stage is a Transform stage restricted to Position PreBinary (spec
// §4.3): it must run before compression/encryption, since ciphertext is not
// meaningfully base64 "data".
type base64Stage struct {
	enc *base64.Encoding
}

// NewBase64 builds the base64 encode/decode stage.
func NewBase64(cfg stage.Configuration) (stage.Service, error) {
	p := stage.NewParams(cfg.Parameters)
	variant, err := p.OneOf("variant", "standard", "url_safe")
	if err != nil {
		return nil, err
	}
	enc := base64.StdEncoding
	if variant == "url_safe" {
		enc = base64.URLEncoding
	}
	return &base64Stage{enc: enc}, nil
}

func (s *base64Stage) ProcessChunk(c chunk.FileChunk, cfg stage.Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	switch cfg.Operation {
	case stage.Forward:
		encoded := make([]byte, s.enc.EncodedLen(c.Size()))
		s.enc.Encode(encoded, c.Data())
		return c.WithData(encoded)
	case stage.Reverse:
		decoded := make([]byte, s.enc.DecodedLen(c.Size()))
		n, err := s.enc.Decode(decoded, c.Data())
		if err != nil {
			return chunk.FileChunk{}, perr.InvalidChunk("base64 decode failed: " + err.Error())
		}
		return c.WithData(decoded[:n])
	default:
		return chunk.FileChunk{}, perr.InvalidConfiguration("unknown stage operation %q", cfg.Operation)
	}
}

func (s *base64Stage) Position() stage.Position { return stage.PreBinary }
func (s *base64Stage) IsReversible() bool        { return true }
func (s *base64Stage) StageType() stage.Type     { return stage.TypeTransform }
func (s *base64Stage) RequiresSequential() bool   { return false }
