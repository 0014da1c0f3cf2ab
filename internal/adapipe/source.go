package adapipe

import (
	"context"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/stages"
)

// ContainerSource adapts a Reader to internal/orchestrator.Source for a
// restoration run: each frame read back becomes a chunk.FileChunk, with its
// nonce stashed in pctx under stages.NonceResultKey so a decryption stage
// further down the restoration plan's pipeline can retrieve it the same way
// it would during a forward run.
type ContainerSource struct {
	r      *Reader
	pctx   *chunk.ProcessingContext
	seq    uint64
	offset uint64
}

// NewContainerSource builds a source reading frames from r.
func NewContainerSource(r *Reader, pctx *chunk.ProcessingContext) *ContainerSource {
	return &ContainerSource{r: r, pctx: pctx}
}

// ReadChunk implements internal/orchestrator.Source.
func (s *ContainerSource) ReadChunk(ctx context.Context) (chunk.FileChunk, bool, error) {
	frame, ok, err := s.r.ReadNextChunk()
	if err != nil {
		return chunk.FileChunk{}, false, err
	}
	if !ok {
		return chunk.FileChunk{}, false, nil
	}

	seq := s.seq
	offset := s.offset
	isFinal := seq+1 >= s.r.ReadHeader().ChunkCount

	if s.pctx != nil {
		s.pctx.SetStageResult(stages.NonceResultKey(seq), string(frame.Nonce[:]))
	}

	c, err := chunk.New(seq, offset, frame.Payload, isFinal)
	if err != nil {
		return chunk.FileChunk{}, false, err
	}

	s.seq++
	s.offset += uint64(len(frame.Payload))
	return c, true, nil
}
