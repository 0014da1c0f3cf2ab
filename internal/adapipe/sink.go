package adapipe

import (
	"context"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/stages"
)

// ContainerSink adapts a Writer to internal/orchestrator.Sink: each chunk
// handed to it by the orchestrator's sequencing loop becomes one on-disk
// frame. If an encryption stage ran earlier in the pipeline it left the
// chunk's nonce behind in pctx under stages.NonceResultKey; ContainerSink
// looks it up and places it in the frame. Pass-through or unencrypted
// pipelines never populate that key, so the frame's nonce stays zero,
// matching spec §6.1's description of an unused nonce field.
type ContainerSink struct {
	w    *Writer
	pctx *chunk.ProcessingContext
}

// NewContainerSink builds a sink writing frames to w, consulting pctx for
// per-chunk nonces left behind by the encryption stage.
func NewContainerSink(w *Writer, pctx *chunk.ProcessingContext) *ContainerSink {
	return &ContainerSink{w: w, pctx: pctx}
}

// WriteChunk implements internal/orchestrator.Sink.
func (s *ContainerSink) WriteChunk(ctx context.Context, c chunk.FileChunk) error {
	var nonce [12]byte
	if s.pctx != nil {
		if nonceStr, ok := s.pctx.StageResult(stages.NonceResultKey(c.SequenceNumber())); ok {
			copy(nonce[:], []byte(nonceStr))
		}
	}
	if _, err := s.w.WriteChunk(ChunkFrame{Nonce: nonce, Payload: c.Data()}); err != nil {
		return err
	}
	if s.pctx != nil {
		return s.pctx.AddProcessedBytes(int64(c.Size()))
	}
	return nil
}
