package stages

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/ids"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// DebugSink is the observability-sink collaborator consumed by the
// debug/tee stage (spec §6.3): record_debug_stage_bytes and
// increment_debug_stage_chunks. internal/obsmetrics supplies the real
// Prometheus-backed implementation; tests may use a no-op or recording fake.
type DebugSink interface {
	RecordDebugStageBytes(label string, chunkID uint64, bytes int)
	IncrementDebugStageChunks(label string)
}

// debugStage is a pass-through diagnostic tee (spec §4.3): it never modifies
// chunk data, only emits per-chunk hash/byte-count/counter to the sink.
type debugStage struct {
	label string
	sink  DebugSink
}

// NewDebug builds the debug/tee stage. label must be a ULID string so
// multiple tee points in one pipeline produce distinct counter series (spec
// §9).
func NewDebug(cfg stage.Configuration, sink DebugSink) (stage.Service, error) {
	p := stage.NewParams(cfg.Parameters)
	label, err := p.String("label")
	if err != nil {
		return nil, err
	}
	if _, err := ids.Parse(ids.KindStage, label); err != nil {
		return nil, perr.InvalidParameter("label", "must be a valid ULID: "+err.Error())
	}
	return &debugStage{label: label, sink: sink}, nil
}

func (s *debugStage) ProcessChunk(c chunk.FileChunk, cfg stage.Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	sum := sha256.Sum256(c.Data())
	ctx.SetMetadata("debug."+s.label+".chunk."+hex.EncodeToString(sum[:4]), hex.EncodeToString(sum[:]))
	if s.sink != nil {
		s.sink.RecordDebugStageBytes(s.label, c.SequenceNumber(), c.Size())
		s.sink.IncrementDebugStageChunks(s.label)
	}
	return c, nil
}

func (s *debugStage) Position() stage.Position { return stage.AnyPos }
func (s *debugStage) IsReversible() bool        { return true }
func (s *debugStage) StageType() stage.Type     { return stage.TypePassThrough }
func (s *debugStage) RequiresSequential() bool   { return false }
