package stages

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// checksumStage is a pass-through with annotation (spec §4.3): it never
// changes chunk.Data, only attaches/verifies a per-chunk digest and folds
// chunks into one stream-wide SHA-256 recorded into ctx.stage_results keyed
// by stage name. One instance is built per pipeline run (stages.Registry.
// Build is called once per stage in orchestrator.Run) and reused across
// every chunk that run processes, so it owns the running hash directly
// rather than round-tripping it through ctx as a string.
//
// The orchestrator's worker pool runs chunks through a stage out of
// sequence order; feeding hash.Write in arrival order would make the
// digest depend on goroutine scheduling instead of file content. pending
// buffers chunks that arrive ahead of their turn and drains them into hash
// once the gap closes, so the hash only ever advances in sequence order.
type checksumStage struct {
	name           string
	verifyExisting bool

	mu      sync.Mutex
	hash    hash.Hash
	nextSeq uint64
	pending map[uint64][]byte
}

// NewChecksum builds the checksum stage. name identifies this stage
// instance in ctx.stage_results, distinguishing multiple checksum stages in
// one pipeline (e.g. input_checksum vs output_checksum during restoration).
func NewChecksum(name string, cfg stage.Configuration) (stage.Service, error) {
	p := stage.NewParams(cfg.Parameters)
	// algorithm is optional; sha256 is the only supported value.
	if algo, ok := cfg.Parameters["algorithm"]; ok && algo != "" && algo != "sha256" {
		return nil, perr.InvalidParameter("algorithm", "only sha256 is supported")
	}
	verify, err := p.Bool("verify_existing")
	if err != nil {
		return nil, err
	}
	return &checksumStage{
		name:           name,
		verifyExisting: verify,
		hash:           sha256.New(),
		pending:        make(map[uint64][]byte),
	}, nil
}

func (s *checksumStage) ProcessChunk(c chunk.FileChunk, cfg stage.Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	out := c
	if existing, has := c.Checksum(); has && s.verifyExisting {
		sum := sha256.Sum256(c.Data())
		if existing != hex.EncodeToString(sum[:]) {
			return chunk.FileChunk{}, perr.Integrity("checksum mismatch for chunk %d", c.SequenceNumber())
		}
	} else if !has {
		out = c.WithCalculatedChecksum()
	}

	s.mu.Lock()
	s.pending[c.SequenceNumber()] = append([]byte(nil), out.Data()...)
	for {
		data, ok := s.pending[s.nextSeq]
		if !ok {
			break
		}
		delete(s.pending, s.nextSeq)
		s.hash.Write(data)
		s.nextSeq++
	}
	ctx.SetStageResult(s.name, hex.EncodeToString(s.hash.Sum(nil)))
	s.mu.Unlock()

	return out, nil
}

func (s *checksumStage) Position() stage.Position { return stage.AnyPos }
func (s *checksumStage) IsReversible() bool        { return true }
func (s *checksumStage) StageType() stage.Type     { return stage.TypeChecksum }
func (s *checksumStage) RequiresSequential() bool   { return false }
