package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/stage"
)

// sliceSource replays a fixed list of chunks.
type sliceSource struct {
	chunks []chunk.FileChunk
	idx    int
}

func (s *sliceSource) ReadChunk(ctx context.Context) (chunk.FileChunk, bool, error) {
	if s.idx >= len(s.chunks) {
		return chunk.FileChunk{}, false, nil
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, true, nil
}

// recordingSink collects chunks in the order WriteChunk is called.
type recordingSink struct {
	mu       sync.Mutex
	received []chunk.FileChunk
}

func (s *recordingSink) WriteChunk(ctx context.Context, c chunk.FileChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, c)
	return nil
}

// identityResolver builds a passthrough service regardless of cfg.
type identityResolver struct{}

func (identityResolver) Build(cfg stage.Configuration) (stage.Service, error) {
	return identityService{}, nil
}

type identityService struct{}

func (identityService) ProcessChunk(c chunk.FileChunk, cfg stage.Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	return c, nil
}
func (identityService) Position() stage.Position { return stage.AnyPos }
func (identityService) IsReversible() bool       { return true }
func (identityService) StageType() stage.Type    { return stage.TypePassThrough }
func (identityService) RequiresSequential() bool { return false }

// directStepper calls ProcessChunk directly and advances ctx, mirroring
// internal/executor.Executor.Execute's bookkeeping without its import.
type directStepper struct{}

func (directStepper) Execute(svc stage.Service, cfg stage.Configuration, c chunk.FileChunk, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	out, err := svc.ProcessChunk(c, cfg, ctx)
	if err != nil {
		return chunk.FileChunk{}, err
	}
	_ = ctx.AddProcessedBytes(int64(c.Size()))
	ctx.Metrics.AddChunk()
	ctx.Metrics.AddBytes(int64(out.Size()))
	return out, nil
}

func buildChunks(t *testing.T, n int) []chunk.FileChunk {
	t.Helper()
	chunks := make([]chunk.FileChunk, n)
	for i := 0; i < n; i++ {
		c, err := chunk.New(uint64(i), uint64(i*4), []byte{byte(i), byte(i + 1)}, i == n-1)
		if err != nil {
			t.Fatalf("chunk.New: %v", err)
		}
		chunks[i] = c
	}
	return chunks
}

func TestRunPreservesOrderAcrossWorkers(t *testing.T) {
	chunks := buildChunks(t, 30)
	src := &sliceSource{chunks: chunks}
	sink := &recordingSink{}
	pctx := chunk.NewContext("", "", 60, 2, 4, nil)

	o := New(identityResolver{}, directStepper{}, nil)
	cfg := Config{
		PipelineName: "test",
		Stages:       []stage.Configuration{{Name: "noop", Algorithm: "noop"}},
		WorkerCount:  8,
		TotalChunks:  uint64(len(chunks)),
	}

	if err := o.Run(context.Background(), cfg, src, sink, pctx, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.received) != len(chunks) {
		t.Fatalf("expected %d chunks written, got %d", len(chunks), len(sink.received))
	}
	for i, c := range sink.received {
		if c.SequenceNumber() != uint64(i) {
			t.Fatalf("chunk %d arrived out of order: sequence_number=%d", i, c.SequenceNumber())
		}
	}
}

func TestRunPropagatesCancellation(t *testing.T) {
	chunks := buildChunks(t, 5)
	src := &sliceSource{chunks: chunks}
	sink := &recordingSink{}
	pctx := chunk.NewContext("", "", 10, 2, 1, nil)

	o := New(identityResolver{}, directStepper{}, nil)
	cfg := Config{PipelineName: "test", Stages: []stage.Configuration{{Name: "noop", Algorithm: "noop"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Run(ctx, cfg, src, sink, pctx, nil)
	if err == nil {
		t.Fatal("expected Cancelled error")
	}
}

type countingObserver struct {
	mu        sync.Mutex
	started   bool
	completed bool
	chunks    int
}

func (o *countingObserver) OnProcessingStarted(string, uint64) {
	o.mu.Lock()
	o.started = true
	o.mu.Unlock()
}
func (o *countingObserver) OnChunkStarted(uint64) {}
func (o *countingObserver) OnChunkCompleted(uint64, int) {
	o.mu.Lock()
	o.chunks++
	o.mu.Unlock()
}
func (o *countingObserver) OnProgressUpdate(float64) {}
func (o *countingObserver) OnProcessingCompleted(string, uint64) {
	o.mu.Lock()
	o.completed = true
	o.mu.Unlock()
}

func TestRunFiresObserverHooks(t *testing.T) {
	chunks := buildChunks(t, 4)
	src := &sliceSource{chunks: chunks}
	sink := &recordingSink{}
	pctx := chunk.NewContext("", "", 8, 2, 1, nil)

	obs := &countingObserver{}
	o := New(identityResolver{}, directStepper{}, nil)
	cfg := Config{PipelineName: "test", Stages: []stage.Configuration{{Name: "noop", Algorithm: "noop"}}}

	if err := o.Run(context.Background(), cfg, src, sink, pctx, obs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if !obs.started || !obs.completed {
		t.Fatal("expected OnProcessingStarted and OnProcessingCompleted to fire")
	}
	if obs.chunks != len(chunks) {
		t.Fatalf("expected %d OnChunkCompleted calls, got %d", len(chunks), obs.chunks)
	}
}
