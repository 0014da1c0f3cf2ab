// Package orchestrator implements the pipeline dataflow (C7, spec §4.7):
// a reader feeds chunks into a bounded channel, a worker pool runs each
// chunk through the pipeline's stages, and a writer reassembles results in
// sequence order before handing them to a sink. Grounded on the reader/
// worker-pool/channel shape of internal/streaming's Stream/Subscription
// pair and internal/engine.CoreEngine's context.Context-first, zap-logged
// component style.
package orchestrator

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// DefaultChannelDepth is the default bounded-channel depth between the
// reader and the worker pool (spec §4.7).
const DefaultChannelDepth = 4

// Source reads chunks from an input in ascending sequence order. The last
// chunk returned must have IsFinal() true. ReadChunk returns (zero, false,
// nil) once the source is exhausted.
type Source interface {
	ReadChunk(ctx context.Context) (chunk.FileChunk, bool, error)
}

// Sink writes chunks to an output. Chunks are delivered in ascending
// sequence order regardless of the order workers finish them in.
type Sink interface {
	WriteChunk(ctx context.Context, c chunk.FileChunk) error
}

// Resolver builds a stage.Service for a configuration (internal/executor's
// Executor and internal/stages.Registry both satisfy the subset used here).
type Resolver interface {
	Build(cfg stage.Configuration) (stage.Service, error)
}

// Stepper executes one stage over one chunk, updating ctx as it goes.
// internal/executor.Executor satisfies this.
type Stepper interface {
	Execute(svc stage.Service, cfg stage.Configuration, c chunk.FileChunk, ctx *chunk.ProcessingContext) (chunk.FileChunk, error)
}

// Observer receives lifecycle notifications (spec §4.7, §6.3). Hooks are
// called synchronously: OnChunkStarted from the worker goroutines,
// OnChunkCompleted and OnProgressUpdate from the sequencing goroutine, and
// the start/completion hooks from Run itself. The calling goroutine waits
// for each callback to return, so implementations must not block.
type Observer interface {
	OnProcessingStarted(pipelineName string, totalChunks uint64)
	OnChunkStarted(seq uint64)
	OnChunkCompleted(seq uint64, bytes int)
	OnProgressUpdate(percent float64)
	OnProcessingCompleted(pipelineName string, chunksProcessed uint64)
}

// NullObserver implements Observer with no-ops, for callers that don't need
// notifications.
type NullObserver struct{}

func (NullObserver) OnProcessingStarted(string, uint64)   {}
func (NullObserver) OnChunkStarted(uint64)                {}
func (NullObserver) OnChunkCompleted(uint64, int)         {}
func (NullObserver) OnProgressUpdate(float64)             {}
func (NullObserver) OnProcessingCompleted(string, uint64) {}

// Config configures a pipeline run.
type Config struct {
	PipelineName string
	Stages       []stage.Configuration
	ChannelDepth int // 0 defaults to DefaultChannelDepth
	WorkerCount  int // 0 defaults to runtime.NumCPU()
	TotalChunks  uint64
}

// Orchestrator wires a Resolver and Stepper into the reader/worker-pool/
// writer dataflow.
type Orchestrator struct {
	resolver Resolver
	stepper  Stepper
	logger   *zap.Logger
}

// New builds an Orchestrator. logger may be nil, in which case a no-op
// logger is used.
func New(resolver Resolver, stepper Stepper, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{resolver: resolver, stepper: stepper, logger: logger}
}

type job struct {
	seq uint64
	c   chunk.FileChunk
}

type result struct {
	seq uint64
	c   chunk.FileChunk
	err error
}

// Run drives one pipeline execution end to end (spec §4.7). It returns
// perr.Cancelled if ctx is cancelled before completion, or the first stage
// error encountered; ctx's already-recorded metrics survive either way.
func (o *Orchestrator) Run(ctx context.Context, cfg Config, src Source, sink Sink, pctx *chunk.ProcessingContext, obs Observer) error {
	if obs == nil {
		obs = NullObserver{}
	}
	depth := cfg.ChannelDepth
	if depth <= 0 {
		depth = DefaultChannelDepth
	}
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	services := make([]stage.Service, len(cfg.Stages))
	for i, sc := range cfg.Stages {
		svc, err := o.resolver.Build(sc)
		if err != nil {
			return err
		}
		services[i] = svc
	}

	obs.OnProcessingStarted(cfg.PipelineName, cfg.TotalChunks)

	jobs := make(chan job, depth)
	results := make(chan result, depth)

	var readErr error
	var readErrMu sync.Mutex
	go func() {
		defer close(jobs)
		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c, ok, err := src.ReadChunk(ctx)
			if err != nil {
				readErrMu.Lock()
				readErr = err
				readErrMu.Unlock()
				return
			}
			if !ok {
				return
			}
			select {
			case jobs <- job{seq: seq, c: c}:
			case <-ctx.Done():
				return
			}
			seq++
			if c.IsFinal() {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				obs.OnChunkStarted(j.seq)
				out := j.c
				var stageErr error
				for i, svc := range services {
					out, stageErr = o.stepper.Execute(svc, cfg.Stages[i], out, pctx)
					if stageErr != nil {
						break
					}
				}
				select {
				case results <- result{seq: j.seq, c: out, err: stageErr}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[uint64]chunk.FileChunk)
	var next uint64
	var writeErr error
	var chunksWritten uint64

drain:
	for r := range results {
		if r.err != nil {
			writeErr = r.err
			continue
		}
		pending[r.seq] = r.c
		for {
			c, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if writeErr == nil {
				if err := sink.WriteChunk(ctx, c); err != nil {
					writeErr = err
				} else {
					obs.OnChunkCompleted(next, c.Size())
					chunksWritten++
					obs.OnProgressUpdate(pctx.ProgressPercent())
				}
			}
			next++
		}
		select {
		case <-ctx.Done():
			break drain
		default:
		}
	}

	readErrMu.Lock()
	rErr := readErr
	readErrMu.Unlock()

	obs.OnProcessingCompleted(cfg.PipelineName, chunksWritten)

	if err := ctx.Err(); err != nil {
		return perr.Cancelled
	}
	if writeErr != nil {
		return writeErr
	}
	if rErr != nil {
		return rErr
	}
	return nil
}
