// Package executor implements the stage executor (C4, spec §4.4): it
// validates stage ordering, maps a stage configuration to a runtime
// service via a registry, and runs stages sequentially or across chunks in
// parallel.
package executor

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// Resolver builds or looks up a stage.Service for a configuration. The
// stages.Registry in internal/stages satisfies this.
type Resolver interface {
	Build(cfg stage.Configuration) (stage.Service, error)
	CanBuild(algorithm string) bool
	SupportedAlgorithms() []string
}

// ResourceRequirements estimates what running a stage over a given byte
// count will cost (spec §4.4), used by the orchestrator for scheduling.
type ResourceRequirements struct {
	MemoryBytes int64
	CPUCores    int
	DiskBytes   int64
	Duration    time.Duration
}

// Executor is the stage executor (C4).
type Executor struct {
	resolver Resolver
}

// New builds an Executor backed by resolver.
func New(resolver Resolver) *Executor {
	return &Executor{resolver: resolver}
}

// Execute runs one stage over one chunk (spec §4.4).
func (e *Executor) Execute(svc stage.Service, cfg stage.Configuration, c chunk.FileChunk, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	if cfg.Operation == stage.Reverse && !svc.IsReversible() {
		return chunk.FileChunk{}, perr.Unsupported(cfg.Name)
	}
	out, err := svc.ProcessChunk(c, cfg, ctx)
	if err != nil {
		return chunk.FileChunk{}, err
	}
	if err := ctx.AddProcessedBytes(int64(c.Size())); err != nil {
		return chunk.FileChunk{}, err
	}
	ctx.Metrics.AddChunk()
	ctx.Metrics.AddBytes(int64(out.Size()))
	return out, nil
}

// ExecuteParallel runs one stage over many chunks, preserving input order in
// the returned slice (spec §4.4). Chunks run concurrently across a bounded
// worker pool unless svc.RequiresSequential() is true, in which case they run
// one at a time even if cfg.ParallelProcessing requested concurrency.
//
// On the first chunk failure, remaining in-flight work is allowed to finish
// (goroutines are not forcibly killed), but no further chunks are
// dispatched, and the first error is returned. Metrics already recorded for
// completed chunks are kept.
func (e *Executor) ExecuteParallel(svc stage.Service, cfg stage.Configuration, chunks []chunk.FileChunk, ctx *chunk.ProcessingContext) ([]chunk.FileChunk, error) {
	n := len(chunks)
	results := make([]chunk.FileChunk, n)

	sequential := svc.RequiresSequential() || !cfg.ParallelProcessing
	if sequential {
		for i, c := range chunks {
			out, err := e.Execute(svc, cfg, c, ctx)
			if err != nil {
				return nil, err
			}
			results[i] = out
		}
		return results, nil
	}

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	type job struct {
		index int
		c     chunk.FileChunk
	}
	jobs := make(chan job)
	errCh := make(chan error, 1)
	stop := make(chan struct{})
	var stopOnce sync.Once

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				out, err := e.Execute(svc, cfg, j.c, ctx)
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					stopOnce.Do(func() { close(stop) })
					continue
				}
				results[j.index] = out
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, c := range chunks {
			select {
			case jobs <- job{index: i, c: c}:
			case <-stop:
				return
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
		return results, nil
	}
}

// CanExecute reports whether the stage's algorithm is supported by a
// registered service (spec §4.4).
func (e *Executor) CanExecute(cfg stage.Configuration) bool {
	return e.resolver.CanBuild(cfg.Algorithm)
}

// SupportedStageTypes lists every algorithm name the executor can build.
func (e *Executor) SupportedStageTypes() []string {
	algos := e.resolver.SupportedAlgorithms()
	sort.Strings(algos)
	return algos
}

// EstimateProcessingTime gives a rough duration estimate for processing n
// bytes through a stage, used by the orchestrator for scheduling decisions.
// This is a coarse heuristic, not a measured benchmark: 200 MB/s for
// compression/encryption-class stages, 2 GB/s for pass-through stages
// (checksum, debug, base64).
func (e *Executor) EstimateProcessingTime(t stage.Type, bytes int64) time.Duration {
	var mbPerSec float64
	switch t {
	case stage.TypeCompression, stage.TypeEncryption:
		mbPerSec = 200
	default:
		mbPerSec = 2000
	}
	seconds := float64(bytes) / (mbPerSec * 1024 * 1024)
	return time.Duration(seconds * float64(time.Second))
}

// GetResourceRequirements estimates resource usage for processing n bytes
// through a stage (spec §4.4).
func (e *Executor) GetResourceRequirements(t stage.Type, bytes int64) ResourceRequirements {
	return ResourceRequirements{
		MemoryBytes: bytes * 2, // input + output buffers held simultaneously
		CPUCores:    1,
		DiskBytes:   0,
		Duration:    e.EstimateProcessingTime(t, bytes),
	}
}

// PrepareStage and CleanupStage are lifecycle hooks (spec §4.4); built-in
// stages need neither, so these default to no-ops. Stages requiring setup
// (e.g. the WASM transform stage's runtime) perform it at construction time
// instead and release resources via their own Close method.
func (e *Executor) PrepareStage(svc stage.Service, ctx *chunk.ProcessingContext) error { return nil }
func (e *Executor) CleanupStage(svc stage.Service, ctx *chunk.ProcessingContext) error { return nil }

// ValidateConfiguration rejects unknown algorithms and malformed parameters
// by attempting to build the stage (spec §4.4).
func (e *Executor) ValidateConfiguration(cfg stage.Configuration) error {
	if !e.resolver.CanBuild(cfg.Algorithm) {
		return perr.InvalidConfiguration("unknown algorithm %q", cfg.Algorithm)
	}
	_, err := e.resolver.Build(cfg)
	return err
}

// ValidateStageOrdering enforces the PreBinary/PostBinary rule across an
// ordered pipeline (spec §4.4, §8 invariant 5). Positions must be supplied
// in pipeline order; building each stage here (rather than taking
// []stage.Position directly) keeps the one source of truth for "what
// position does this stage have" inside the stage implementations.
func (e *Executor) ValidateStageOrdering(cfgs []stage.Configuration) error {
	positions := make([]stage.Position, 0, len(cfgs))
	for _, cfg := range cfgs {
		svc, err := e.resolver.Build(cfg)
		if err != nil {
			return err
		}
		positions = append(positions, svc.Position())
	}
	return stage.ValidateOrdering(positions)
}
