// Package async implements the async adapters and resource pools (C8,
// spec §4.8): stage services stay synchronous and CPU-bound, and this
// package dispatches each call onto a dedicated blocking worker pool so an
// async orchestrator never blocks its own scheduling loop on one. Adapted
// from internal/perf/async.go's AsyncProcessor[T,R]/Future[R] pair,
// retargeted from generic task/result payloads to chunk.FileChunk stage
// calls, plus a device-sized pool for reader/writer I/O.
package async

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// DeviceType classifies the storage device backing a reader/writer, which
// determines how deep the I/O pool should be (spec §4.8).
type DeviceType string

const (
	DeviceNVMe DeviceType = "nvme"
	DeviceSSD  DeviceType = "ssd"
	DeviceHDD  DeviceType = "hdd"
)

// IOPoolSize returns the recommended I/O pool depth for a device type
// (spec §4.8: NVMe 24, SSD 12, HDD 4). Unknown device types get the
// conservative HDD depth.
func IOPoolSize(d DeviceType) int {
	switch d {
	case DeviceNVMe:
		return 24
	case DeviceSSD:
		return 12
	default:
		return 4
	}
}

// CPUPoolSize returns the recommended CPU pool depth (spec §4.8:
// num_cpus - 1, reserving one core for the orchestrator/scheduler).
func CPUPoolSize() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Stepper executes one stage over one chunk. internal/executor.Executor
// and the directStepper test double in internal/orchestrator both satisfy this; async
// depends on the interface rather than the executor package directly to
// avoid a cyclic import.
type Stepper interface {
	Execute(svc stage.Service, cfg stage.Configuration, c chunk.FileChunk, ctx *chunk.ProcessingContext) (chunk.FileChunk, error)
}

type chunkTask struct {
	svc    stage.Service
	cfg    stage.Configuration
	c      chunk.FileChunk
	ctx    *chunk.ProcessingContext
	result chan chunkResult
}

type chunkResult struct {
	out chunk.FileChunk
	err error
}

// CPUPool is a dedicated blocking worker pool for CPU-bound stage calls
// (spec §4.8's CPU pool).
type CPUPool struct {
	stepper Stepper
	tasks   chan *chunkTask
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// NewCPUPool starts a pool of workers reading stage tasks off a queue.
// workers <= 0 defaults to CPUPoolSize().
func NewCPUPool(stepper Stepper, workers int) *CPUPool {
	if workers <= 0 {
		workers = CPUPoolSize()
	}
	p := &CPUPool{stepper: stepper, tasks: make(chan *chunkTask, workers*4)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *CPUPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		out, err := p.stepper.Execute(t.svc, t.cfg, t.c, t.ctx)
		t.result <- chunkResult{out: out, err: err}
		close(t.result)
	}
}

// ChunkFuture is the pending result of a ProcessChunkAsync call.
type ChunkFuture struct {
	done   chan struct{}
	result chunk.FileChunk
	err    error
}

func newChunkFuture(resultCh chan chunkResult) *ChunkFuture {
	f := &ChunkFuture{done: make(chan struct{})}
	go func() {
		r := <-resultCh
		f.result, f.err = r.out, r.err
		close(f.done)
	}()
	return f
}

// Get blocks until the result is ready or ctx is cancelled.
func (f *ChunkFuture) Get(ctx context.Context) (chunk.FileChunk, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return chunk.FileChunk{}, perr.Cancelled
	}
}

// ProcessChunkAsync dispatches one stage call onto the CPU pool and
// returns immediately with a future (spec §4.8's compress_chunk_async
// shape, generalized to any stage).
func (p *CPUPool) ProcessChunkAsync(svc stage.Service, cfg stage.Configuration, c chunk.FileChunk, ctx *chunk.ProcessingContext) *ChunkFuture {
	if p.closed.Load() {
		f := &ChunkFuture{done: make(chan struct{}), err: perr.Internal("cpu pool closed")}
		close(f.done)
		return f
	}
	t := &chunkTask{svc: svc, cfg: cfg, c: c, ctx: ctx, result: make(chan chunkResult, 1)}
	p.tasks <- t
	return newChunkFuture(t.result)
}

// ProcessBatchAsync dispatches every chunk onto the CPU pool concurrently
// and returns results in input order once all have completed, matching
// the ordering guarantee internal/executor.ExecuteParallel gives its
// synchronous callers.
func (p *CPUPool) ProcessBatchAsync(ctx context.Context, svc stage.Service, cfg stage.Configuration, chunks []chunk.FileChunk, pctx *chunk.ProcessingContext) ([]chunk.FileChunk, error) {
	futures := make([]*ChunkFuture, len(chunks))
	for i, c := range chunks {
		futures[i] = p.ProcessChunkAsync(svc, cfg, c, pctx)
	}
	results := make([]chunk.FileChunk, len(chunks))
	for i, f := range futures {
		out, err := f.Get(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = out
	}
	return results, nil
}

// Close stops accepting new work and waits for in-flight tasks to finish.
func (p *CPUPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// IOPool is a dedicated blocking worker pool for reader/writer file
// operations, sized by device type (spec §4.8's I/O pool).
type IOPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewIOPool starts an I/O pool sized for device.
func NewIOPool(device DeviceType) *IOPool {
	workers := IOPoolSize(device)
	p := &IOPool{tasks: make(chan func(), workers*4)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *IOPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit runs fn on the I/O pool and blocks until it completes or ctx is
// cancelled.
func (p *IOPool) Submit(ctx context.Context, fn func() error) error {
	if p.closed.Load() {
		return perr.Internal("io pool closed")
	}
	done := make(chan error, 1)
	p.tasks <- func() { done <- fn() }
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return perr.Cancelled
	}
}

// Close stops accepting new work and waits for in-flight tasks to finish.
func (p *IOPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}
