package stages

import (
	"context"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// wasmTransformStage hosts an operator-supplied WASM module exporting
// malloc(size) -> ptr and transform(ptr, size) -> (out_ptr, out_size). This
// is the one custom, non-reversible StageType::Transform the executor can
// load without a compile-time registry entry — domain-stack wiring for
// tetratelabs/wazero (spec SPEC_FULL.md domain stack).
type wasmTransformStage struct {
	runtime   wazero.Runtime
	module    api.Module
	malloc    api.Function
	transform api.Function
}

// NewWASMTransform compiles and instantiates the module at wasmBytes. The
// module must export "malloc" and "transform" with the ABI above.
func NewWASMTransform(ctx context.Context, wasmBytes []byte) (stage.Service, error) {
	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, perr.InvalidConfiguration("instantiate WASI: %v", err)
	}
	module, err := r.Instantiate(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, perr.InvalidConfiguration("instantiate WASM module: %v", err)
	}
	malloc := module.ExportedFunction("malloc")
	transform := module.ExportedFunction("transform")
	if malloc == nil || transform == nil {
		r.Close(ctx)
		return nil, perr.InvalidConfiguration("WASM module must export malloc and transform")
	}
	return &wasmTransformStage{runtime: r, module: module, malloc: malloc, transform: transform}, nil
}

func (s *wasmTransformStage) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

func (s *wasmTransformStage) ProcessChunk(c chunk.FileChunk, cfg stage.Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	if cfg.Operation == stage.Reverse {
		return chunk.FileChunk{}, perr.Unsupported("wasm-transform")
	}

	goCtx := context.Background()
	data := c.Data()

	mallocRes, err := s.malloc.Call(goCtx, uint64(len(data)))
	if err != nil {
		return chunk.FileChunk{}, perr.InvalidConfiguration("wasm malloc failed: %v", err)
	}
	inPtr := uint32(mallocRes[0])

	mem := s.module.Memory()
	if !mem.Write(inPtr, data) {
		return chunk.FileChunk{}, perr.InvalidConfiguration("wasm memory write out of range")
	}

	res, err := s.transform.Call(goCtx, uint64(inPtr), uint64(len(data)))
	if err != nil {
		return chunk.FileChunk{}, perr.InvalidConfiguration("wasm transform failed: %v", err)
	}
	outPtr, outSize := uint32(res[0]), uint32(res[1])

	out, ok := mem.Read(outPtr, outSize)
	if !ok {
		return chunk.FileChunk{}, perr.InvalidConfiguration("wasm memory read out of range")
	}
	// Memory belongs to the module; copy it out before the next call reuses it.
	copied := make([]byte, len(out))
	copy(copied, out)

	return c.WithData(copied)
}

func (s *wasmTransformStage) Position() stage.Position { return stage.AnyPos }
func (s *wasmTransformStage) IsReversible() bool        { return false }
func (s *wasmTransformStage) StageType() stage.Type     { return stage.TypeTransform }
func (s *wasmTransformStage) RequiresSequential() bool   { return true }
