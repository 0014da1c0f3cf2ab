package async

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/stage"
)

type doublingStepper struct{}

func (doublingStepper) Execute(svc stage.Service, cfg stage.Configuration, c chunk.FileChunk, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	out := append([]byte{}, c.Data()...)
	out = append(out, c.Data()...)
	return c.WithData(out)
}

func TestIOPoolSizeByDevice(t *testing.T) {
	cases := map[DeviceType]int{DeviceNVMe: 24, DeviceSSD: 12, DeviceHDD: 4, DeviceType("unknown"): 4}
	for device, want := range cases {
		if got := IOPoolSize(device); got != want {
			t.Errorf("IOPoolSize(%s) = %d, want %d", device, got, want)
		}
	}
}

func TestCPUPoolSizeReservesOneCore(t *testing.T) {
	want := runtime.NumCPU() - 1
	if want < 1 {
		want = 1
	}
	if got := CPUPoolSize(); got != want {
		t.Fatalf("CPUPoolSize() = %d, want %d (NumCPU-1, at least 1)", got, want)
	}
}

func TestProcessChunkAsyncRunsOnPool(t *testing.T) {
	pool := NewCPUPool(doublingStepper{}, 2)
	defer pool.Close()

	c, err := chunk.New(0, 0, []byte("ab"), true)
	if err != nil {
		t.Fatalf("chunk.New: %v", err)
	}
	pctx := chunk.NewForStageTest(nil)

	future := pool.ProcessChunkAsync(nil, stage.Configuration{}, c, pctx)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, err := future.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(out.Data()) != "abab" {
		t.Fatalf("expected doubled data, got %q", out.Data())
	}
}

func TestProcessBatchAsyncPreservesOrder(t *testing.T) {
	pool := NewCPUPool(doublingStepper{}, 4)
	defer pool.Close()

	pctx := chunk.NewForStageTest(nil)
	chunks := make([]chunk.FileChunk, 10)
	for i := range chunks {
		c, err := chunk.New(uint64(i), 0, []byte{byte('a' + i)}, i == len(chunks)-1)
		if err != nil {
			t.Fatalf("chunk.New: %v", err)
		}
		chunks[i] = c
	}

	results, err := pool.ProcessBatchAsync(context.Background(), nil, stage.Configuration{}, chunks, pctx)
	if err != nil {
		t.Fatalf("ProcessBatchAsync: %v", err)
	}
	for i, r := range results {
		want := string([]byte{byte('a' + i), byte('a' + i)})
		if string(r.Data()) != want {
			t.Fatalf("result %d: expected %q, got %q", i, want, r.Data())
		}
	}
}

func TestIOPoolSubmitRunsFunction(t *testing.T) {
	pool := NewIOPool(DeviceSSD)
	defer pool.Close()

	ran := make(chan struct{}, 1)
	err := pool.Submit(context.Background(), func() error {
		ran <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("expected submitted function to run")
	}
}

func TestIOPoolSubmitPropagatesCancellation(t *testing.T) {
	pool := NewIOPool(DeviceHDD)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)
	// Fill the pool's single relevant worker slot isn't guaranteed here, so
	// just confirm a pre-cancelled context surfaces an error even if the
	// task itself would have succeeded.
	err := pool.Submit(ctx, func() error {
		<-block
		return nil
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
