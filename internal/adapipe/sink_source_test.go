package adapipe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/stages"
)

func TestContainerSinkWritesFramesAndTracksNonce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.adapipe")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	pctx := chunk.NewForStageTest(nil)
	sink := NewContainerSink(w, pctx)

	c0, err := chunk.New(0, 0, []byte("hello "), false)
	if err != nil {
		t.Fatalf("chunk.New: %v", err)
	}
	nonce := [12]byte{1, 2, 3}
	pctx.SetStageResult(stages.NonceResultKey(0), string(nonce[:]))

	if err := sink.WriteChunk(context.Background(), c0); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	c1, err := chunk.New(1, 6, []byte("world"), true)
	if err != nil {
		t.Fatalf("chunk.New: %v", err)
	}
	if err := sink.WriteChunk(context.Background(), c1); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	if _, err := w.Finalize(FileHeader{
		OriginalFilename: "hello.txt",
		OriginalSize:     11,
		ChunkSize:        6,
		PipelineID:       "pipeline-1",
		ProcessedAt:      time.Unix(0, 0).UTC(),
	}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if got := pctx.ProcessedBytes(); got != 11 {
		t.Fatalf("expected 11 processed bytes, got %d", got)
	}

	r, err := CreateReader(path)
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	defer r.Close()

	frame, ok, err := r.ReadNextChunk()
	if err != nil || !ok {
		t.Fatalf("ReadNextChunk: ok=%v err=%v", ok, err)
	}
	if frame.Nonce != nonce {
		t.Fatalf("expected nonce %v, got %v", nonce, frame.Nonce)
	}
	if string(frame.Payload) != "hello " {
		t.Fatalf("unexpected payload %q", frame.Payload)
	}
}

func TestContainerSourceRoundTripsWithContainerSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.adapipe")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	writePctx := chunk.NewForStageTest(nil)
	sink := NewContainerSink(w, writePctx)

	payloads := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cc")}
	for i, p := range payloads {
		nonce := [12]byte{byte(i + 1)}
		writePctx.SetStageResult(stages.NonceResultKey(uint64(i)), string(nonce[:]))
		c, err := chunk.New(uint64(i), 0, p, i == len(payloads)-1)
		if err != nil {
			t.Fatalf("chunk.New: %v", err)
		}
		if err := sink.WriteChunk(context.Background(), c); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
	}
	if _, err := w.Finalize(FileHeader{PipelineID: "pipeline-1", ProcessedAt: time.Unix(0, 0).UTC()}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r, err := CreateReader(path)
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	defer r.Close()

	readPctx := chunk.NewForStageTest(nil)
	src := NewContainerSource(r, readPctx)

	var got [][]byte
	for {
		c, ok, err := src.ReadChunk(context.Background())
		if err != nil {
			t.Fatalf("ReadChunk: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, c.Data())

		nonceStr, ok := readPctx.StageResult(stages.NonceResultKey(c.SequenceNumber()))
		if !ok {
			t.Fatalf("missing nonce for chunk %d", c.SequenceNumber())
		}
		if nonceStr[0] != byte(c.SequenceNumber()+1) {
			t.Fatalf("unexpected nonce for chunk %d", c.SequenceNumber())
		}
		if c.IsFinal() != (c.SequenceNumber() == uint64(len(payloads)-1)) {
			t.Fatalf("chunk %d IsFinal=%v", c.SequenceNumber(), c.IsFinal())
		}
	}
	if len(got) != len(payloads) {
		t.Fatalf("expected %d chunks, got %d", len(payloads), len(got))
	}
	for i, p := range payloads {
		if string(got[i]) != string(p) {
			t.Fatalf("chunk %d payload mismatch: got %q want %q", i, got[i], p)
		}
	}
}
