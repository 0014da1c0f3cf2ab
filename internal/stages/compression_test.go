package stages

import (
	"testing"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/stage"
)

func roundTrip(t *testing.T, svc stage.Service, data []byte) []byte {
	t.Helper()
	ctx := chunk.NewForStageTest(nil)

	c, err := chunk.New(0, 0, data, true)
	if err != nil {
		t.Fatalf("chunk.New: %v", err)
	}

	fwdCfg := stage.Configuration{Operation: stage.Forward}
	forwarded, err := svc.ProcessChunk(c, fwdCfg, ctx)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	revCfg := stage.Configuration{Operation: stage.Reverse}
	restored, err := svc.ProcessChunk(forwarded, revCfg, ctx)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	return restored.Data()
}

func TestCompressionRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated. the quick brown fox jumps over the lazy dog.")

	for _, algo := range []string{"zstd", "gzip", "snappy"} {
		t.Run(algo, func(t *testing.T) {
			svc, err := NewCompression(stage.Configuration{Parameters: map[string]string{"algorithm": algo, "level": "3"}})
			if err != nil {
				t.Fatalf("NewCompression: %v", err)
			}
			got := roundTrip(t, svc, payload)
			if string(got) != string(payload) {
				t.Fatalf("round trip mismatch for %s", algo)
			}
		})
	}
}

func TestCompressionRejectsUnwiredAlgorithm(t *testing.T) {
	for _, algo := range []string{"brotli", "lz4"} {
		if _, err := NewCompression(stage.Configuration{Parameters: map[string]string{"algorithm": algo}}); err == nil {
			t.Fatalf("expected InvalidConfiguration for unwired algorithm %s", algo)
		}
	}
}

func TestCompressionRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := NewCompression(stage.Configuration{Parameters: map[string]string{"algorithm": "bogus"}}); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}
