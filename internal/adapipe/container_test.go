package adapipe

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestContainer(t *testing.T, path string, chunks int) FileHeader {
	t.Helper()
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	for i := 0; i < chunks; i++ {
		var nonce [12]byte
		nonce[0] = byte(i)
		if _, err := w.WriteChunk(ChunkFrame{Nonce: nonce, Payload: []byte{byte(i), byte(i + 1)}}); err != nil {
			t.Fatalf("WriteChunk %d: %v", i, err)
		}
	}
	header := FileHeader{
		OriginalFilename: "test.bin",
		OriginalSize:     int64(chunks * 2),
		OriginalChecksum: "deadbeef",
		AppVersion:       "test",
		ChunkSize:        2,
		PipelineID:       "pipeline-1",
		ProcessedAt:      time.Unix(0, 0).UTC(),
		ProcessingSteps: []ProcessingStep{
			{StepType: StepChecksum, Algorithm: "sha256", Order: 0},
		},
	}
	if _, err := w.Finalize(header); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	header.ChunkCount = uint64(chunks)
	header.FormatVersion = FormatVersion
	return header
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.adapipe")
	writeTestContainer(t, path, 5)

	r, err := CreateReader(path)
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	defer r.Close()

	if got := r.ReadHeader().ChunkCount; got != 5 {
		t.Fatalf("expected chunk_count 5, got %d", got)
	}

	count := 0
	for {
		_, ok, err := r.ReadNextChunk()
		if err != nil {
			t.Fatalf("ReadNextChunk: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 5 {
		t.Fatalf("expected to read 5 chunks, got %d", count)
	}
}

func TestReadMetadataMatchesWrittenHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.adapipe")
	want := writeTestContainer(t, path, 3)

	got, err := ReadMetadata(path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got.ChunkCount != want.ChunkCount || got.OriginalFilename != want.OriginalFilename {
		t.Fatalf("header mismatch: got %+v want %+v", got, want)
	}
}

func TestReadMetadataDetectsTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.adapipe")
	writeTestContainer(t, path, 3)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-20); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	if _, err := ReadMetadata(path); err == nil {
		t.Fatal("expected TruncatedFile error")
	}
}

func TestValidateFileFramingSurvivesPayloadCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.adapipe")
	writeTestContainer(t, path, 3)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	// Flip a byte inside the second chunk frame's payload.
	// Frame 0 is a header plus a 2-byte payload; skip it and frame 1's header.
	offset := int64(len(Magic)) + 2*int64(frameHeaderLen) + 2 + 1
	if _, err := f.WriteAt([]byte{0xFF}, offset); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	report := ValidateFile(path)
	// Corrupting payload bytes doesn't break framing by itself (payload_len
	// is untouched), so the report stays structurally valid; the mismatch
	// surfaces downstream as an IntegrityError during restoration. Confirm
	// at least that chunk framing still parses the expected count.
	if report.ChunkCount != 3 {
		t.Fatalf("expected framing to still report 3 chunks, got %d", report.ChunkCount)
	}
}

func TestInvalidMagicRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.adapipe")
	if err := os.WriteFile(path, []byte("NOTADAPIPEblahblahblahblahblah"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadMetadata(path); err == nil {
		t.Fatal("expected InvalidMagic error")
	}
}
