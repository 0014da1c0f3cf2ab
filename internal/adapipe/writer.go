package adapipe

import (
	"encoding/binary"
	"encoding/json"
	"os"

	"github.com/adapipe/engine/internal/perr"
)

// Writer streams a .adapipe container to disk: magic first, then a chunk
// frame per call to WriteChunk, then the JSON footer and fixed trailer on
// Finalize (spec §4.5).
type Writer struct {
	f             *os.File
	bytesWritten  int64
	chunksWritten uint64
	finalized     bool
}

// CreateWriter opens path for writing and emits the magic immediately.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.IO(err, "create container file %q", path)
	}
	w := &Writer{f: f}
	n, err := f.Write(Magic[:])
	if err != nil {
		f.Close()
		return nil, perr.IO(err, "write magic")
	}
	w.bytesWritten += int64(n)
	return w, nil
}

// WriteChunk writes one frame (4-byte LE payload_len + 12-byte nonce +
// payload) and returns the number of bytes written for this call. Chunks
// must be supplied in ascending sequence order by the caller; the writer
// itself has no notion of sequence numbers, only write order (spec §4.5).
func (w *Writer) WriteChunk(frame ChunkFrame) (uint64, error) {
	if w.finalized {
		return 0, perr.Internal("write_chunk called after finalize")
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frame.Payload)))

	n1, err := w.f.Write(lenBuf[:])
	if err != nil {
		return 0, perr.IO(err, "write payload_len")
	}
	n2, err := w.f.Write(frame.Nonce[:])
	if err != nil {
		return 0, perr.IO(err, "write nonce")
	}
	n3, err := w.f.Write(frame.Payload)
	if err != nil {
		return 0, perr.IO(err, "write payload")
	}

	total := uint64(n1 + n2 + n3)
	w.bytesWritten += int64(total)
	w.chunksWritten++
	return total, nil
}

// ChunksWritten returns the running count of frames written so far.
// Finalize records this count as FileHeader.ChunkCount itself.
func (w *Writer) ChunksWritten() uint64 { return w.chunksWritten }

// Finalize writes the JSON footer and fixed trailer, then closes the file.
// It must be called exactly once; subsequent calls error (spec §4.5).
func (w *Writer) Finalize(header FileHeader) (int64, error) {
	if w.finalized {
		return 0, perr.Internal("finalize called more than once")
	}
	w.finalized = true
	defer w.f.Close()

	header.FormatVersion = FormatVersion
	header.ChunkCount = w.chunksWritten

	footer, err := json.Marshal(header)
	if err != nil {
		return 0, perr.Wrap(perr.KindIO, err, "marshal footer")
	}
	n, err := w.f.Write(footer)
	if err != nil {
		return 0, perr.IO(err, "write footer")
	}
	w.bytesWritten += int64(n)

	var trailer [trailerLen]byte
	binary.LittleEndian.PutUint64(trailer[0:8], uint64(len(footer)))
	binary.LittleEndian.PutUint32(trailer[8:12], FormatVersion)
	n2, err := w.f.Write(trailer[:])
	if err != nil {
		return 0, perr.IO(err, "write trailer")
	}
	w.bytesWritten += int64(n2)

	return w.bytesWritten, nil
}
