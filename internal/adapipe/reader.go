package adapipe

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/adapipe/engine/internal/perr"
)

// Reader streams a .adapipe container from disk (spec §4.5).
type Reader struct {
	f            *os.File
	header       FileHeader
	chunksEnd    int64 // offset where the chunk stream ends (footer begins)
	pos          int64 // current read position within the chunk stream
	chunksRead   uint64
}

// CreateReader opens path, validates magic/trailer/footer, and positions
// the reader at the start of the chunk stream.
func CreateReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.IO(err, "open container file %q", path)
	}

	header, chunksEnd, err := readHeaderFrom(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(int64(len(Magic)), io.SeekStart); err != nil {
		f.Close()
		return nil, perr.IO(err, "seek to chunk stream")
	}

	return &Reader{f: f, header: header, chunksEnd: chunksEnd, pos: int64(len(Magic))}, nil
}

// ReadHeader returns the validated footer (spec §4.5).
func (r *Reader) ReadHeader() FileHeader { return r.header }

// ReadNextChunk returns the next frame, or (ChunkFrame{}, false, nil) at
// end of stream.
func (r *Reader) ReadNextChunk() (ChunkFrame, bool, error) {
	if r.pos >= r.chunksEnd {
		return ChunkFrame{}, false, nil
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r.f, lenBuf[:]); err != nil {
		return ChunkFrame{}, false, perr.Wrap(perr.KindIO, err, "ChunkParseError(%d): read payload_len", r.chunksRead)
	}
	payloadLen := binary.LittleEndian.Uint32(lenBuf[:])

	var nonce [12]byte
	if _, err := io.ReadFull(r.f, nonce[:]); err != nil {
		return ChunkFrame{}, false, perr.Wrap(perr.KindIO, err, "ChunkParseError(%d): read nonce", r.chunksRead)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r.f, payload); err != nil {
		return ChunkFrame{}, false, perr.Wrap(perr.KindIO, err, "ChunkParseError(%d): read payload", r.chunksRead)
	}

	r.pos += int64(frameHeaderLen) + int64(payloadLen)
	r.chunksRead++
	return ChunkFrame{Nonce: nonce, Payload: payload}, true, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }

// ReadMetadata opens path and returns only the header, without iterating
// chunks (spec §4.5).
func ReadMetadata(path string) (FileHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileHeader{}, perr.IO(err, "open container file %q", path)
	}
	defer f.Close()

	header, _, err := readHeaderFrom(f)
	return header, err
}

// ValidateFile validates a container's structure (spec §4.5): it reads the
// header, walks every chunk frame (payloads included), and compares the
// number of frames with the footer's chunk_count. Payload bytes are not
// inspected, so corruption inside a payload leaves the report valid.
func ValidateFile(path string) ValidationReport {
	report := ValidationReport{IsValid: true}

	r, err := CreateReader(path)
	if err != nil {
		report.IsValid = false
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	defer r.Close()

	report.FormatVersion = r.header.FormatVersion
	report.ProcessingSummary = r.header.GetProcessingSummary()

	var counted uint64
	for {
		_, ok, err := r.ReadNextChunk()
		if err != nil {
			report.IsValid = false
			report.Errors = append(report.Errors, err.Error())
			break
		}
		if !ok {
			break
		}
		counted++
	}
	report.ChunkCount = counted

	if counted != r.header.ChunkCount {
		report.IsValid = false
		report.Errors = append(report.Errors, perr.Internal("ChunkCountMismatch: expected %d, got %d", r.header.ChunkCount, counted).Error())
	}

	return report
}

// readHeaderFrom validates magic, reads the trailer, and parses the footer,
// returning the header and the byte offset where the chunk stream ends
// (i.e. where the footer begins).
func readHeaderFrom(f *os.File) (FileHeader, int64, error) {
	info, err := f.Stat()
	if err != nil {
		return FileHeader{}, 0, perr.IO(err, "stat container file")
	}
	size := info.Size()
	if size < int64(len(Magic))+trailerLen {
		return FileHeader{}, 0, perr.Internal("TruncatedFile: container smaller than magic+trailer")
	}

	var magic [8]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil {
		return FileHeader{}, 0, perr.Wrap(perr.KindIO, err, "InvalidMagic: read magic")
	}
	if magic != Magic {
		return FileHeader{}, 0, perr.Internal("InvalidMagic: unexpected magic bytes")
	}

	var trailer [trailerLen]byte
	if _, err := f.ReadAt(trailer[:], size-trailerLen); err != nil {
		return FileHeader{}, 0, perr.Wrap(perr.KindIO, err, "TruncatedFile: read trailer")
	}
	footerLen := binary.LittleEndian.Uint64(trailer[0:8])
	formatVersion := binary.LittleEndian.Uint32(trailer[8:12])

	if formatVersion != FormatVersion {
		return FileHeader{}, 0, perr.Internal("UnsupportedFormatVersion(%d)", formatVersion)
	}

	footerStart := size - trailerLen - int64(footerLen)
	if footerStart < int64(len(Magic)) {
		return FileHeader{}, 0, perr.Internal("TruncatedFile: footer_len exceeds container size")
	}

	footer := make([]byte, footerLen)
	if _, err := f.ReadAt(footer, footerStart); err != nil {
		if errors.Is(err, io.EOF) {
			return FileHeader{}, 0, perr.Internal("TruncatedFile: short footer read")
		}
		return FileHeader{}, 0, perr.Wrap(perr.KindIO, err, "TruncatedFile: read footer")
	}

	var header FileHeader
	if err := json.Unmarshal(footer, &header); err != nil {
		return FileHeader{}, 0, perr.Wrap(perr.KindIO, err, "FooterParseError")
	}

	return header, footerStart, nil
}
