package chunk

import (
	"bufio"
	"context"
	"io"
	"os"

	resticchunker "github.com/restic/chunker"

	"github.com/adapipe/engine/internal/perr"
)

// ChunkingAlgorithm selects how FileSource splits a file into chunks.
type ChunkingAlgorithm string

const (
	// ChunkingFixed splits at a constant byte boundary (spec §4.1's
	// original chunking mode).
	ChunkingFixed ChunkingAlgorithm = "fixed"
	// ChunkingFastCDC splits at content-defined boundaries via
	// github.com/restic/chunker, so inserting or deleting bytes near the
	// start of a file doesn't shift every chunk boundary downstream of it.
	ChunkingFastCDC ChunkingAlgorithm = "fastcdc"
)

// rawSplitter yields successive chunk payloads, returning io.EOF once
// exhausted. FileSource wraps it with one-chunk lookahead to know which
// payload is the last before handing it out, since neither splitter
// implementation knows the end has been reached until it tries to read
// past it.
type rawSplitter interface {
	next() ([]byte, error)
}

type fixedSplitter struct {
	r    *bufio.Reader
	size int
}

func (s *fixedSplitter) next() ([]byte, error) {
	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.r, buf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

type fastCDCSplitter struct {
	chunker *resticchunker.Chunker
	buf     []byte
}

func (s *fastCDCSplitter) next() ([]byte, error) {
	c, err := s.chunker.Next(s.buf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	data := make([]byte, c.Length)
	copy(data, c.Data)
	return data, nil
}

// FastCDCBoundaries configures the minimum/average/maximum chunk sizes for
// content-defined chunking (spec §4.1 extended by the fastcdc mode). Avg is
// only checked to lie between Min and Max; it is not passed to the
// underlying chunker, which enforces only min and max.
type FastCDCBoundaries struct {
	Min, Avg, Max int
}

// FileSource reads an input file and splits it into FileChunks in ascending
// sequence order, implementing internal/orchestrator.Source. It keeps one
// chunk buffered so it can mark the true last chunk IsFinal() before
// handing it out.
type FileSource struct {
	f         *os.File
	splitter  rawSplitter
	seq       uint64
	offset    uint64
	pending   []byte
	pendingOK bool
}

// NewFixedFileSource opens path and splits it into fixed-size chunks.
func NewFixedFileSource(path string, chunkSize int) (*FileSource, error) {
	if chunkSize <= 0 {
		return nil, perr.InvalidParameter("chunk_size", "must be positive")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.IO(err, "open input file %q", path)
	}
	return newFileSource(f, &fixedSplitter{r: bufio.NewReaderSize(f, chunkSize), size: chunkSize})
}

// NewFastCDCFileSource opens path and splits it into content-defined
// chunks using a random polynomial (fresh per source, not persisted across
// runs — spec does not require reproducible boundaries across runs).
func NewFastCDCFileSource(path string, b FastCDCBoundaries) (*FileSource, error) {
	if b.Min <= 0 || b.Avg <= 0 || b.Max <= 0 || b.Min > b.Avg || b.Avg > b.Max {
		return nil, perr.InvalidParameter("fastcdc_boundaries", "must satisfy 0 < min <= avg <= max")
	}
	pol, err := resticchunker.RandomPolynomial()
	if err != nil {
		return nil, perr.Wrap(perr.KindInternal, err, "generate fastcdc polynomial")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.IO(err, "open input file %q", path)
	}
	c := resticchunker.NewWithBoundaries(f, pol, uint(b.Min), uint(b.Max))
	return newFileSource(f, &fastCDCSplitter{chunker: c, buf: make([]byte, b.Max)})
}

func newFileSource(f *os.File, splitter rawSplitter) (*FileSource, error) {
	fs := &FileSource{f: f, splitter: splitter}
	if err := fs.fill(); err != nil {
		f.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FileSource) fill() error {
	data, err := fs.splitter.next()
	if err == io.EOF {
		fs.pending, fs.pendingOK = nil, false
		return nil
	}
	if err != nil {
		return perr.IO(err, "split input file")
	}
	fs.pending, fs.pendingOK = data, true
	return nil
}

// ReadChunk implements internal/orchestrator.Source.
func (fs *FileSource) ReadChunk(ctx context.Context) (FileChunk, bool, error) {
	if !fs.pendingOK {
		return FileChunk{}, false, nil
	}
	data := fs.pending
	seq, offset := fs.seq, fs.offset

	if err := fs.fill(); err != nil {
		return FileChunk{}, false, err
	}
	isFinal := !fs.pendingOK

	c, err := New(seq, offset, data, isFinal)
	if err != nil {
		return FileChunk{}, false, err
	}

	fs.seq++
	fs.offset += uint64(len(data))
	return c, true, nil
}

// Close releases the underlying file handle.
func (fs *FileSource) Close() error { return fs.f.Close() }
