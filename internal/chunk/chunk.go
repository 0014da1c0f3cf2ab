// Package chunk holds the core value types shared by every stage: the
// immutable FileChunk, the per-run ProcessingContext, and the
// SecurityContext classification tuple (spec §3, §4.1).
package chunk

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/adapipe/engine/internal/perr"
)

// FileChunk is an immutable slice of a file paired with its position in the
// stream. "Mutation" always produces a new value via the With* helpers
// (spec §4.1) so chunks need no locking across concurrent workers.
type FileChunk struct {
	sequenceNumber uint64
	offset         uint64
	data           []byte
	isFinal        bool
	checksum       string // hex SHA-256, empty if not computed
}

// New creates a chunk, rejecting empty data per spec §3's invariant that
// data is non-empty for every chunk entering a stage.
func New(sequence, offset uint64, data []byte, isFinal bool) (FileChunk, error) {
	if len(data) == 0 {
		return FileChunk{}, perr.InvalidChunk("empty data")
	}
	return FileChunk{
		sequenceNumber: sequence,
		offset:         offset,
		data:           data,
		isFinal:        isFinal,
	}, nil
}

func (c FileChunk) SequenceNumber() uint64 { return c.sequenceNumber }
func (c FileChunk) Offset() uint64         { return c.offset }
func (c FileChunk) Data() []byte           { return c.data }
func (c FileChunk) IsFinal() bool          { return c.isFinal }
func (c FileChunk) Size() int              { return len(c.data) }

// Checksum returns the attached hex SHA-256 and whether one is present.
func (c FileChunk) Checksum() (string, bool) {
	if c.checksum == "" {
		return "", false
	}
	return c.checksum, true
}

// WithData returns a new chunk carrying new_data, identity fields unchanged,
// checksum cleared (it no longer describes the new payload).
func (c FileChunk) WithData(newData []byte) (FileChunk, error) {
	if len(newData) == 0 {
		return FileChunk{}, perr.InvalidChunk("empty data")
	}
	next := c
	next.data = newData
	next.checksum = ""
	return next, nil
}

// WithChecksum attaches a checksum without recomputing it — used when the
// caller already knows the digest (e.g. restoring a checksum recorded
// elsewhere).
func (c FileChunk) WithChecksum(hexDigest string) FileChunk {
	next := c
	next.checksum = hexDigest
	return next
}

// WithCalculatedChecksum computes SHA-256 of the current data and attaches
// it.
func (c FileChunk) WithCalculatedChecksum() FileChunk {
	sum := sha256.Sum256(c.data)
	return c.WithChecksum(hex.EncodeToString(sum[:]))
}

// VerifyIntegrity reports whether the attached checksum matches the current
// data. Errors if no checksum is present.
func (c FileChunk) VerifyIntegrity() (bool, error) {
	if c.checksum == "" {
		return false, perr.InvalidChunk("no checksum attached")
	}
	sum := sha256.Sum256(c.data)
	return c.checksum == hex.EncodeToString(sum[:]), nil
}
