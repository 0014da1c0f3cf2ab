package adapipe

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/adapipe/engine/internal/perr"
)

// CompareDetails is the extra metadata dump compare_original_to_container
// returns when detailed is requested (spec §6.2, SPEC_FULL.md's
// "Compare-to-container" supplement), matching what the original Rust
// CompareFilesUseCase prints under its own detailed flag: pipeline
// identity, chunk accounting, the processing summary also used by
// ValidateFile, and the current file's own modification time.
type CompareDetails struct {
	PipelineID        string
	ProcessedAt       time.Time
	ChunkCount        uint64
	ProcessingSummary ProcessingSummary
	CurrentModifiedAt time.Time
}

// CompareReport is returned by CompareToContainer (spec §6.2).
type CompareReport struct {
	SizeMatch     bool
	ChecksumMatch bool

	OriginalSize int64 // current size of original_path on disk
	RecordedSize int64 // original_size recorded in the container footer

	OriginalChecksum string // freshly computed sha256 of original_path
	RecordedChecksum string // original_checksum recorded in the container footer

	Details *CompareDetails // nil unless detailed was requested
}

// CompareToContainer compares the current file at originalPath against the
// metadata recorded in the .adapipe container at containerPath (spec §6.2),
// grounded on `application/use_cases/compare_files.rs`: it re-hashes the
// current file and compares size/checksum against the footer rather than
// decoding and diffing the container's processed chunk stream, exactly as
// the original use case does.
func CompareToContainer(originalPath, containerPath string, detailed bool) (CompareReport, error) {
	info, err := os.Stat(originalPath)
	if err != nil {
		return CompareReport{}, perr.IO(err, "stat original file %q", originalPath)
	}

	header, err := ReadMetadata(containerPath)
	if err != nil {
		return CompareReport{}, err
	}

	checksum, err := hashFile(originalPath)
	if err != nil {
		return CompareReport{}, err
	}

	report := CompareReport{
		SizeMatch:        info.Size() == header.OriginalSize,
		ChecksumMatch:    checksum == header.OriginalChecksum,
		OriginalSize:     info.Size(),
		RecordedSize:     header.OriginalSize,
		OriginalChecksum: checksum,
		RecordedChecksum: header.OriginalChecksum,
	}

	if detailed {
		report.Details = &CompareDetails{
			PipelineID:        header.PipelineID,
			ProcessedAt:       header.ProcessedAt,
			ChunkCount:        header.ChunkCount,
			ProcessingSummary: header.GetProcessingSummary(),
			CurrentModifiedAt: info.ModTime().UTC(),
		}
	}

	return report, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", perr.IO(err, "open original file %q", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", perr.IO(err, "hash original file %q", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
