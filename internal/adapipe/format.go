// Package adapipe implements the .adapipe binary container codec (C5,
// spec §4.5/§6.1): a fixed magic, a stream of per-chunk frames, a JSON
// footer describing the pipeline that produced the container, and a fixed
// 12-byte trailer locating the footer.
package adapipe

import "time"

// Magic is the 8-byte constant that opens every container.
var Magic = [8]byte{'A', 'D', 'A', 'P', 'I', 'P', 'E', 0}

// FormatVersion is the only wire format version this codec writes and
// reads (spec §6.1).
const FormatVersion uint32 = 1

// trailerLen is the fixed size of the trailer: 8-byte footer_len +
// 4-byte format_version.
const trailerLen = 12

// frameHeaderLen is the fixed prefix of every chunk frame: 4-byte
// payload_len + 12-byte nonce.
const frameHeaderLen = 4 + 12

// StepType classifies one entry in FileHeader.ProcessingSteps.
type StepType string

const (
	StepCompression StepType = "Compression"
	StepEncryption  StepType = "Encryption"
	StepChecksum    StepType = "Checksum"
	StepPassThrough StepType = "PassThrough"
)

// ProcessingStep is one entry in the footer's ordered step list (spec §3).
type ProcessingStep struct {
	StepType   StepType          `json:"step_type"`
	Algorithm  string            `json:"algorithm"`
	Parameters map[string]string `json:"parameters"`
	Order      int               `json:"order"`
}

// FileHeader is the container footer metadata (spec §3/§6.1).
type FileHeader struct {
	OriginalFilename string           `json:"original_filename"`
	OriginalSize     int64            `json:"original_size"`
	OriginalChecksum string           `json:"original_checksum"`
	OutputChecksum   string           `json:"output_checksum,omitempty"`
	FormatVersion    uint32           `json:"format_version"`
	AppVersion       string           `json:"app_version"`
	ChunkSize        int              `json:"chunk_size"`
	ChunkCount       uint64           `json:"chunk_count"`
	PipelineID       string           `json:"pipeline_id"`
	ProcessedAt      time.Time        `json:"processed_at"`
	ProcessingSteps  []ProcessingStep `json:"processing_steps"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// IsCompressed reports whether any processing step is a Compression step.
func (h FileHeader) IsCompressed() bool { return h.hasStepType(StepCompression) }

// IsEncrypted reports whether any processing step is an Encryption step.
func (h FileHeader) IsEncrypted() bool { return h.hasStepType(StepEncryption) }

func (h FileHeader) hasStepType(t StepType) bool {
	for _, s := range h.ProcessingSteps {
		if s.StepType == t {
			return true
		}
	}
	return false
}

// GetRestorationSteps returns ProcessingSteps in forward order; restore
// planning (internal/restore) walks them in reverse itself.
func (h FileHeader) GetRestorationSteps() []ProcessingStep {
	out := make([]ProcessingStep, len(h.ProcessingSteps))
	copy(out, h.ProcessingSteps)
	return out
}

// ProcessingSummary is a human-readable digest of a header, grounded on the
// original Rust implementation's processing_summary (supplemented feature,
// SPEC_FULL.md item 2).
type ProcessingSummary struct {
	Compressed    bool
	Encrypted     bool
	StepCount     int
	Algorithms    []string
	CompressionRatio float64
}

// GetProcessingSummary builds a ProcessingSummary from the header.
func (h FileHeader) GetProcessingSummary() ProcessingSummary {
	algos := make([]string, 0, len(h.ProcessingSteps))
	for _, s := range h.ProcessingSteps {
		algos = append(algos, s.Algorithm)
	}
	ratio := 1.0
	if h.OriginalSize > 0 {
		// A proxy ratio using chunk_size*chunk_count as the processed size
		// estimate; exact post-pipeline size isn't tracked in the footer.
		processed := int64(h.ChunkSize) * int64(h.ChunkCount)
		if processed > 0 {
			ratio = float64(h.OriginalSize) / float64(processed)
		}
	}
	return ProcessingSummary{
		Compressed:       h.IsCompressed(),
		Encrypted:        h.IsEncrypted(),
		StepCount:        len(h.ProcessingSteps),
		Algorithms:       algos,
		CompressionRatio: ratio,
	}
}

// ChunkFrame is one on-wire chunk (spec §3's ChunkFormat / §6.1's chunk
// frame): a fixed-width nonce and a variable-length payload.
type ChunkFrame struct {
	Nonce   [12]byte
	Payload []byte
}

// ValidationReport is returned by Reader.ValidateFile (spec §4.5).
type ValidationReport struct {
	IsValid          bool
	FormatVersion    uint32
	ChunkCount       uint64
	ProcessingSummary ProcessingSummary
	Errors           []string
}
