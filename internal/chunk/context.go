package chunk

import (
	"sync"
	"time"

	"github.com/adapipe/engine/internal/perr"
)

// Metrics accumulates counters for one run. All updates are commutative so
// parallel workers can merge cloned contexts back at the join point (spec
// §5); every update is guarded by the struct's mutex.
type Metrics struct {
	mu             sync.Mutex
	BytesProcessed int64
	ChunksProcessed int64
	Counters       map[string]int64
	startedAt      time.Time
}

// NewMetrics returns a zeroed accumulator stamped with the current time.
func NewMetrics() *Metrics {
	return &Metrics{Counters: make(map[string]int64), startedAt: time.Now().UTC()}
}

// AddBytes records bytes processed by a chunk/stage.
func (m *Metrics) AddBytes(n int64) {
	m.mu.Lock()
	m.BytesProcessed += n
	m.mu.Unlock()
}

// AddChunk increments the processed-chunk counter.
func (m *Metrics) AddChunk() {
	m.mu.Lock()
	m.ChunksProcessed++
	m.mu.Unlock()
}

// Incr bumps a named counter (e.g. "debug.chunks.<label>").
func (m *Metrics) Incr(name string, delta int64) {
	m.mu.Lock()
	m.Counters[name] += delta
	m.mu.Unlock()
}

// ThroughputMBps returns bytes/sec in MiB/s since the metrics were created.
func (m *Metrics) ThroughputMBps() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := time.Since(m.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.BytesProcessed) / (1024 * 1024) / elapsed
}

// ProcessingContext is the per-file, per-direction state carrier threaded
// through every stage (spec §3). The orchestrator owns one uniquely for the
// lifetime of a single file's run; stages receive a pointer to it.
type ProcessingContext struct {
	mu sync.Mutex

	InputPath  string
	OutputPath string
	FileSize   int64

	processedBytes int64

	ChunkSize   int
	WorkerCount int

	Security *SecurityContext
	Metrics  *Metrics

	metadata     map[string]string
	stageResults map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewContext builds a context for an orchestrator-driven run, where
// input/output paths are mandatory (Open Question #2 in DESIGN.md).
func NewContext(inputPath, outputPath string, fileSize int64, chunkSize, workerCount int, security *SecurityContext) *ProcessingContext {
	now := time.Now().UTC()
	return &ProcessingContext{
		InputPath:    inputPath,
		OutputPath:   outputPath,
		FileSize:     fileSize,
		ChunkSize:    chunkSize,
		WorkerCount:  workerCount,
		Security:     security,
		Metrics:      NewMetrics(),
		metadata:     make(map[string]string),
		stageResults: make(map[string]string),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewForStageTest builds a context for stage-only unit tests, where paths
// are not meaningful (Open Question #2).
func NewForStageTest(security *SecurityContext) *ProcessingContext {
	return NewContext("", "", 0, 0, 1, security)
}

// ProcessedBytes returns the monotonically increasing processed-byte count.
func (c *ProcessingContext) ProcessedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processedBytes
}

// AddProcessedBytes advances processed_bytes, clamping so the invariant
// processed_bytes <= file_size always holds, and bumps updated_at.
func (c *ProcessingContext) AddProcessedBytes(n int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		return perr.Internal("processing context: negative byte delta")
	}
	c.processedBytes += n
	if c.FileSize > 0 && c.processedBytes > c.FileSize {
		c.processedBytes = c.FileSize
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ProgressPercent returns processed_bytes/file_size capped at 100.
func (c *ProcessingContext) ProgressPercent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FileSize <= 0 {
		return 0
	}
	pct := float64(c.processedBytes) / float64(c.FileSize) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// SetMetadata records a freeform annotation, last-write-wins across
// concurrent stages (spec §5).
func (c *ProcessingContext) SetMetadata(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
	c.UpdatedAt = time.Now().UTC()
}

// Metadata returns the annotation for key, if any.
func (c *ProcessingContext) Metadata(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// SetStageResult records a named per-stage output (e.g. a running checksum).
func (c *ProcessingContext) SetStageResult(stageName, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stageResults[stageName] = value
	c.UpdatedAt = time.Now().UTC()
}

// StageResult returns a previously recorded stage output.
func (c *ProcessingContext) StageResult(stageName string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.stageResults[stageName]
	return v, ok
}

// Clone returns an independent copy of the metadata/stage-result maps for a
// parallel worker; merge results back with MergeFrom at the join point.
func (c *ProcessingContext) Clone() *ProcessingContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := &ProcessingContext{
		InputPath:    c.InputPath,
		OutputPath:   c.OutputPath,
		FileSize:     c.FileSize,
		ChunkSize:    c.ChunkSize,
		WorkerCount:  c.WorkerCount,
		Security:     c.Security,
		Metrics:      c.Metrics, // shared: Metrics guards its own updates with a mutex
		metadata:     make(map[string]string, len(c.metadata)),
		stageResults: make(map[string]string, len(c.stageResults)),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for k, v := range c.metadata {
		clone.metadata[k] = v
	}
	for k, v := range c.stageResults {
		clone.stageResults[k] = v
	}
	return clone
}

// MergeFrom folds a cloned worker context's metadata/stage-results back,
// last-write-wins keyed by name (spec §5/§9).
func (c *ProcessingContext) MergeFrom(other *ProcessingContext) {
	other.mu.Lock()
	meta := make(map[string]string, len(other.metadata))
	for k, v := range other.metadata {
		meta[k] = v
	}
	results := make(map[string]string, len(other.stageResults))
	for k, v := range other.stageResults {
		results[k] = v
	}
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range meta {
		c.metadata[k] = v
	}
	for k, v := range results {
		c.stageResults[k] = v
	}
	c.UpdatedAt = time.Now().UTC()
}
