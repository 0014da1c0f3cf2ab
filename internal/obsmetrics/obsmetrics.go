// Package obsmetrics is the Prometheus-backed observability-sink
// collaborator (§6.3): it satisfies both internal/stages.DebugSink (the
// debug/tee stage's per-chunk callback pair) and
// internal/orchestrator.Observer (the pipeline run's five lifecycle
// hooks). Grounded on internal/gateway/metrics/collector.go's
// promauto-vars-plus-Collector-struct shape.
package obsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapipe_chunks_processed_total",
			Help: "Total chunks processed per pipeline",
		},
		[]string{"pipeline"},
	)

	bytesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapipe_bytes_processed_total",
			Help: "Total bytes processed per pipeline",
		},
		[]string{"pipeline"},
	)

	pipelineProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adapipe_pipeline_progress_percent",
			Help: "Most recent progress percentage reported by a running pipeline",
		},
		[]string{"pipeline"},
	)

	pipelinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adapipe_pipelines_active",
			Help: "Number of pipeline runs currently in progress",
		},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapipe_pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline"},
	)

	debugStageBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapipe_debug_stage_bytes_total",
			Help: "Bytes observed passing through a debug/tee stage",
		},
		[]string{"label"},
	)

	debugStageChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapipe_debug_stage_chunks_total",
			Help: "Chunks observed passing through a debug/tee stage",
		},
		[]string{"label"},
	)
)

// Collector records pipeline lifecycle and debug-stage events to
// Prometheus. The zero value is ready to use.
type Collector struct {
	startedAt map[string]time.Time
}

// NewCollector builds a Collector.
func NewCollector() *Collector {
	return &Collector{startedAt: make(map[string]time.Time)}
}

// OnProcessingStarted implements internal/orchestrator.Observer.
func (c *Collector) OnProcessingStarted(pipelineName string, totalChunks uint64) {
	pipelinesActive.Inc()
	if c.startedAt == nil {
		c.startedAt = make(map[string]time.Time)
	}
	c.startedAt[pipelineName] = time.Now()
}

// OnChunkStarted implements internal/orchestrator.Observer.
func (c *Collector) OnChunkStarted(seq uint64) {}

// OnChunkCompleted implements internal/orchestrator.Observer. The
// pipeline name isn't available per-chunk in the orchestrator's callback
// signature, so per-pipeline counters are recorded in
// OnProcessingCompleted instead; this hook exists for callers that want a
// finer-grained signal (e.g. a live progress bar) without a Prometheus
// label on every chunk.
func (c *Collector) OnChunkCompleted(seq uint64, bytes int) {}

// OnProgressUpdate implements internal/orchestrator.Observer. Since it
// isn't pipeline-labeled either, callers needing a per-pipeline gauge
// should use RecordProgress directly.
func (c *Collector) OnProgressUpdate(percent float64) {}

// OnProcessingCompleted implements internal/orchestrator.Observer.
func (c *Collector) OnProcessingCompleted(pipelineName string, chunksProcessedCount uint64) {
	pipelinesActive.Dec()
	chunksProcessed.WithLabelValues(pipelineName).Add(float64(chunksProcessedCount))
	if start, ok := c.startedAt[pipelineName]; ok {
		pipelineDuration.WithLabelValues(pipelineName).Observe(time.Since(start).Seconds())
		delete(c.startedAt, pipelineName)
	}
}

// RecordBytes records bytes processed for a named pipeline, for callers
// with pipeline-labeled granularity the Observer hooks don't carry.
func (c *Collector) RecordBytes(pipelineName string, n int64) {
	bytesProcessed.WithLabelValues(pipelineName).Add(float64(n))
}

// RecordProgress records a pipeline's most recent progress percentage.
func (c *Collector) RecordProgress(pipelineName string, percent float64) {
	pipelineProgress.WithLabelValues(pipelineName).Set(percent)
}

// RecordDebugStageBytes implements internal/stages.DebugSink.
func (c *Collector) RecordDebugStageBytes(label string, chunkID uint64, bytes int) {
	debugStageBytes.WithLabelValues(label).Add(float64(bytes))
}

// IncrementDebugStageChunks implements internal/stages.DebugSink.
func (c *Collector) IncrementDebugStageChunks(label string) {
	debugStageChunks.WithLabelValues(label).Inc()
}
