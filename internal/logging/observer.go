package logging

import "strconv"

// LogObserver implements internal/orchestrator.Observer by writing a log
// entry at each lifecycle event, for hosts that want a run's progress in
// their log stream without wiring internal/obsmetrics.
type LogObserver struct {
	logger *Logger
}

// NewLogObserver wraps logger as an Observer.
func NewLogObserver(logger *Logger) *LogObserver {
	return &LogObserver{logger: logger.Named("orchestrator")}
}

func (o *LogObserver) OnProcessingStarted(pipelineName string, totalChunks uint64) {
	o.logger.With("pipeline", pipelineName, "total_chunks", strconv.FormatUint(totalChunks, 10)).Info("processing started")
}

func (o *LogObserver) OnChunkStarted(seq uint64) {
	o.logger.With("seq", strconv.FormatUint(seq, 10)).Debug("chunk started")
}

func (o *LogObserver) OnChunkCompleted(seq uint64, bytes int) {
	o.logger.With("seq", strconv.FormatUint(seq, 10), "bytes", strconv.Itoa(bytes)).Debug("chunk completed")
}

func (o *LogObserver) OnProgressUpdate(percent float64) {
	o.logger.With("percent", strconv.FormatFloat(percent, 'f', 2, 64)).Debug("progress update")
}

func (o *LogObserver) OnProcessingCompleted(pipelineName string, chunksProcessed uint64) {
	o.logger.With("pipeline", pipelineName, "chunks_processed", strconv.FormatUint(chunksProcessed, 10)).Info("processing completed")
}
