package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogObserverRecordsLifecycleEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: FormatJSON, Output: &buf})
	obs := NewLogObserver(logger)

	obs.OnProcessingStarted("nightly-archive", 3)
	obs.OnChunkStarted(0)
	obs.OnChunkCompleted(0, 128)
	obs.OnProgressUpdate(33.3)
	obs.OnProcessingCompleted("nightly-archive", 3)

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	if len(lines) != 5 {
		t.Fatalf("expected 5 log lines, got %d", len(lines))
	}

	var started map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &started))
	assert.Equal(t, "nightly-archive", started["pipeline"])
	assert.Equal(t, "3", started["total_chunks"])

	var completed map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[4], &completed))
	assert.Equal(t, "nightly-archive", completed["pipeline"])
	assert.Equal(t, "3", completed["chunks_processed"])
}
