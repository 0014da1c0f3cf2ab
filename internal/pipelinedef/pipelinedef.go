// Package pipelinedef is the pipeline definition value object: a named,
// persisted stage configuration list (§6.3 collaborator, supplemented
// feature 3/5 in SPEC_FULL.md). Grounded on
// original_source/adaptive_pipeline/tests/integration/pipeline_name_validation_tests.rs
// for ValidateName, and original_source/pipeline-domain/src/services/
// datetime_serde.rs for the RFC3339 UTC timestamp contract every wire
// timestamp in this module uses.
package pipelinedef

import (
	"strconv"
	"strings"
	"time"

	"github.com/adapipe/engine/internal/ids"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

const maxNameBytes = 255

// Definition is a named, persistable pipeline: an ordered stage list plus
// bookkeeping fields a repository adapter would store.
type Definition struct {
	ID          ids.ID
	Name        string
	Stages      []stage.Configuration
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New builds a Definition, validating the name up front. Stage ordering is
// validated by the caller's resolver (internal/executor.Executor.
// ValidateStageOrdering), since only a built stage.Service knows its own
// Position.
func New(id ids.ID, name string, stages []stage.Configuration, description string, now time.Time) (Definition, error) {
	if err := ValidateName(name); err != nil {
		return Definition{}, err
	}
	return Definition{
		ID:          id,
		Name:        name,
		Stages:      stages,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ValidateName enforces spec's pipeline-name rule (supplemented feature 3):
// non-empty, at most 255 bytes, restricted to [A-Za-z0-9_-] plus spaces.
func ValidateName(name string) error {
	if name == "" {
		return perr.InvalidParameter("name", "pipeline name cannot be empty")
	}
	if len(name) > maxNameBytes {
		return perr.InvalidParameter("name", "pipeline name exceeds 255 bytes")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == ' ':
		default:
			return perr.InvalidParameter("name", "pipeline name contains disallowed character")
		}
	}
	return nil
}

// RestorationName builds the ephemeral inverse-pipeline name
// ("__restore__{pipeline_id}_{epoch_ms}", spec §4.6), bypassing
// ValidateName since the leading underscores aren't a user-chosen name.
func RestorationName(pipelineID string, now time.Time) string {
	return "__restore__" + pipelineID + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// ParseRFC3339UTC parses a wire timestamp, requiring the RFC3339 'Z' UTC
// suffix every footer/context timestamp in this module uses (spec §6.1).
func ParseRFC3339UTC(s string) (time.Time, error) {
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, perr.InvalidParameter("timestamp", "RFC3339 UTC timestamp must end in 'Z'")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, perr.Wrap(perr.KindInvalidParameter, err, "invalid RFC3339 UTC timestamp %q", s)
	}
	return t.UTC(), nil
}

// FormatRFC3339UTC formats t as an RFC3339 UTC timestamp with a 'Z' suffix.
func FormatRFC3339UTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
