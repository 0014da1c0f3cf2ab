// Package restore implements the restoration planner (C6, spec §4.6): given
// a container footer, it builds the ephemeral inverse pipeline that
// reproduces the original bytes and verifies them against the recorded
// checksum. Grounded on the original implementation's
// create_restoration_pipeline use case (reverse LIFO over processing steps,
// skipping checksum steps, bracketed by input/verification/output checksum
// stages).
package restore

import (
	"strings"
	"time"

	"github.com/adapipe/engine/internal/adapipe"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/pipelinedef"
	"github.com/adapipe/engine/internal/stage"
)

const (
	stageInputChecksum  = "input_checksum"
	stageVerification   = "verification"
	stageOutputChecksum = "output_checksum"
)

// Plan is an ephemeral inverse pipeline built from a container footer.
type Plan struct {
	PipelineName string
	ChunkSize    int
	Stages       []stage.Configuration
}

// BuildPlan implements spec §4.6's create_restoration_pipeline algorithm.
func BuildPlan(header adapipe.FileHeader, now time.Time) (Plan, error) {
	if header.ChunkSize <= 0 {
		return Plan{}, perr.Internal("TruncatedFile: header missing chunk_size")
	}

	plan := Plan{
		PipelineName: pipelinedef.RestorationName(header.PipelineID, now),
		ChunkSize:    header.ChunkSize,
	}

	plan.Stages = append(plan.Stages, stage.Configuration{
		Name:               stageInputChecksum,
		Algorithm:          "sha256",
		Operation:          stage.Forward,
		Parameters:         map[string]string{"verify_existing": "false"},
		ParallelProcessing: false,
		ChunkSize:          &header.ChunkSize,
	})

	steps := header.GetRestorationSteps()
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.StepType == adapipe.StepChecksum {
			continue
		}

		name := strings.ToLower(step.Algorithm)
		switch step.StepType {
		case adapipe.StepCompression:
			name = "decompression"
		case adapipe.StepEncryption:
			name = "decryption"
		}

		params := make(map[string]string, len(step.Parameters))
		for k, v := range step.Parameters {
			params[k] = v
		}

		plan.Stages = append(plan.Stages, stage.Configuration{
			Name:               name,
			Algorithm:          step.Algorithm,
			Operation:          stage.Reverse,
			Parameters:         params,
			ParallelProcessing: false,
			ChunkSize:          &header.ChunkSize,
		})
	}

	plan.Stages = append(plan.Stages,
		stage.Configuration{
			Name:               stageVerification,
			Algorithm:          "sha256",
			Operation:          stage.Forward,
			Parameters:         map[string]string{"verify_existing": "false"},
			ParallelProcessing: false,
			ChunkSize:          &header.ChunkSize,
		},
		stage.Configuration{
			Name:               stageOutputChecksum,
			Algorithm:          "sha256",
			Operation:          stage.Forward,
			Parameters:         map[string]string{"verify_existing": "false"},
			ParallelProcessing: false,
			ChunkSize:          &header.ChunkSize,
		},
	)

	return plan, nil
}

// VerifyOutputChecksum compares the restoration run's recorded output
// checksum (ctx.stage_results[output_checksum]) against the footer's
// original_checksum (spec §4.6 step 5). Mismatch is IntegrityError and is
// never retried (spec §7).
func VerifyOutputChecksum(computedHex string, header adapipe.FileHeader) error {
	if computedHex != header.OriginalChecksum {
		return perr.Integrity("restored output checksum %s does not match original_checksum %s", computedHex, header.OriginalChecksum)
	}
	return nil
}
