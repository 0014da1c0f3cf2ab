// Package stage defines the stage abstraction (spec §4.2): the StageService
// contract every built-in and custom stage implements, stage configuration,
// and the typed-parameter extraction helpers stages use to read their own
// config out of a generic string map.
package stage

import (
	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
)

// Operation selects forward or inverse execution of a stage.
type Operation string

const (
	Forward Operation = "Forward"
	Reverse Operation = "Reverse"
)

// Position constrains where in a pipeline a stage may appear relative to
// binary-incompatible transforms like base64 encoding.
type Position string

const (
	PreBinary  Position = "PreBinary"
	PostBinary Position = "PostBinary"
	AnyPos     Position = "Any"
)

// Type classifies what kind of transform a stage performs.
type Type string

const (
	TypeCompression Type = "Compression"
	TypeEncryption  Type = "Encryption"
	TypeChecksum    Type = "Checksum"
	TypeTransform   Type = "Transform"
	TypePassThrough Type = "PassThrough"
)

// Configuration is the generic, wire-friendly description of one stage in a
// pipeline (spec §3's StageConfiguration).
type Configuration struct {
	Name                string
	Algorithm           string
	Operation           Operation
	Parameters          map[string]string
	ParallelProcessing  bool
	ChunkSize           *int
}

// Param returns the raw string value for key, if present.
func (c Configuration) Param(key string) (string, bool) {
	v, ok := c.Parameters[key]
	return v, ok
}

// RequireParam returns the string value for key or MissingParameter.
func (c Configuration) RequireParam(key string) (string, error) {
	v, ok := c.Parameters[key]
	if !ok || v == "" {
		return "", perr.MissingParameter(key)
	}
	return v, nil
}

// Service is the contract every stage implementation satisfies (spec §4.2).
// Implementations must be safe for concurrent use: the executor shares one
// Service instance across every worker goroutine.
type Service interface {
	ProcessChunk(c chunk.FileChunk, cfg Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error)
	Position() Position
	IsReversible() bool
	StageType() Type
	// RequiresSequential reports whether this stage must never be run by
	// execute_parallel — used by stream-stateful transforms.
	RequiresSequential() bool
}

// ValidateOrdering enforces spec §4.3's pipeline-stage-ordering rule: every
// PreBinary stage must precede every PostBinary stage. Any may appear
// anywhere.
func ValidateOrdering(positions []Position) error {
	seenPostBinary := false
	for _, p := range positions {
		switch p {
		case PostBinary:
			seenPostBinary = true
		case PreBinary:
			if seenPostBinary {
				return perr.InvalidConfiguration("a PreBinary stage appears after a PostBinary stage")
			}
		}
	}
	return nil
}
