// Package perr is the engine's closed error taxonomy (spec §7). Every error
// the core returns is one of these kinds, constructed through the per-kind
// helpers below (InvalidConfiguration, Integrity, Wrap, ...) so callers can type-switch or use errors.As instead of matching on
// message text.
package perr

import (
	"errors"
	"fmt"
)

// Kind is one entry in the closed taxonomy.
type Kind string

const (
	KindInvalidConfiguration Kind = "InvalidConfiguration"
	KindMissingParameter     Kind = "MissingParameter"
	KindInvalidParameter     Kind = "InvalidParameter"
	KindInvalidChunk         Kind = "InvalidChunk"
	KindIntegrity            Kind = "IntegrityError"
	KindCompression          Kind = "CompressionError"
	KindEncryption           Kind = "EncryptionError"
	KindSecurityViolation    Kind = "SecurityViolation"
	KindResourceExhausted    Kind = "ResourceExhausted"
	KindIO                   Kind = "IoError"
	KindTimeout              Kind = "TimeoutError"
	KindCancelled            Kind = "Cancelled"
	KindPipelineNotFound     Kind = "PipelineNotFound"
	KindInternal             Kind = "InternalError"
)

// recoverable marks kinds the caller may retry the whole run for, with
// different parameters (spec §7 propagation policy). The core itself never
// retries.
var recoverable = map[Kind]bool{
	KindResourceExhausted: true,
	KindIO:                true,
	KindTimeout:           true,
}

// Error is the concrete error type carried by every perr-produced error.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Recoverable reports whether the caller may retry the whole run per spec §7.
func (e *Error) Recoverable() bool { return recoverable[e.Kind] }

func new_(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/message to an underlying error, preserving it for
// errors.Is/As and %w-style unwrapping.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

func InvalidConfiguration(format string, args ...any) *Error {
	return new_(KindInvalidConfiguration, format, args...)
}

func MissingParameter(name string) *Error {
	return new_(KindMissingParameter, "missing required parameter %q", name)
}

func InvalidParameter(name, reason string) *Error {
	return new_(KindInvalidParameter, "parameter %q invalid: %s", name, reason)
}

func InvalidChunk(reason string) *Error {
	return new_(KindInvalidChunk, "%s", reason)
}

func Integrity(format string, args ...any) *Error {
	return new_(KindIntegrity, format, args...)
}

func Compression(err error, format string, args ...any) *Error {
	return Wrap(KindCompression, err, format, args...)
}

func Encryption(err error, format string, args ...any) *Error {
	return Wrap(KindEncryption, err, format, args...)
}

func SecurityViolation(format string, args ...any) *Error {
	return new_(KindSecurityViolation, format, args...)
}

func ResourceExhausted(format string, args ...any) *Error {
	return new_(KindResourceExhausted, format, args...)
}

func IO(err error, format string, args ...any) *Error {
	return Wrap(KindIO, err, format, args...)
}

func Timeout(format string, args ...any) *Error {
	return new_(KindTimeout, format, args...)
}

// Cancelled is a sentinel: cancellation is not an error condition per spec
// §4.7, but it is surfaced through the same Error type so callers have one
// consistent shape to switch on.
var Cancelled = new_(KindCancelled, "processing cancelled")

func PipelineNotFound(id string) *Error {
	return new_(KindPipelineNotFound, "pipeline %q not found", id)
}

func Internal(format string, args ...any) *Error {
	return new_(KindInternal, format, args...)
}

// Is reports whether err carries the given kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Unsupported is shorthand for the InvalidConfiguration a stage must raise
// when asked to run Reverse on a non-reversible stage (spec §4.2).
func Unsupported(stage string) *Error {
	return new_(KindInvalidConfiguration, "stage %q does not support reverse operation", stage)
}
