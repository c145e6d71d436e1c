package extractor

import (
	"errors"
	"fmt"
)

var (
	// ErrMediaUnsupported is returned for anything other than an image or a PDF.
	ErrMediaUnsupported = errors.New("media must be an image or a PDF")

	// ErrInvalidParticipants is returned when the participant list is empty,
	// has blank names, or repeats a name.
	ErrInvalidParticipants = errors.New("participants must be a non-empty list of distinct names")
)

// ParsingError means the model's response held no usable JSON object.
// Retrying with a reformulated prompt may help.
type ParsingError struct {
	Reason string
	// Response is the raw model output, kept for diagnostics.
	Response string
	Err      error
}

func (e *ParsingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no machine-readable JSON in model response: %s: %v", e.Reason, e.Err)
	}
	return "no machine-readable JSON in model response: " + e.Reason
}

func (e *ParsingError) Unwrap() error { return e.Err }

// SchemaViolation means the model returned well-formed JSON that does not
// describe a valid split.
type SchemaViolation struct {
	// Path locates the offending field, e.g. "items[2].price".
	Path   string
	Reason string
}

func (e *SchemaViolation) Error() string {
	if e.Path == "" {
		return "schema violation: " + e.Reason
	}
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

func violation(path, format string, args ...any) *SchemaViolation {
	return &SchemaViolation{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func isKind[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// ErrUnparseable matches both ParsingError and SchemaViolation, for callers
// that only need to know the model output was unusable.
var ErrUnparseable = errors.New("model response could not be used")

func (e *ParsingError) Is(target error) bool { return target == ErrUnparseable }

func (e *SchemaViolation) Is(target error) bool { return target == ErrUnparseable }
