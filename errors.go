package streamkit

import (
	"fmt"
)

// ConfigurationError reports an invalid option. It surfaces
// synchronously from constructors, never from a running stream.
type ConfigurationError struct {
	// Field is the name of the offending option.
	Field string
	// Value is the rejected value.
	Value interface{}
	// Reason explains why the value is invalid.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s (value: %v): %s", e.Field, e.Value, e.Reason)
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(field string, value interface{}, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

// ResourceError reports a temp-file or disk failure. During a spill it
// aborts the operation; cleanup of already-written chunks is best
// effort and never masks this error.
type ResourceError struct {
	// Op is the failing operation, e.g. "write chunk".
	Op string
	// Path is the affected file, when known.
	Path string
	// Err is the underlying I/O error.
	Err error
}

func (e *ResourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("resource error during %s on %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("resource error during %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a ResourceError.
func NewResourceError(err error, op, path string) error {
	return &ResourceError{Op: op, Path: path, Err: err}
}

// ValidationError reports a record that could not be serialized or
// deserialized. A malformed record on chunk read-back fails the whole
// sort; no sentinel record is ever substituted.
type ValidationError struct {
	// Op is the failing operation, e.g. "deserialize record".
	Op string
	// Chunk is the chunk index, or -1 when not applicable.
	Chunk int
	// Index is the record's index within its chunk or the input
	// stream, or -1 when unknown.
	Index int
	// DataSize is the size of the offending payload in bytes.
	DataSize int
	// Err is the underlying cause.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("validation error during %s (chunk %d, record %d, %d bytes): %v",
			e.Op, e.Chunk, e.Index, e.DataSize, e.Err)
	}
	return fmt.Sprintf("validation error during %s (record %d, %d bytes): %v",
		e.Op, e.Index, e.DataSize, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError.
func NewValidationError(err error, op string, chunk, index, dataSize int) error {
	return &ValidationError{Op: op, Chunk: chunk, Index: index, DataSize: dataSize, Err: err}
}

// MergeFilterError reports an attempt to merge incompatible
// deduplicators or Bloom filters. It is always fatal to the merge.
type MergeFilterError struct {
	// Reason explains the incompatibility.
	Reason string
	// Err is the underlying filter error, when any.
	Err error
}

func (e *MergeFilterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("merge filter error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("merge filter error: %s", e.Reason)
}

func (e *MergeFilterError) Unwrap() error {
	return e.Err
}

// NewMergeFilterError creates a MergeFilterError.
func NewMergeFilterError(reason string, err error) error {
	return &MergeFilterError{Reason: reason, Err: err}
}
