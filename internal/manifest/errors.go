// Package manifest assembles analysis results into the basic info, flow call
// and feature manifests, and persists them as JSON files.
package manifest

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrManifestNotFound indicates a manifest file does not exist.
	ErrManifestNotFound = errors.New("manifest file not found")

	// ErrOutputDirNotDirectory indicates the output path is not a directory.
	ErrOutputDirNotDirectory = errors.New("manifest output path is not a directory")

	// ErrRunIDMismatch indicates the manifest files come from different runs.
	ErrRunIDMismatch = errors.New("manifest files belong to different runs")
)

// SchemaVersionMismatchError indicates manifest schema version mismatch.
type SchemaVersionMismatchError struct {
	Path     string
	Expected int
	Actual   int
}

func (e *SchemaVersionMismatchError) Error() string {
	return fmt.Sprintf("schema version mismatch in %s: expected %d, got %d", e.Path, e.Expected, e.Actual)
}

// RecordCorruptedError indicates a manifest file cannot be decoded.
type RecordCorruptedError struct {
	Path  string
	Cause error
}

func (e *RecordCorruptedError) Error() string {
	return fmt.Sprintf("manifest file corrupted at %s: %v", e.Path, e.Cause)
}

func (e *RecordCorruptedError) Unwrap() error {
	return e.Cause
}
