package ingest

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrSourceUnavailable matches any *SourceUnavailableError.
	ErrSourceUnavailable = eris.New("source unavailable")
	// ErrSchemaMismatch matches any *SchemaMismatchError.
	ErrSchemaMismatch = eris.New("schema mismatch")
)

// SourceUnavailableError means a source file could not be located.
type SourceUnavailableError struct {
	Source string
	Path   string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("ingest: source %s unavailable: %s not found", e.Source, e.Path)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the ErrSourceUnavailable sentinel.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// SchemaMismatchError means a required column is absent from a source.
type SchemaMismatchError struct {
	Source string
	Path   string
	Column string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("ingest: source %s (%s) is missing required column %q", e.Source, e.Path, e.Column)
}

// Is lets errors.Is match the ErrSchemaMismatch sentinel.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}
