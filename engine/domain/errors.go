package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	ErrNotFound     = errors.New("document not found")
	ErrConflict     = errors.New("document already exists")
	ErrEmptyContent = errors.New("no usable text content")
	ErrRateLimited  = errors.New("generation rate limited")
	ErrTimeout      = errors.New("operation timed out")
)

// ExtractKind distinguishes the ways extraction can fail.
type ExtractKind string

const (
	ExtractNoCaptions ExtractKind = "no_captions"
	ExtractUnreadable ExtractKind = "unreadable"
	ExtractFetch      ExtractKind = "fetch"
	ExtractBadURL     ExtractKind = "bad_url"
)

// ExtractionError reports a failure to obtain text from a source.
type ExtractionError struct {
	Kind    ExtractKind
	Source  string
	Wrapped error
}

func (e *ExtractionError) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("extraction: %s: %s", e.Kind, e.Source)
	}
	return fmt.Sprintf("extraction: %s: %s: %s", e.Kind, e.Source, e.Wrapped)
}

func (e *ExtractionError) Unwrap() error { return e.Wrapped }

// NewExtractionError creates an ExtractionError.
func NewExtractionError(kind ExtractKind, source string, wrapped error) *ExtractionError {
	return &ExtractionError{Kind: kind, Source: source, Wrapped: wrapped}
}

// StorageError reports a vector store read or write failure.
type StorageError struct {
	Op      string
	Wrapped error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %s", e.Op, e.Wrapped)
}

func (e *StorageError) Unwrap() error { return e.Wrapped }

// NewStorageError creates a StorageError.
func NewStorageError(op string, wrapped error) *StorageError {
	return &StorageError{Op: op, Wrapped: wrapped}
}

// GenerationError reports a generation-API failure that is neither a rate
// limit nor a timeout.
type GenerationError struct {
	Wrapped error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %s", e.Wrapped)
}

func (e *GenerationError) Unwrap() error { return e.Wrapped }

// StageError qualifies a pipeline failure with the stage it occurred in.
type StageError struct {
	Stage   string
	Wrapped error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Wrapped)
}

func (e *StageError) Unwrap() error { return e.Wrapped }

// NewStageError creates a StageError.
func NewStageError(stage string, wrapped error) *StageError {
	return &StageError{Stage: stage, Wrapped: wrapped}
}
