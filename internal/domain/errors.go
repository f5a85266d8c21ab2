package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error. Stage names the pipeline
// step that failed for ingestion errors and is empty otherwise.
type DomainError struct {
	Code    string
	Stage   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	prefix := "[" + e.Code + "]"
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s/%s]", e.Code, e.Stage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so errors.Is works
// against the sentinel values below regardless of message or cause.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Stage:   stageForCode(code),
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Stage:   stageForCode(code),
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeEmptyDocument     = "EMPTY_DOCUMENT"
	ErrCodeExtractionFailed  = "EXTRACTION_FAILED"
	ErrCodeNoChunksProduced  = "NO_CHUNKS_PRODUCED"
	ErrCodeEmbeddingProvider = "EMBEDDING_PROVIDER"
	ErrCodeStorage           = "STORAGE_FAILED"
	ErrCodeNotFound          = "DOCUMENT_NOT_FOUND"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Ingestion stages
const (
	StageExtraction = "extraction"
	StageChunking   = "chunking"
	StageEmbedding  = "embedding"
	StageStorage    = "storage"
)

func stageForCode(code string) string {
	switch code {
	case ErrCodeUnsupportedFormat, ErrCodeEmptyDocument, ErrCodeExtractionFailed:
		return StageExtraction
	case ErrCodeNoChunksProduced:
		return StageChunking
	case ErrCodeEmbeddingProvider:
		return StageEmbedding
	case ErrCodeStorage:
		return StageStorage
	default:
		return ""
	}
}

var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupportedFormat, "unsupported document format")
	ErrEmptyDocument     = NewDomainError(ErrCodeEmptyDocument, "no text could be extracted from the file")
	ErrExtractionFailed  = NewDomainError(ErrCodeExtractionFailed, "every extraction backend failed")
	ErrNoChunksProduced  = NewDomainError(ErrCodeNoChunksProduced, "text produced zero chunks")
	ErrEmbeddingProvider = NewDomainError(ErrCodeEmbeddingProvider, "embedding provider request failed")
	ErrStorage           = NewDomainError(ErrCodeStorage, "vector store operation failed")
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrInvalidInput      = NewDomainError(ErrCodeInvalidInput, "invalid input")
	ErrUnauthorized      = NewDomainError(ErrCodeUnauthorized, "unauthorized")
)

// StageOf reports the failing pipeline stage carried by err, if any.
func StageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Stage
	}
	return ""
}
