package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches errors by code so wrapped instances compare equal to the
// package-level sentinels.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnsupportedType     = "UNSUPPORTED_TYPE"
	ErrCodeExtractionFailure   = "EXTRACTION_FAILURE"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeInvalidOperation    = "INVALID_OPERATION"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrFileTooLarge         = NewDomainError(ErrCodeValidation, "file exceeds maximum allowed size")
	ErrEmptyFile            = NewDomainError(ErrCodeValidation, "file is empty")
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors. An owner mismatch is reported identically to a missing
// record so one user can never probe for another user's documents.
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrExchangeNotFound = NewDomainError(ErrCodeNotFound, "chat exchange not found")
)

// Pipeline errors
var (
	ErrUnsupportedFileType   = NewDomainError(ErrCodeUnsupportedType, "unsupported file type")
	ErrExtractionFailed      = NewDomainError(ErrCodeExtractionFailure, "text extraction failed")
	ErrEmbeddingUnavailable  = NewDomainError(ErrCodeProviderUnavailable, "embedding provider unavailable")
	ErrGenerationUnavailable = NewDomainError(ErrCodeProviderUnavailable, "generation provider unavailable")
)

// Configuration errors
var (
	ErrInvalidChunkConfig = NewDomainError(ErrCodeConfiguration, "chunk overlap must be smaller than chunk size")
)

// Operation errors
var (
	ErrDocumentInFlight = NewDomainError(ErrCodeInvalidOperation, "document is currently being processed")

	// ErrDocumentStale signals that a document left the processing state
	// (deleted or re-queued) while the pipeline was still working on it.
	ErrDocumentStale = NewDomainError(ErrCodeInvalidOperation, "document state changed during processing")
)

// IsRetryable reports whether an error represents a transient provider
// failure that the pipeline should retry before failing the document.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == ErrCodeProviderUnavailable
	}
	return false
}
