// Package errors defines the typed error taxonomy shared by the ingestion
// and query pipelines.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeExtraction covers page/file/URL-scoped extraction failures.
	// These are non-fatal: the pipeline skips the item and continues.
	ErrorTypeExtraction ErrorType = "extraction"

	// ErrorTypeBackendUnavailable covers network errors, non-2xx responses
	// and timeouts from a language-model backend. Triggers failover.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"

	// ErrorTypeBackendMalformed covers responses that arrived but could not
	// be decoded into the expected payload. Treated like unavailability.
	ErrorTypeBackendMalformed ErrorType = "backend_malformed_response"

	// ErrorTypeIndexUnavailable covers vector index failures. Fatal for the
	// current request only, surfaced to the caller without silent retries.
	ErrorTypeIndexUnavailable ErrorType = "index_unavailable"

	// ErrorTypeConfiguration covers startup-time failures: unknown provider
	// names, missing credentials, invalid parameter combinations.
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError is the concrete error type carried across package
// boundaries. Callers match on Type via errors.As or the helper predicates.
type PipelineError struct {
	Type      ErrorType
	Operation string // e.g. "extract_pdf", "generate", "similarity_search"
	Source    string // file path, URL or backend name the error is scoped to
	Message   string
	Cause     error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
	if e.Source != "" {
		msg = fmt.Sprintf("[%s] %s (%s): %s", e.Type, e.Operation, e.Source, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches two PipelineErrors by type, so comparisons like
// errors.Is(err, &PipelineError{Type: ErrorTypeBackendUnavailable}) work.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Type == pe.Type
	}
	return false
}

// NewExtractionError creates a non-fatal extraction failure scoped to a
// single page, file or URL.
func NewExtractionError(operation, source, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:      ErrorTypeExtraction,
		Operation: operation,
		Source:    source,
		Message:   message,
		Cause:     cause,
	}
}

// NewBackendUnavailableError creates a failover-triggering backend failure.
func NewBackendUnavailableError(backend, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:      ErrorTypeBackendUnavailable,
		Operation: "generate",
		Source:    backend,
		Message:   message,
		Cause:     cause,
	}
}

// NewBackendMalformedError creates an error for a backend response that
// arrived but could not be decoded.
func NewBackendMalformedError(backend, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:      ErrorTypeBackendMalformed,
		Operation: "generate",
		Source:    backend,
		Message:   message,
		Cause:     cause,
	}
}

// NewIndexUnavailableError creates a vector index failure for the current
// request.
func NewIndexUnavailableError(operation, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:      ErrorTypeIndexUnavailable,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewConfigurationError creates a startup-time configuration failure.
func NewConfigurationError(setting, message string) *PipelineError {
	return &PipelineError{
		Type:      ErrorTypeConfiguration,
		Operation: "configure",
		Source:    setting,
		Message:   message,
	}
}

// IsExtraction reports whether err is an extraction failure.
func IsExtraction(err error) bool { return hasType(err, ErrorTypeExtraction) }

// IsBackendUnavailable reports whether err marks a backend as unusable.
// Malformed responses count: they are treated like unavailability for
// failover purposes.
func IsBackendUnavailable(err error) bool {
	return hasType(err, ErrorTypeBackendUnavailable) || hasType(err, ErrorTypeBackendMalformed)
}

// IsIndexUnavailable reports whether err is a vector index failure.
func IsIndexUnavailable(err error) bool { return hasType(err, ErrorTypeIndexUnavailable) }

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool { return hasType(err, ErrorTypeConfiguration) }

func hasType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}
