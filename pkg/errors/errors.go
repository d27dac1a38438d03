// Package errors provides a structured error system for TierVault with error codes, categories, and context.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for TierVault operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Validation Errors
	ErrCodeFileTooLarge     ErrorCode = "FILE_TOO_LARGE"
	ErrCodeUnsupportedType  ErrorCode = "UNSUPPORTED_TYPE"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Storage Errors
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeObjectNotFound   ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBucketNotFound   ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeStorageWrite     ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageRead      ErrorCode = "STORAGE_READ"

	// Integrity Errors
	ErrCodeDigestMismatch    ErrorCode = "DIGEST_MISMATCH"
	ErrCodeCompressionFailed ErrorCode = "COMPRESSION_FAILED"

	// Secret Errors
	ErrCodeSecretNotFound ErrorCode = "SECRET_NOT_FOUND"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"

	// Configuration Errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"

	// Operation Errors
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryStorage       ErrorCategory = "storage"
	CategoryIntegrity     ErrorCategory = "integrity"
	CategorySecrets       ErrorCategory = "secrets"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// PipelineError represents a structured error with context and metadata.
type PipelineError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *PipelineError) Is(target error) bool {
	if pipeErr, ok := target.(*PipelineError); ok {
		return e.Code == pipeErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *PipelineError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}

	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("PipelineError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *PipelineError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// New creates a new pipeline error with default values derived from the code.
func New(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// Newf creates a new pipeline error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *PipelineError {
	return New(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeFileTooLarge, ErrCodeUnsupportedType, ErrCodeValidationFailed:
		return CategoryValidation
	case ErrCodeStoreUnavailable, ErrCodeObjectNotFound, ErrCodeBucketNotFound,
		ErrCodeStorageWrite, ErrCodeStorageRead:
		return CategoryStorage
	case ErrCodeDigestMismatch, ErrCodeCompressionFailed:
		return CategoryIntegrity
	case ErrCodeSecretNotFound, ErrCodeAccessDenied:
		return CategorySecrets
	case ErrCodeInvalidConfig, ErrCodeConfigLoad:
		return CategoryConfiguration
	case ErrCodeOperationCanceled, ErrCodeRetryExhausted:
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeStoreUnavailable: true,
		ErrCodeStorageWrite:     true,
		ErrCodeStorageRead:      true,
	}
	return retryableCodes[code]
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	userFacingCodes := map[ErrorCode]bool{
		ErrCodeFileTooLarge:     true,
		ErrCodeUnsupportedType:  true,
		ErrCodeValidationFailed: true,
		ErrCodeObjectNotFound:   true,
		ErrCodeAccessDenied:     true,
		ErrCodeInvalidConfig:    true,
	}
	return userFacingCodes[code]
}

// GetDefaultHTTPStatus returns the default HTTP status for an error code.
func GetDefaultHTTPStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]int{
		ErrCodeFileTooLarge:      400,
		ErrCodeUnsupportedType:   400,
		ErrCodeValidationFailed:  400,
		ErrCodeInvalidConfig:     400,
		ErrCodeAccessDenied:      403,
		ErrCodeObjectNotFound:    404,
		ErrCodeBucketNotFound:    404,
		ErrCodeSecretNotFound:    404,
		ErrCodeInternalError:     500,
		ErrCodeStoreUnavailable:  503,
		ErrCodeStorageRead:       503,
		ErrCodeStorageWrite:      503,
		ErrCodeOperationCanceled: 503,
	}

	if status, ok := statusMap[code]; ok {
		return status
	}
	return 500
}

// WithContext adds contextual information to an error
func (e *PipelineError) WithContext(key, value string) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *PipelineError) WithComponent(component string) *PipelineError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *PipelineError) WithOperation(operation string) *PipelineError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}
