package errors

import (
	stderr "errors"
)

// CodeOf extracts the structured error code from err, or ErrCodeInternalError
// when err carries no pipeline error in its chain.
func CodeOf(err error) ErrorCode {
	var pipeErr *PipelineError
	if stderr.As(err, &pipeErr) {
		return pipeErr.Code
	}
	return ErrCodeInternalError
}

// IsCode reports whether err carries the given structured code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// HTTPStatusOf extracts the HTTP status hint from err, walking the error
// chain, or 500 when err carries no pipeline error.
func HTTPStatusOf(err error) int {
	var pipeErr *PipelineError
	if stderr.As(err, &pipeErr) {
		return pipeErr.HTTPStatus
	}
	return 500
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var pipeErr *PipelineError
	if stderr.As(err, &pipeErr) {
		return pipeErr.Retryable
	}
	return false
}

// Wrap creates a new pipeline error around cause, preserving the chain.
func Wrap(code ErrorCode, message string, cause error) *PipelineError {
	return New(code, message).WithCause(cause)
}
