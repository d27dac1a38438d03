// Package validate enforces the intake rules for uploaded files: a size
// ceiling and a fixed extension allow-list. Validation is pure and total;
// any input, including an empty name, yields a result rather than a panic.
package validate

import (
	"path/filepath"
	"strings"

	"github.com/tiervault/tiervault/pkg/errors"
	"github.com/tiervault/tiervault/pkg/types"
)

// Validator checks uploads against configured intake rules.
type Validator struct {
	maxSizeBytes int64
	allowedExts  map[string]bool
}

// New creates a validator. Extensions are matched case-insensitively and
// must include the leading dot.
func New(maxSizeBytes int64, allowedExtensions []string) *Validator {
	exts := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Validator{
		maxSizeBytes: maxSizeBytes,
		allowedExts:  exts,
	}
}

// Validate applies the intake rules in order: size first, then extension.
// The returned error, when non-nil, carries the rejection code and mirrors
// the Reason field of the result.
func (v *Validator) Validate(fileName string, sizeBytes int64) (types.ValidationResult, error) {
	if sizeBytes > v.maxSizeBytes {
		err := errors.Newf(errors.ErrCodeFileTooLarge,
			"file size %d exceeds limit of %d bytes", sizeBytes, v.maxSizeBytes).
			WithComponent("validator").WithContext("file", fileName)
		return types.ValidationResult{Accepted: false, Reason: string(errors.ErrCodeFileTooLarge)}, err
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || !v.allowedExts[ext] {
		err := errors.Newf(errors.ErrCodeUnsupportedType,
			"file type %q is not allowed", ext).
			WithComponent("validator").WithContext("file", fileName)
		return types.ValidationResult{Accepted: false, Reason: string(errors.ErrCodeUnsupportedType)}, err
	}

	return types.ValidationResult{Accepted: true}, nil
}
