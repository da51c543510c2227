package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch = errors.New("checksum mismatch: file may be corrupted")
	ErrOutOfBounds      = errors.New("tensor extends beyond data section")
	ErrOffsetOverlap    = errors.New("tensor offsets overlap")
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
	ErrUnsupportedDType = errors.New("unsupported dtype")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrMissingTensor    = errors.New("missing tensor")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Err     error  // One of the sentinels above
	Tensor  string // Tensor name involved, if any
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel so errors.Is works.
func (e *ValidationError) Unwrap() error { return e.Err }
