package compute

import "errors"

// Common errors for compute kernels
var (
	ErrLengthMismatch   = errors.New("arrays have mismatched lengths")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	ErrInvalidWindow    = errors.New("invalid window size")
)
