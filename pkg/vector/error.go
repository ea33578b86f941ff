package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when vectors or rows disagree on length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrOutOfRange is returned when a row index falls outside a Matrix.
	ErrOutOfRange = errors.New("row index out of range")

	// ErrBlob is returned when an embedding blob cannot be decoded.
	ErrBlob = errors.New("invalid embedding blob")
)
