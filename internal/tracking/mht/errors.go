package mht

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrShapeMismatch is wrapped by every *ShapeError.
	ErrShapeMismatch = errors.New("input shape mismatch")

	// ErrSearchTruncated is returned alongside a valid, partial FrameResult
	// when the node budget or the context deadline stopped tree construction.
	ErrSearchTruncated = errors.New("hypothesis search truncated")

	// ErrMarginalUnderflow is returned when Σ exp(log-likelihood) over the
	// hypothesis set is zero or not finite, so marginal weights are undefined.
	ErrMarginalUnderflow = errors.New("marginal normalization underflow")
)

// ShapeError reports inconsistent input dimensions. Index is -1 when the
// error concerns a whole slice rather than one element.
type ShapeError struct {
	Field string
	Index int
	Want  string
	Got   string
}

func (e *ShapeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: want %s, got %s", ErrShapeMismatch, e.Field, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: %s[%d]: want %s, got %s", ErrShapeMismatch, e.Field, e.Index, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

func itoa(v int) string { return strconv.Itoa(v) }

func dims(r, c int) string { return strconv.Itoa(r) + "x" + strconv.Itoa(c) }
