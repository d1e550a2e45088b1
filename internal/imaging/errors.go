// Package imaging computes colorimetric differences between creative
// screenshots and renders diagnostic images of those differences.
package imaging

import (
	"fmt"
	"image"
)

// DecodeError represents an image file that could not be read or decoded.
type DecodeError struct {
	Path  string
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("decode error: %s", e.Path)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// DimensionMismatchError is returned by the spatial diff when the two images
// do not share pixel dimensions.
type DimensionMismatchError struct {
	A image.Point
	B image.Point
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch error: %dx%d vs %dx%d", e.A.X, e.A.Y, e.B.X, e.B.Y)
}
