package imageio

import "errors"

var (
	// ErrUnsupportedFormat is returned when no registered decoder recognises
	// the image data.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrTooLarge is returned when the image file exceeds the size limit.
	ErrTooLarge = errors.New("image file too large")

	// ErrEmpty is returned when the image has no pixels.
	ErrEmpty = errors.New("image has no pixels")
)
