package scan

import "errors"

var (
	// ErrInvalidWindow is returned when the window size is not positive.
	ErrInvalidWindow = errors.New("invalid window size: height and width must be positive")

	// ErrInvalidStep is returned when the step is not positive.
	ErrInvalidStep = errors.New("invalid step: height and width must be positive")

	// ErrStepNotSmallerThanWindow is returned when the step is not strictly
	// smaller than the window in both dimensions. Neighbouring windows would
	// not overlap and their content would not be comparable.
	ErrStepNotSmallerThanWindow = errors.New("step must be smaller than the window size in both dimensions")

	// ErrNilImage is returned when Scan is called without an image.
	ErrNilImage = errors.New("no image to scan")
)
