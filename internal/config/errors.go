package config

import (
	"errors"

	"github.com/nao1215/overlayscan/internal/opacity"
)

// Configuration validation errors returned by Config.Validate.
// Callers can use errors.Is for programmatic handling.
var (
	// ErrNoTarget is returned when no image is given.
	ErrNoTarget = errors.New("no target specified: provide at least one image file")

	// ErrInvalidWindow is returned when the window size is not positive.
	ErrInvalidWindow = errors.New("invalid window size: height and width must be positive")

	// ErrInvalidStep is returned when the step is not positive.
	ErrInvalidStep = errors.New("invalid step: height and width must be positive")

	// ErrStepNotSmallerThanWindow is returned when neighbouring windows would
	// not overlap.
	ErrStepNotSmallerThanWindow = errors.New("invalid step: must be smaller than the window in both dimensions")

	// ErrInvalidOpacityRange is returned when the opacity bounds are outside
	// 1..99 or inverted. It is the opacity package's sentinel, so the
	// returned error also carries the rejected bounds.
	ErrInvalidOpacityRange = opacity.ErrInvalidRange

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxPairs is returned when the diagnostics limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPairs = errors.New("invalid max pairs: must be non-negative")

	// ErrInvalidMaxFileSize is returned when the file size limit is negative.
	ErrInvalidMaxFileSize = errors.New("invalid max file size: must be non-negative")

	// ErrInvalidSize is returned by ParseSize for malformed input.
	ErrInvalidSize = errors.New("invalid size: expected N or HEIGHTxWIDTH with positive integers")
)
