package model

import (
	"github.com/nao1215/overlayscan/internal/opacity"
	"github.com/nao1215/overlayscan/internal/scan"
)

// Settings are the scan parameters applied to one image.
type Settings struct {
	// Window is the window size.
	Window scan.Size `json:"window"`

	// Step is the stride between window origins.
	Step scan.Size `json:"step"`

	// Opacity is the searched opacity range.
	Opacity opacity.Range `json:"opacity"`

	// Workers is the per-row parallelism of the scan.
	Workers int `json:"workers"`

	// Profile names the profile pattern that matched the image, if any.
	Profile string `json:"profile,omitempty"`
}

// DefaultSettings returns the default scan parameters.
func DefaultSettings() Settings {
	return Settings{
		Window:  scan.Square(scan.DefaultWindowSize),
		Step:    scan.Square(scan.DefaultStepSize),
		Opacity: opacity.DefaultRange(),
		Workers: 1,
	}
}
