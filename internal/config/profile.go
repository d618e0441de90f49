package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/opacity"
	"github.com/nao1215/overlayscan/internal/scan"
)

// ImageConfig holds scan overrides for images matching a pattern.
// Zero values mean "not set" and fall back to the defaults section,
// then to the command line.
type ImageConfig struct {
	// Window overrides the window size, e.g. "40x40" or "32".
	Window string `yaml:"window,omitempty"`

	// Step overrides the stride between windows.
	Step string `yaml:"step,omitempty"`

	// OpacityMin overrides the lowest searched opacity.
	OpacityMin int `yaml:"opacityMin,omitempty"`

	// OpacityMax overrides the highest searched opacity.
	OpacityMax int `yaml:"opacityMax,omitempty"`
}

// File represents the structure of the .overlayscan profile file.
type File struct {
	// Images maps glob patterns to image-specific overrides.
	// A pattern matches either the full path or the base name.
	Images map[string]ImageConfig `yaml:"images,omitempty"`

	// Defaults applies to every image unless overridden by a pattern.
	Defaults ImageConfig `yaml:"defaults,omitempty"`
}

// matchPattern finds the pattern for an image. An exact path key wins;
// otherwise the lexically first matching glob is used.
func (cf *File) matchPattern(imagePath string) (string, bool) {
	if _, ok := cf.Images[imagePath]; ok {
		return imagePath, true
	}

	patterns := make([]string, 0, len(cf.Images))
	for p := range cf.Images {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	base := filepath.Base(imagePath)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, imagePath); ok {
			return p, true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return p, true
		}
	}
	return "", false
}

// GetImageConfig returns the configuration for an image merged with the
// defaults, along with the name of the matched pattern ("" if none).
func (cf *File) GetImageConfig(imagePath string) (ImageConfig, string) {
	result := cf.Defaults

	pattern, ok := cf.matchPattern(imagePath)
	if !ok {
		return result, ""
	}

	return result.merge(cf.Images[pattern]), pattern
}

// merge returns ic with the fields set in override replaced.
func (ic ImageConfig) merge(override ImageConfig) ImageConfig {
	if override.Window != "" {
		ic.Window = override.Window
	}
	if override.Step != "" {
		ic.Step = override.Step
	}
	if override.OpacityMin != 0 {
		ic.OpacityMin = override.OpacityMin
	}
	if override.OpacityMax != 0 {
		ic.OpacityMax = override.OpacityMax
	}
	return ic
}

// Apply overlays the set fields on settings. Sizes that fail to parse are
// left unchanged; Validate reports them when the file is loaded.
func (ic ImageConfig) Apply(settings model.Settings, profile string) model.Settings {
	if size, err := ParseSize(ic.Window); err == nil {
		settings.Window = size
	}
	if size, err := ParseSize(ic.Step); err == nil {
		settings.Step = size
	}
	if ic.OpacityMin != 0 {
		settings.Opacity.Min = ic.OpacityMin
	}
	if ic.OpacityMax != 0 {
		settings.Opacity.Max = ic.OpacityMax
	}
	settings.Profile = profile
	return settings
}

// validate checks the sizes of ic and, where both sides of a constraint are
// set, that the step is smaller than the window and the opacity range is
// valid. Unset fields come from the command line and are checked there.
func (ic ImageConfig) validate() error {
	var window, step scan.Size
	var err error
	if ic.Window != "" {
		if window, err = ParseSize(ic.Window); err != nil {
			return fmt.Errorf("window: %w", err)
		}
	}
	if ic.Step != "" {
		if step, err = ParseSize(ic.Step); err != nil {
			return fmt.Errorf("step: %w", err)
		}
	}
	if !window.IsZero() && !step.IsZero() {
		if err := validateGeometry(window, step); err != nil {
			return fmt.Errorf("step %s, window %s: %w", step, window, err)
		}
	}
	if ic.OpacityMin != 0 && ic.OpacityMax != 0 {
		if err := (opacity.Range{Min: ic.OpacityMin, Max: ic.OpacityMax}).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the defaults and every image entry merged with them.
func (cf *File) Validate() error {
	if err := cf.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for pattern, ic := range cf.Images {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("images: bad pattern %q: %w", pattern, err)
		}
		if err := cf.Defaults.merge(ic).validate(); err != nil {
			return fmt.Errorf("images.%s: %w", pattern, err)
		}
	}
	return nil
}

// ParseSize parses "N" as an N by N size and "HxW" as height H and width W.
func ParseSize(s string) (scan.Size, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return scan.Size{}, ErrInvalidSize
	}

	h, w, found := strings.Cut(s, "x")
	if !found {
		w = h
	}

	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return scan.Size{}, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return scan.Size{}, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	return scan.Size{Height: height, Width: width}, nil
}
