package config

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/nao1215/overlayscan/internal/imageio"
	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/opacity"
	"github.com/nao1215/overlayscan/internal/pipeline"
	"github.com/nao1215/overlayscan/internal/scan"
)

// Default configuration values.
const (
	// DefaultWindowSize is the default window edge in pixels.
	// Windows much smaller than the watermark strokes give noisy histograms.
	DefaultWindowSize = scan.DefaultWindowSize

	// DefaultStepSize is the default stride between window origins.
	DefaultStepSize = scan.DefaultStepSize

	// DefaultBatchSize is the number of images scanned concurrently.
	// Each scan already fans out over rows, so this stays small.
	DefaultBatchSize = pipeline.DefaultConcurrency

	// DefaultMaxPairs limits the pair diagnostics kept per report.
	DefaultMaxPairs = pipeline.DefaultMaxPairs

	// DefaultMaxFileSize is the largest image file that is decoded.
	DefaultMaxFileSize = imageio.DefaultMaxFileSize

	// AppName is the application name used for XDG directory paths.
	AppName = "overlayscan"
)

// Config holds all configuration options for overlayscan.
// It is populated from CLI flags and passed through the application
// rather than kept in global state.
type Config struct {
	// Window is the scan window size.
	Window scan.Size

	// Step is the stride between neighbouring windows.
	// It must be strictly smaller than Window in both dimensions.
	Step scan.Size

	// Opacity is the searched candidate range in percent.
	Opacity opacity.Range

	// Workers is the number of rows evaluated concurrently per image.
	Workers int

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches the log handler to JSON.
	JSONLog bool

	// BatchSize is the number of images scanned concurrently.
	BatchSize int

	// ConfigFilePath is the path to the profile file.
	// If empty, .overlayscan is searched in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Profiles holds per-image overrides loaded from the profile file.
	Profiles *File

	// JSONReport enables JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// ShowPairs includes pair diagnostics in the report.
	ShowPairs bool

	// MaxPairs caps the recorded pair diagnostics. 0 means unlimited.
	MaxPairs int

	// MaxFileSize is the largest image file in bytes that is decoded.
	MaxFileSize int64

	// Targets is the list of image files to scan.
	Targets []string

	// DBDir is the directory of the scan history database.
	// Defaults to the XDG data directory (~/.local/share/overlayscan on Linux).
	DBDir string

	// SaveToDB stores scan results for later comparison.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Window:      scan.Square(DefaultWindowSize),
		Step:        scan.Square(DefaultStepSize),
		Opacity:     opacity.DefaultRange(),
		Workers:     runtime.GOMAXPROCS(0),
		BatchSize:   DefaultBatchSize,
		MaxPairs:    DefaultMaxPairs,
		MaxFileSize: DefaultMaxFileSize,
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for overlayscan.
// On Linux: ~/.local/share/overlayscan
// On macOS: ~/Library/Application Support/overlayscan
// On Windows: %LOCALAPPDATA%\overlayscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for overlayscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if err := validateGeometry(c.Window, c.Step); err != nil {
		return err
	}
	if err := c.Opacity.Validate(); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxPairs < 0 {
		return ErrInvalidMaxPairs
	}
	if c.MaxFileSize < 0 {
		return ErrInvalidMaxFileSize
	}
	return c.validateProfiles()
}

// validateProfiles checks the settings each target resolves to once its
// profile is applied to the command line values.
func (c *Config) validateProfiles() error {
	if c.Profiles == nil {
		return nil
	}
	for _, target := range c.Targets {
		s := c.SettingsFor(target)
		err := validateGeometry(s.Window, s.Step)
		if err == nil {
			err = s.Opacity.Validate()
		}
		if err != nil {
			return fmt.Errorf("%s (profile %q): %w", target, s.Profile, err)
		}
	}
	return nil
}

// validateGeometry checks a window and step pair.
func validateGeometry(window, step scan.Size) error {
	switch {
	case window.Height <= 0 || window.Width <= 0:
		return ErrInvalidWindow
	case step.Height <= 0 || step.Width <= 0:
		return ErrInvalidStep
	case step.Height >= window.Height || step.Width >= window.Width:
		return ErrStepNotSmallerThanWindow
	}
	return nil
}

// Settings returns the scan settings given on the command line.
func (c *Config) Settings() model.Settings {
	return model.Settings{
		Window:  c.Window,
		Step:    c.Step,
		Opacity: c.Opacity,
		Workers: c.Workers,
	}
}

// SettingsFor returns the settings for one image: the command line
// settings with the matching profile applied on top.
func (c *Config) SettingsFor(imagePath string) model.Settings {
	settings := c.Settings()
	if c.Profiles == nil {
		return settings
	}

	profile, name := c.Profiles.GetImageConfig(imagePath)
	return profile.Apply(settings, name)
}
