package model

import (
	"image"
	"time"

	"github.com/nao1215/overlayscan/internal/opacity"
)

// ScanReport is the result of scanning one image.
// It carries everything the report writers and the scan history need.
//
// The decoded image is kept in memory for the scan step only and is never
// serialized.
type ScanReport struct {
	// === Image ===

	// ImagePath is the scanned file.
	ImagePath string `json:"image_path"`

	// Format is the decoder name (png, jpeg, ...).
	Format string `json:"format,omitempty"`

	// Width and Height are the image dimensions in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// FileSize is the encoded size in bytes.
	FileSize int64 `json:"file_size"`

	// Fingerprint is the hex SHA3-256 digest of the file contents.
	// Identical files share a fingerprint regardless of their path.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Metadata holds selected EXIF tags (Software, Artist, Copyright, ...).
	Metadata map[string]string `json:"metadata,omitempty"`

	// Image is the decoded image; set by the load step.
	Image image.Image `json:"-"`

	// DateScanned is when the scan started.
	DateScanned time.Time `json:"date_scanned"`

	// === Scan ===

	// Settings are the effective scan parameters for this image.
	Settings Settings `json:"settings"`

	// Table is the opacity frequency table.
	Table opacity.FrequencyTable `json:"opacity_table"`

	// Rows and Cols are the number of window origins per dimension.
	Rows int `json:"rows"`
	Cols int `json:"cols"`

	// Windows is the number of windows whose histogram was computed.
	Windows int `json:"windows"`

	// Pairs is the number of evaluated neighbour pairs.
	Pairs int `json:"pairs"`

	// Elapsed is the wall time of the window scan.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Summary condenses the table; set by the summary step.
	Summary *Summary `json:"summary,omitempty"`

	// Diagnostics lists pairs with a non-zero opacity when requested.
	Diagnostics []PairDiagnostic `json:"diagnostics,omitempty"`

	// DiagnosticsTruncated is true if more pairs were detected than recorded.
	DiagnosticsTruncated bool `json:"diagnostics_truncated,omitempty"`

	// === Scan State ===

	// Cancelled is true if the scan was interrupted before all steps ran.
	Cancelled bool `json:"cancelled,omitempty"`

	// Steps lists the pipeline steps that ran, in order.
	Steps []StepRecord `json:"steps,omitempty"`

	// Error contains any error that occurred during scanning.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// StepRecord is one executed pipeline step.
type StepRecord struct {
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Error   string        `json:"error,omitempty"`
}

// NewScanReport creates a new report for the given image path.
func NewScanReport(imagePath string) *ScanReport {
	return &ScanReport{
		ImagePath:   imagePath,
		DateScanned: time.Now(),
		Metadata:    make(map[string]string),
	}
}

// SetError records err on the report. A nil err clears the error.
func (r *ScanReport) SetError(err error) {
	r.Error = err
	if err == nil {
		r.ErrorMessage = ""
		return
	}
	r.ErrorMessage = err.Error()
}

// Failed reports whether the scan ended with an error.
func (r *ScanReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// AddDiagnostic appends d unless limit diagnostics are already recorded.
// A non-positive limit means no limit. It reports whether d was kept.
func (r *ScanReport) AddDiagnostic(d PairDiagnostic, limit int) bool {
	if limit > 0 && len(r.Diagnostics) >= limit {
		r.DiagnosticsTruncated = true
		return false
	}
	r.Diagnostics = append(r.Diagnostics, d)
	return true
}

// StepNames returns the names of the steps that ran.
func (r *ScanReport) StepNames() []string {
	names := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		names[i] = s.Name
	}
	return names
}
