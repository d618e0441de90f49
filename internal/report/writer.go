package report

import (
	"fmt"
	"io"

	"github.com/nao1215/overlayscan/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer renders a scan report and returns the number of bytes written.
type Writer interface {
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter renders one report through several Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a MultiWriter over writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write sums the bytes of every writer and stops at the first error.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	written := 0
	for _, w := range m.writers {
		n, err := w.Write(report)
		written += n
		if err != nil {
			return written, fmt.Errorf("multi writer: %w", err)
		}
	}
	return written, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// ensureSummary computes the summary if no pipeline step did.
func ensureSummary(report *model.ScanReport) *model.Summary {
	if report.Summary == nil {
		report.Summary = model.NewSummary(&report.Table)
	}
	return report.Summary
}

// titleCase returns s with the first letter of each word in upper case.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// statusText returns a one-line status for the report.
func statusText(report *model.ScanReport) string {
	switch {
	case report.Cancelled:
		return "Cancelled (partial results)"
	case report.Failed():
		return "Error - " + report.ErrorMessage
	default:
		return "Complete"
	}
}

// percent formats a ratio in [0, 1] as a percentage.
func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// shortFingerprint returns the first 16 characters of a fingerprint.
func shortFingerprint(fp string) string {
	if len(fp) <= 16 {
		return fp
	}
	return fp[:16]
}
