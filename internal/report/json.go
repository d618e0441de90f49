package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/overlayscan/internal/model"
)

// JSONWriter writes each report as one JSON document followed by a newline.
// Without indentation every report is a single line, so consecutive reports
// form a JSON Lines stream.
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent; every line after the first
// starts with prefix.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter. Output is compact by default.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write encodes the report.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	ensureSummary(report)
	return w.encode(report)
}

// encode writes v in a single Write call. Paths are not HTML-escaped.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent(w.prefix, w.indent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport is the versioned envelope written by FullJSONWriter.
type JSONReport struct {
	// Version is the overlayscan version that produced the report.
	Version string `json:"version"`

	Report *model.ScanReport `json:"report"`

	// Bins lists the non-empty opacity bins in ascending order.
	Bins []BinShare `json:"bins"`
}

// BinShare is an opacity bin with its share of all evaluated pairs.
type BinShare struct {
	Opacity int     `json:"opacity"`
	Count   int     `json:"count"`
	Share   float64 `json:"share"`
}

// NewJSONReport wraps report with version and bin shares.
func NewJSONReport(report *model.ScanReport, version string) *JSONReport {
	ensureSummary(report)
	return &JSONReport{Version: version, Report: report, Bins: binShares(report)}
}

// binShares returns the non-empty bins of the report's table with their
// share of all evaluated pairs.
func binShares(report *model.ScanReport) []BinShare {
	total := report.Table.Total()
	bins := report.Table.Bins()
	shares := make([]BinShare, len(bins))
	for i, b := range bins {
		shares[i] = BinShare{Opacity: b.Opacity, Count: b.Count}
		if total > 0 {
			shares[i].Share = float64(b.Count) / float64(total)
		}
	}
	return shares
}

// FullJSONWriter writes reports inside a JSONReport envelope.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a FullJSONWriter stamping reports with version.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write encodes the report envelope.
func (w *FullJSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.encode(NewJSONReport(report, w.version))
}
