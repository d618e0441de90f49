package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nao1215/overlayscan/internal/model"
)

// barWidth is the length of the longest bar in the opacity table.
const barWidth = 40

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display: plain ASCII sections and
// a bar chart of the opacity frequency table.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no content are shown.
	showEmpty bool

	// verbose enables the pair diagnostics section.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with pair diagnostics.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	summary := ensureSummary(report)

	var sb strings.Builder

	w.writeHeader(&sb, report)
	if !report.Failed() || report.Pairs > 0 {
		w.writeSettings(&sb, report)
		w.writeSummary(&sb, summary)
		w.writeTable(&sb, report)
	}
	w.writeMetadata(&sb, report)
	if w.verbose {
		w.writeDiagnostics(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with image information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       OVERLAYSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Image:          %s\n", report.ImagePath)
	if report.Width > 0 {
		fmt.Fprintf(sb, "Dimensions:     %dx%d (%s, %d bytes)\n", report.Width, report.Height, report.Format, report.FileSize)
	}
	if report.Fingerprint != "" {
		fmt.Fprintf(sb, "Fingerprint:    %s\n", shortFingerprint(report.Fingerprint))
	}
	fmt.Fprintf(sb, "Scan Date:      %s\n", report.DateScanned.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSettings writes the effective scan parameters.
func (w *SimpleWriter) writeSettings(sb *strings.Builder, report *model.ScanReport) {
	writeSection(sb, "SETTINGS")

	s := report.Settings
	fmt.Fprintf(sb, "  Window:       %s\n", s.Window)
	fmt.Fprintf(sb, "  Step:         %s\n", s.Step)
	fmt.Fprintf(sb, "  Opacity:      %s\n", s.Opacity)
	if s.Profile != "" {
		fmt.Fprintf(sb, "  Profile:      %s\n", s.Profile)
	}
	fmt.Fprintf(sb, "  Windows:      %d (%d rows x %d cols)\n", report.Windows, report.Rows, report.Cols)
	fmt.Fprintf(sb, "  Elapsed:      %s\n", report.Elapsed)
	sb.WriteString("\n")
}

// writeSummary writes the detection summary.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.Summary) {
	writeSection(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Pairs:        %d\n", summary.Total)
	fmt.Fprintf(sb, "  Detected:     %d (%s)\n", summary.Detected, percent(summary.DetectionRatio))
	if summary.HasDominant {
		fmt.Fprintf(sb, "  Dominant:     %d%%\n", summary.Dominant)
		fmt.Fprintf(sb, "  Mean:         %.1f%% (stddev %.1f)\n", summary.Mean, summary.StdDev)
	} else {
		sb.WriteString("  Dominant:     none\n")
	}
	fmt.Fprintf(sb, "  Level:        %s\n", summary.Level)
	sb.WriteString("\n")
}

// writeTable writes the opacity frequency table as a bar chart.
func (w *SimpleWriter) writeTable(sb *strings.Builder, report *model.ScanReport) {
	bins := report.Table.Bins()
	if len(bins) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "OPACITY FREQUENCY")

	if len(bins) == 0 {
		sb.WriteString("  No pairs evaluated\n\n")
		return
	}

	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}

	for _, b := range bins {
		n := b.Count * barWidth / peak
		if n == 0 {
			n = 1
		}
		label := fmt.Sprintf("%3d%%", b.Opacity)
		if b.Opacity == 0 {
			label = "none"
		}
		fmt.Fprintf(sb, "  %s | %-*s %d\n", label, barWidth, strings.Repeat("#", n), b.Count)
	}
	sb.WriteString("\n")
}

// writeMetadata writes the EXIF metadata section.
func (w *SimpleWriter) writeMetadata(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Metadata) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "METADATA")

	if len(report.Metadata) == 0 {
		sb.WriteString("  No metadata\n\n")
		return
	}

	keys := make([]string, 0, len(report.Metadata))
	for k := range report.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(sb, "  %-14s%s\n", k+":", report.Metadata[k])
	}
	sb.WriteString("\n")
}

// writeDiagnostics writes the recorded pair diagnostics.
func (w *SimpleWriter) writeDiagnostics(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Diagnostics) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PAIR DIAGNOSTICS")

	if len(report.Diagnostics) == 0 {
		sb.WriteString("  No pairs with a detected opacity\n\n")
		return
	}

	for _, d := range report.Diagnostics {
		fmt.Fprintf(sb, "  #%-5d %-10s (%d,%d)->(%d,%d)  opacity %3d%%  score %.3f -> %.3f",
			d.Index, titleCase(d.Direction),
			d.Reference.Row, d.Reference.Col, d.Target.Row, d.Target.Col,
			d.Opacity, d.BaselineScore, d.Score,
		)
		if d.Levels != nil {
			fmt.Fprintf(sb, "  levels %d..%d", d.Levels.Low, d.Levels.High)
		}
		sb.WriteString("\n")
	}
	if report.DiagnosticsTruncated {
		sb.WriteString("  ... more pairs omitted\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by overlayscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
