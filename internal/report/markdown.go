package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/overlayscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	summary := ensureSummary(report)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSettings(md, report)
	w.writeSummary(md, report, summary)
	w.writeTable(md, report)
	w.writeMetadata(md, report)
	w.writeDiagnostics(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with image information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Overlay Scan Report")
	md.PlainText("")

	rows := [][]string{
		{"Image", "`" + report.ImagePath + "`"},
	}
	if report.Width > 0 {
		rows = append(rows,
			[]string{"Dimensions", fmt.Sprintf("%dx%d", report.Width, report.Height)},
			[]string{"Format", report.Format},
			[]string{"File Size", strconv.FormatInt(report.FileSize, 10) + " bytes"},
		)
	}
	if report.Fingerprint != "" {
		rows = append(rows, []string{"Fingerprint", "`" + shortFingerprint(report.Fingerprint) + "`"})
	}
	rows = append(rows,
		[]string{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
		[]string{"Status", w.getStatusText(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.ScanReport) string {
	switch {
	case report.Cancelled:
		return "⚠️ " + statusText(report)
	case report.Failed():
		return "❌ " + statusText(report)
	default:
		return "✅ " + statusText(report)
	}
}

// writeSettings writes the scan parameters.
func (w *MarkdownWriter) writeSettings(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Settings")
	md.PlainText("")

	s := report.Settings
	rows := [][]string{
		{"Window", s.Window.String()},
		{"Step", s.Step.String()},
		{"Opacity Range", s.Opacity.String()},
		{"Windows", fmt.Sprintf("%d (%d x %d)", report.Windows, report.Rows, report.Cols)},
		{"Elapsed", report.Elapsed.String()},
	}
	if s.Profile != "" {
		rows = append(rows, []string{"Profile", "`" + s.Profile + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Setting", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the detection summary, pie chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScanReport, summary *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	dominant := "-"
	mean := "-"
	if summary.HasDominant {
		dominant = strconv.Itoa(summary.Dominant) + "%"
		mean = fmt.Sprintf("%.1f%% ± %.1f", summary.Mean, summary.StdDev)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Evaluated Pairs", strconv.Itoa(summary.Total)},
			{"Detected Pairs", strconv.Itoa(summary.Detected)},
			{"Detection Ratio", percent(summary.DetectionRatio)},
			{"Dominant Opacity", dominant},
			{"Mean Opacity", mean},
			{"Level", titleCase(summary.LevelText)},
		},
	})
	md.PlainText("")

	if summary.Detected > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the detected opacities.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.ScanReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Detected Opacity Distribution"),
		piechart.WithShowData(true),
	)

	for _, b := range report.Table.Bins() {
		if b.Opacity == 0 {
			continue
		}
		chart.LabelAndIntValue(strconv.Itoa(b.Opacity)+"%", uint64(b.Count)) //nolint:gosec // counts are non-negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the detection level.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch summary.Level {
	case model.LevelHigh:
		md.Warningf(
			"Overlay likely. %s of window pairs fit better after removing a %d%% overlay.",
			percent(summary.DetectionRatio), summary.Dominant,
		)
	case model.LevelModerate:
		md.Importantf(
			"Possible overlay. %d window pair(s) fit better after de-blending.",
			summary.Detected,
		)
	case model.LevelLow:
		md.Note("Only isolated window pairs improved; this is typical of natural texture.")
	default:
		md.Tip("No overlay evidence found.")
	}
	md.PlainText("")
}

// writeTable writes the opacity frequency table.
func (w *MarkdownWriter) writeTable(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Opacity Frequency")
	md.PlainText("")

	shares := binShares(report)
	if len(shares) == 0 {
		md.PlainText("No window pairs were evaluated.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(shares))
	for i, b := range shares {
		label := strconv.Itoa(b.Opacity) + "%"
		if b.Opacity == 0 {
			label = "none"
		}
		rows[i] = []string{label, strconv.Itoa(b.Count), percent(b.Share)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Opacity", "Pairs", "Share"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeMetadata writes the EXIF metadata table.
func (w *MarkdownWriter) writeMetadata(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Metadata) == 0 {
		return
	}

	md.H2("Metadata")
	md.PlainText("")

	keys := make([]string, 0, len(report.Metadata))
	for k := range report.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, truncateString(report.Metadata[k], 60)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Tag", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDiagnostics writes the pair diagnostics table.
func (w *MarkdownWriter) writeDiagnostics(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Diagnostics) == 0 {
		return
	}

	md.H2("Pair Diagnostics")
	md.PlainText("")

	rows := make([][]string, len(report.Diagnostics))
	for i, d := range report.Diagnostics {
		levels := "-"
		if d.Levels != nil {
			levels = fmt.Sprintf("%d..%d", d.Levels.Low, d.Levels.High)
		}
		rows[i] = []string{
			strconv.Itoa(d.Index),
			titleCase(d.Direction),
			fmt.Sprintf("(%d,%d)", d.Reference.Row, d.Reference.Col),
			fmt.Sprintf("(%d,%d)", d.Target.Row, d.Target.Col),
			strconv.Itoa(d.Opacity) + "%",
			fmt.Sprintf("%.3f", d.BaselineScore),
			fmt.Sprintf("%.3f", d.Score),
			levels,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Direction", "Reference", "Target", "Opacity", "Baseline", "Score", "Levels"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.DiagnosticsTruncated {
		md.Note("More pairs were detected than recorded. Raise --max-pairs to see them all.")
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by overlayscan*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
