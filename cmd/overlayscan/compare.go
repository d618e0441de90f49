package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/overlayscan/internal/config"
	"github.com/nao1215/overlayscan/internal/database"
	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/opacity"
	"github.com/spf13/cobra"
)

// Directions of the overlay change between two scans.
const (
	overlayDirectionIncreased = "increased"
	overlayDirectionDecreased = "decreased"
	overlayDirectionUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [image]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the latest and an earlier scan of an image.

It shows:
- How many window pairs selected each opacity in both scans
- Whether the dominant opacity changed
- Whether the image content or the scan settings changed in between

The comparison requires at least two scans in the database for the image.
Use 'overlayscan scan' to perform scans and save results.

Examples:
  # Compare latest two scans of an image
  overlayscan compare photo.png

  # List all scan history for an image
  overlayscan compare --list photo.png

  # Compare with a specific historical scan by ID
  overlayscan compare --with-scan-id 5 photo.png

  # Compare with the first scan on or after a date
  overlayscan compare --since 2025-01-01 photo.png

  # Output comparison in JSON format
  overlayscan compare --json photo.png

  # List all scanned images in the database
  overlayscan compare --list-images`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified image")
	cmd.Flags().BoolP("list-images", "L", false,
		"List all scanned images in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan on or after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", "",
		"Scan history directory (default: XDG data directory)")

	return cmd
}

// compareOptions are the parsed compare flags.
type compareOptions struct {
	withScanID int64
	since      string
	json       bool
	markdown   bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listImages, err := cmd.Flags().GetBool("list-images")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var imagePath string
	if !listImages {
		if len(args) == 0 {
			return errors.New("image path is required (use --list-images to see scanned images)")
		}
		imagePath = filepath.Clean(args[0])
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Comparing never creates a database.
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if listImages {
		return listScannedImages(ctx, out, db)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, out, db, imagePath)
	}

	var opts compareOptions
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}
	if opts.withScanID, err = cmd.Flags().GetInt64("with-scan-id"); err != nil {
		return err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}

	return runComparison(ctx, out, db, imagePath, opts)
}

// listScannedImages lists all images that have scan records in the database.
func listScannedImages(ctx context.Context, out io.Writer, db *database.ScanDB) error {
	images, err := db.ListScannedImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	if len(images) == 0 {
		fmt.Fprintln(out, "No scanned images found in the database.")
		fmt.Fprintln(out, "\nUse 'overlayscan scan <image>' to scan an image.")
		return nil
	}

	fmt.Fprintf(out, "Scanned images (%d):\n\n", len(images))
	for _, image := range images {
		fmt.Fprintf(out, "  • %s\n", image)
	}
	fmt.Fprintln(out, "\nUse 'overlayscan compare --list <image>' to see scan history for an image.")

	return nil
}

// listScanHistory lists all scan records for an image.
func listScanHistory(ctx context.Context, out io.Writer, db *database.ScanDB, imagePath string) error {
	reports, err := db.GetScanHistoryWithMetadata(ctx, imagePath)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", imagePath)
		fmt.Fprintln(out, "\nUse 'overlayscan scan' to scan this image.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", imagePath, len(reports))
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %-10s  %s\n", "ID", "Date", "Dominant", "Detected", "Fingerprint")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))

	for _, meta := range reports {
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %-10s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			formatDominant(meta.DominantOpacity, meta.DominantOpacity > 0),
			formatPercent(meta.DetectionRatio),
			shortFingerprint(meta.Fingerprint),
		)
	}

	fmt.Fprintln(out, "\nUse 'overlayscan compare <image>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'overlayscan compare --with-scan-id <id> <image>' to compare with a specific scan.")

	return nil
}

// runComparison performs the actual comparison between scan reports.
func runComparison(ctx context.Context, out io.Writer, db *database.ScanDB, imagePath string, opts compareOptions) error {
	reports, err := db.GetScanHistory(ctx, imagePath)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", imagePath)
	}

	if len(reports) < 2 && opts.withScanID == 0 && opts.since == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// Latest report is always the current one
	currentReport := reports[0]
	var previousReport *model.ScanReport

	switch {
	case opts.withScanID > 0:
		previousReport, err = db.GetScanReportByID(ctx, opts.withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", opts.withScanID, err)
		}
		if previousReport == nil {
			return fmt.Errorf("scan with ID %d not found", opts.withScanID)
		}
		if previousReport.ImagePath != imagePath {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", opts.withScanID, previousReport.ImagePath, imagePath)
		}
	case opts.since != "":
		parsedDate, err := time.Parse("2006-01-02", opts.since)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are newest first; walk backwards to find the oldest match.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateScanned.Before(parsedDate) {
				previousReport = reports[i]
				break
			}
		}
		if previousReport == nil {
			return fmt.Errorf("no scans found since %s", opts.since)
		}
		if previousReport == currentReport {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", opts.since)
		}
	default:
		previousReport = reports[1]
	}

	comparison := compareReports(previousReport, currentReport)

	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// ImagePath is the compared image.
	ImagePath string `json:"image_path"`

	// PreviousScan contains metadata about the previous scan.
	PreviousScan ScanMetadata `json:"previous_scan"`

	// CurrentScan contains metadata about the current scan.
	CurrentScan ScanMetadata `json:"current_scan"`

	// ContentChanged is true when the image fingerprints differ.
	ContentChanged bool `json:"content_changed"`

	// SettingsChanged is true when window, step or opacity range differ.
	// Counts from different settings are not directly comparable.
	SettingsChanged bool `json:"settings_changed"`

	// Bins lists every opacity selected in either scan.
	Bins []BinDelta `json:"bins"`

	// Change describes the overall change of overlay evidence.
	Change OverlayChange `json:"change"`
}

// ScanMetadata contains metadata about a scan for comparison display.
type ScanMetadata struct {
	DateScanned    time.Time `json:"date_scanned"`
	Fingerprint    string    `json:"fingerprint"`
	Settings       string    `json:"settings"`
	Pairs          int       `json:"pairs"`
	Detected       int       `json:"detected"`
	DetectionRatio float64   `json:"detection_ratio"`
	Dominant       int       `json:"dominant_opacity"`
	HasDominant    bool      `json:"has_dominant"`
	Level          string    `json:"level"`
}

// BinDelta is the change of one opacity count.
type BinDelta struct {
	Opacity  int `json:"opacity"`
	Previous int `json:"previous"`
	Current  int `json:"current"`
	Delta    int `json:"delta"`
}

// OverlayChange describes the change in overlay evidence between scans.
type OverlayChange struct {
	// Direction is "increased", "decreased", or "unchanged".
	Direction string `json:"direction"`

	// DetectionRatioDelta is the change of the detection ratio.
	DetectionRatioDelta float64 `json:"detection_ratio_delta"`

	// DominantChanged is true when the dominant opacity differs.
	DominantChanged bool `json:"dominant_changed"`
}

// newScanMetadata extracts comparison metadata from a report.
func newScanMetadata(r *model.ScanReport) ScanMetadata {
	summary := r.Summary
	if summary == nil {
		summary = model.NewSummary(&r.Table)
	}

	return ScanMetadata{
		DateScanned:    r.DateScanned,
		Fingerprint:    r.Fingerprint,
		Settings:       formatSettings(r.Settings),
		Pairs:          summary.Total,
		Detected:       summary.Detected,
		DetectionRatio: summary.DetectionRatio,
		Dominant:       summary.Dominant,
		HasDominant:    summary.HasDominant,
		Level:          summary.LevelText,
	}
}

// formatSettings renders the settings that affect the counts.
func formatSettings(s model.Settings) string {
	return fmt.Sprintf("window %s, step %s, opacity %s", s.Window, s.Step, s.Opacity)
}

// compareReports compares two scan reports and generates a comparison result.
func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		ImagePath:    current.ImagePath,
		PreviousScan: newScanMetadata(previous),
		CurrentScan:  newScanMetadata(current),
	}

	result.ContentChanged = previous.Fingerprint != "" && current.Fingerprint != "" &&
		previous.Fingerprint != current.Fingerprint
	result.SettingsChanged = result.PreviousScan.Settings != result.CurrentScan.Settings
	result.Bins = binDeltas(&previous.Table, &current.Table)
	result.Change = calculateOverlayChange(result.PreviousScan, result.CurrentScan)

	return result
}

// binDeltas lists the counts of every opacity present in either table,
// in ascending opacity order.
func binDeltas(previous, current *opacity.FrequencyTable) []BinDelta {
	var deltas []BinDelta
	for op := 0; op <= opacity.Max; op++ {
		p, c := previous.Count(op), current.Count(op)
		if p == 0 && c == 0 {
			continue
		}
		deltas = append(deltas, BinDelta{Opacity: op, Previous: p, Current: c, Delta: c - p})
	}
	return deltas
}

// calculateOverlayChange calculates the change in overlay evidence.
func calculateOverlayChange(previous, current ScanMetadata) OverlayChange {
	change := OverlayChange{
		DetectionRatioDelta: current.DetectionRatio - previous.DetectionRatio,
		DominantChanged: previous.HasDominant != current.HasDominant ||
			previous.Dominant != current.Dominant,
	}

	switch {
	case current.DetectionRatio > previous.DetectionRatio:
		change.Direction = overlayDirectionIncreased
	case current.DetectionRatio < previous.DetectionRatio:
		change.Direction = overlayDirectionDecreased
	default:
		change.Direction = overlayDirectionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Scan Comparison: " + result.ImagePath)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainText("**Overlay Evidence:** " + formatOverlayDirection(result.Change.Direction))
	md.PlainText("")

	prev, cur := result.PreviousScan, result.CurrentScan
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", prev.DateScanned.Format("2006-01-02 15:04"), cur.DateScanned.Format("2006-01-02 15:04"), "-"},
			{"Pairs", strconv.Itoa(prev.Pairs), strconv.Itoa(cur.Pairs), formatDelta(cur.Pairs - prev.Pairs)},
			{"Detected", strconv.Itoa(prev.Detected), strconv.Itoa(cur.Detected), formatDelta(cur.Detected - prev.Detected)},
			{"Detection Ratio", formatPercent(prev.DetectionRatio), formatPercent(cur.DetectionRatio), formatRatioDelta(result.Change.DetectionRatioDelta)},
			{"Dominant Opacity", formatDominant(prev.Dominant, prev.HasDominant), formatDominant(cur.Dominant, cur.HasDominant), "-"},
			{"Level", prev.Level, cur.Level, "-"},
		},
	})
	md.PlainText("")

	if result.ContentChanged {
		md.Warning("The image content changed between the scans.")
		md.PlainText("")
	}
	if result.SettingsChanged {
		md.Note("The scans used different settings; counts are not directly comparable.")
		md.PlainText("")
	}

	if len(result.Bins) > 0 {
		md.H2("Opacity Counts")
		md.PlainText("")

		rows := make([][]string, len(result.Bins))
		for i, b := range result.Bins {
			rows[i] = []string{formatOpacity(b.Opacity), strconv.Itoa(b.Previous), strconv.Itoa(b.Current), formatDelta(b.Delta)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Opacity", "Previous", "Current", "Change"},
			Rows:   rows,
		})
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Scan Comparison: %s\n", result.ImagePath)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nOverlay Evidence: %s\n", formatOverlayDirection(result.Change.Direction))

	prev, cur := result.PreviousScan, result.CurrentScan
	fmt.Fprintf(out, "\nPrevious scan: %s (%s)\n", prev.DateScanned.Format("2006-01-02 15:04:05"), prev.Settings)
	fmt.Fprintf(out, "Current scan:  %s (%s)\n", cur.DateScanned.Format("2006-01-02 15:04:05"), cur.Settings)

	if result.ContentChanged {
		fmt.Fprintln(out, "\nWarning: the image content changed between the scans.")
	}
	if result.SettingsChanged {
		fmt.Fprintln(out, "\nNote: the scans used different settings; counts are not directly comparable.")
	}

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", "Pairs", prev.Pairs, cur.Pairs, formatDelta(cur.Pairs-prev.Pairs))
	fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", "Detected", prev.Detected, cur.Detected, formatDelta(cur.Detected-prev.Detected))
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", "Detection ratio",
		formatPercent(prev.DetectionRatio), formatPercent(cur.DetectionRatio),
		formatRatioDelta(result.Change.DetectionRatioDelta))
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s\n", "Dominant",
		formatDominant(prev.Dominant, prev.HasDominant), formatDominant(cur.Dominant, cur.HasDominant))
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s\n", "Level", prev.Level, cur.Level)

	if len(result.Bins) > 0 {
		fmt.Fprintln(out, "\nOpacity Counts:")
		fmt.Fprintf(out, "  %-8s  %-10s  %-10s  %-10s\n", "Opacity", "Previous", "Current", "Change")
		fmt.Fprintln(out, "  "+strings.Repeat("-", 44))
		for _, b := range result.Bins {
			fmt.Fprintf(out, "  %-8s  %-10d  %-10d  %-10s\n", formatOpacity(b.Opacity), b.Previous, b.Current, formatDelta(b.Delta))
		}
	}

	return nil
}

// formatOverlayDirection formats the change direction for display.
func formatOverlayDirection(direction string) string {
	switch direction {
	case overlayDirectionIncreased:
		return "INCREASED (more pairs fit an overlay)"
	case overlayDirectionDecreased:
		return "DECREASED (fewer pairs fit an overlay)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// formatRatioDelta formats a ratio delta as signed percentage points.
func formatRatioDelta(delta float64) string {
	return fmt.Sprintf("%+.1f pp", delta*100)
}

// formatPercent formats a ratio as a percentage.
func formatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// formatOpacity labels an opacity bin.
func formatOpacity(op int) string {
	if op == opacity.None {
		return "none"
	}
	return strconv.Itoa(op) + "%"
}

// formatDominant formats the dominant opacity or "-".
func formatDominant(op int, ok bool) string {
	if !ok {
		return "-"
	}
	return strconv.Itoa(op) + "%"
}

// shortFingerprint abbreviates a fingerprint for tables.
func shortFingerprint(fp string) string {
	const n = 12
	if len(fp) <= n {
		return fp
	}
	return fp[:n]
}
