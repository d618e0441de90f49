package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/overlayscan/internal/database"
	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/opacity"
	"github.com/nao1215/overlayscan/internal/scan"
)

// newCompareReport builds a report with ten unimproved pairs and detected
// pairs at opacity op.
func newCompareReport(path, fingerprint string, op, detected int, scanned time.Time) *model.ScanReport {
	r := model.NewScanReport(path)
	r.Fingerprint = fingerprint
	r.DateScanned = scanned
	r.Settings = model.DefaultSettings()
	for range 10 {
		r.Table.Record(opacity.None)
	}
	for range detected {
		r.Table.Record(op)
	}
	r.Summary = model.NewSummary(&r.Table)
	return r
}

// seedHistory saves reports into a fresh history directory and returns it
// with the saved IDs.
func seedHistory(t *testing.T, reports ...*model.ScanReport) (string, []int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ids := make([]int64, len(reports))
	for i, r := range reports {
		if ids[i], err = db.SaveScanReport(context.Background(), r); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
	}
	return dir, ids
}

// runCompare executes the compare command and returns its output.
func runCompare(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewCompareCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()

	if cmd.Use != "compare [image]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	// Verify flags exist with their short options
	flagsWithShort := map[string]string{
		"list":         "l",
		"list-images":  "L",
		"with-scan-id": "i",
		"since":        "s",
		"json":         "j",
		"markdown":     "m",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}

	if cmd.Flags().Lookup("db-dir") == nil {
		t.Error("expected db-dir flag")
	}
}

func TestCompareReports(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("increase with new dominant", func(t *testing.T) {
		t.Parallel()

		previous := newCompareReport("a.png", "fp1", 20, 2, base)
		current := newCompareReport("a.png", "fp1", 30, 10, base.Add(time.Hour))

		result := compareReports(previous, current)

		if result.Change.Direction != overlayDirectionIncreased {
			t.Errorf("expected increased, got %q", result.Change.Direction)
		}
		if !result.Change.DominantChanged {
			t.Error("expected dominant change")
		}
		if result.ContentChanged || result.SettingsChanged {
			t.Error("expected same content and settings")
		}

		want := []BinDelta{
			{Opacity: 0, Previous: 10, Current: 10, Delta: 0},
			{Opacity: 20, Previous: 2, Current: 0, Delta: -2},
			{Opacity: 30, Previous: 0, Current: 10, Delta: 10},
		}
		if len(result.Bins) != len(want) {
			t.Fatalf("expected %d bins, got %+v", len(want), result.Bins)
		}
		for i := range want {
			if result.Bins[i] != want[i] {
				t.Errorf("bin %d: expected %+v, got %+v", i, want[i], result.Bins[i])
			}
		}
	})

	t.Run("decrease", func(t *testing.T) {
		t.Parallel()

		result := compareReports(
			newCompareReport("a.png", "fp1", 30, 10, base),
			newCompareReport("a.png", "fp1", 30, 5, base.Add(time.Hour)),
		)
		if result.Change.Direction != overlayDirectionDecreased {
			t.Errorf("expected decreased, got %q", result.Change.Direction)
		}
		if result.Change.DominantChanged {
			t.Error("expected same dominant")
		}
		if result.Change.DetectionRatioDelta >= 0 {
			t.Errorf("expected negative ratio delta, got %f", result.Change.DetectionRatioDelta)
		}
	})

	t.Run("unchanged", func(t *testing.T) {
		t.Parallel()

		result := compareReports(
			newCompareReport("a.png", "fp1", 30, 4, base),
			newCompareReport("a.png", "fp1", 30, 4, base.Add(time.Hour)),
		)
		if result.Change.Direction != overlayDirectionUnchanged {
			t.Errorf("expected unchanged, got %q", result.Change.Direction)
		}
	})

	t.Run("content and settings changes", func(t *testing.T) {
		t.Parallel()

		previous := newCompareReport("a.png", "fp1", 30, 4, base)
		current := newCompareReport("a.png", "fp2", 30, 4, base.Add(time.Hour))
		current.Settings.Window = scan.Square(64)

		result := compareReports(previous, current)
		if !result.ContentChanged {
			t.Error("expected content change")
		}
		if !result.SettingsChanged {
			t.Error("expected settings change")
		}
	})

	t.Run("missing fingerprint is not a content change", func(t *testing.T) {
		t.Parallel()

		result := compareReports(
			newCompareReport("a.png", "", 30, 4, base),
			newCompareReport("a.png", "fp2", 30, 4, base.Add(time.Hour)),
		)
		if result.ContentChanged {
			t.Error("expected no content change without a previous fingerprint")
		}
	})

	t.Run("summary computed when absent", func(t *testing.T) {
		t.Parallel()

		previous := newCompareReport("a.png", "fp1", 30, 10, base)
		previous.Summary = nil

		meta := newScanMetadata(previous)
		if meta.Pairs != 20 || meta.Detected != 10 || meta.Dominant != 30 {
			t.Errorf("unexpected metadata: %+v", meta)
		}
		if meta.Level != model.LevelHigh.String() {
			t.Errorf("expected HIGH level, got %q", meta.Level)
		}
	})
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "positive delta", got: formatDelta(3), want: "+3"},
		{name: "negative delta", got: formatDelta(-2), want: "-2"},
		{name: "zero delta", got: formatDelta(0), want: "0"},
		{name: "ratio delta", got: formatRatioDelta(0.125), want: "+12.5 pp"},
		{name: "negative ratio delta", got: formatRatioDelta(-0.5), want: "-50.0 pp"},
		{name: "percent", got: formatPercent(0.3077), want: "30.8%"},
		{name: "none opacity", got: formatOpacity(0), want: "none"},
		{name: "opacity", got: formatOpacity(30), want: "30%"},
		{name: "dominant", got: formatDominant(30, true), want: "30%"},
		{name: "no dominant", got: formatDominant(0, false), want: "-"},
		{name: "short fingerprint", got: shortFingerprint("0123456789abcdef"), want: "0123456789ab"},
		{name: "tiny fingerprint", got: shortFingerprint("abc"), want: "abc"},
		{name: "direction up", got: formatOverlayDirection(overlayDirectionIncreased), want: "INCREASED (more pairs fit an overlay)"},
		{name: "direction same", got: formatOverlayDirection(overlayDirectionUnchanged), want: "UNCHANGED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}

func TestRunCompareCmd(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	history := []*model.ScanReport{
		newCompareReport("a.png", "fp1", 20, 2, base),
		newCompareReport("a.png", "fp1", 30, 6, base.Add(24*time.Hour)),
		newCompareReport("a.png", "fp1", 30, 10, base.Add(48*time.Hour)),
		newCompareReport("b.png", "fp9", 30, 1, base),
	}

	t.Run("requires an image", func(t *testing.T) {
		t.Parallel()

		_, err := runCompare(t, "--db-dir", t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "image path is required") {
			t.Errorf("expected image path error, got %v", err)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()

		_, err := runCompare(t, "--db-dir", t.TempDir(), "a.png")
		if err == nil || !strings.Contains(err.Error(), "failed to open database") {
			t.Errorf("expected database error, got %v", err)
		}
	})

	t.Run("list images", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "-L")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scanned images (2)") || !strings.Contains(out, "b.png") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("list history", func(t *testing.T) {
		t.Parallel()

		dir, ids := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "-l", "a.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scan history for a.png (3 scans)") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if strings.Contains(out, "fp9") {
			t.Errorf("expected only a.png scans:\n%s", out)
		}
		latest := strconv.FormatInt(ids[2], 10)
		if strings.Index(out, "  "+latest+" ") > strings.Index(out, "  "+strconv.FormatInt(ids[0], 10)+" ") {
			t.Errorf("expected newest scan first:\n%s", out)
		}
	})

	t.Run("list history of unknown image", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "-l", "missing.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No scan history found for missing.png") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("compares latest two scans", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "a.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Scan Comparison: a.png", "INCREASED", "+4"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("JSON output", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "-j", "a.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if result.PreviousScan.Detected != 6 || result.CurrentScan.Detected != 10 {
			t.Errorf("unexpected scans: %+v / %+v", result.PreviousScan, result.CurrentScan)
		}
	})

	t.Run("markdown output", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "-m", "a.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Scan Comparison: a.png") || !strings.Contains(out, "| Opacity |") {
			t.Errorf("unexpected markdown:\n%s", out)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		if _, err := runCompare(t, "--db-dir", dir, "-j", "-m", "a.png"); err == nil {
			t.Error("expected error for --json with --markdown")
		}
	})

	t.Run("with scan ID", func(t *testing.T) {
		t.Parallel()

		dir, ids := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "-j", "-i", strconv.FormatInt(ids[0], 10), "a.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if result.PreviousScan.Detected != 2 {
			t.Errorf("expected the first scan, got %+v", result.PreviousScan)
		}
	})

	t.Run("scan ID of another image", func(t *testing.T) {
		t.Parallel()

		dir, ids := seedHistory(t, history...)
		_, err := runCompare(t, "--db-dir", dir, "-i", strconv.FormatInt(ids[3], 10), "a.png")
		if err == nil || !strings.Contains(err.Error(), "belongs to b.png") {
			t.Errorf("expected ownership error, got %v", err)
		}
	})

	t.Run("unknown scan ID", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		_, err := runCompare(t, "--db-dir", dir, "-i", "999", "a.png")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("since date", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		out, err := runCompare(t, "--db-dir", dir, "-j", "-s", "2025-01-02", "a.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if result.PreviousScan.Detected != 6 {
			t.Errorf("expected the scan of 2025-01-02, got %+v", result.PreviousScan)
		}
	})

	t.Run("since date with a single match", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		_, err := runCompare(t, "--db-dir", dir, "-s", "2025-01-03", "a.png")
		if err == nil || !strings.Contains(err.Error(), "only one scan") {
			t.Errorf("expected single scan error, got %v", err)
		}
	})

	t.Run("invalid since date", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		if _, err := runCompare(t, "--db-dir", dir, "-s", "01/02/2025", "a.png"); err == nil {
			t.Error("expected date format error")
		}
	})

	t.Run("single scan is not enough", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t, history...)
		_, err := runCompare(t, "--db-dir", dir, "b.png")
		if err == nil || !strings.Contains(err.Error(), "at least 2 scans") {
			t.Errorf("expected scan count error, got %v", err)
		}
	})
}
