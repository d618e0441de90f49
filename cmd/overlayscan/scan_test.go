package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/overlayscan/internal/config"
	"github.com/nao1215/overlayscan/internal/database"
	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/report"
	"github.com/nao1215/overlayscan/internal/scan"
)

// writeSplitPNG writes a 120x80 PNG named name into dir. The left half has
// level left and the right half level right in every channel.
//
// With the default 40x40 windows and step 10 the scan evaluates 52 pairs.
// For left=145 and right=178 (145 blended with 30% white) the 16 pairs
// straddling the boundary select opacity 30.
func writeSplitPNG(t *testing.T, dir, name string, left, right uint8) string {
	t.Helper()

	const width, height = 120, 80

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := left
			if x >= width/2 {
				v = right
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path) //nolint:gosec // test file in temp dir
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// newTestConfig returns a configuration for targets with an isolated
// history directory.
func newTestConfig(t *testing.T, targets ...string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Targets = targets
	cfg.DBDir = t.TempDir()
	cfg.Workers = 2
	return cfg
}

// discardLogger returns a logger that drops all records.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "scan [image]..." {
			t.Errorf("expected use 'scan [image]...', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
	})

	t.Run("flags have expected shorthands", func(t *testing.T) {
		t.Parallel()

		flagsWithShort := map[string]string{
			"window":   "w",
			"step":     "s",
			"workers":  "W",
			"batch":    "b",
			"config":   "c",
			"json":     "j",
			"markdown": "m",
			"output":   "o",
			"pairs":    "P",
		}
		for name, shorthand := range flagsWithShort {
			f := cmd.Flags().Lookup(name)
			if f == nil {
				t.Errorf("expected flag %q", name)
				continue
			}
			if f.Shorthand != shorthand {
				t.Errorf("flag %q: expected shorthand %q, got %q", name, shorthand, f.Shorthand)
			}
		}
	})

	t.Run("flag defaults", func(t *testing.T) {
		t.Parallel()

		defaults := map[string]string{
			"window":        "40x40",
			"step":          "10x10",
			"opacity-min":   "10",
			"opacity-max":   "50",
			"max-pairs":     "200",
			"max-file-size": "268435456",
			"no-db":         "false",
		}
		for name, want := range defaults {
			f := cmd.Flags().Lookup(name)
			if f == nil {
				t.Errorf("expected flag %q", name)
				continue
			}
			if f.DefValue != want {
				t.Errorf("flag %q: expected default %q, got %q", name, want, f.DefValue)
			}
		}
	})
}

// TestBuildConfig tests flag parsing into a Config.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("parses geometry and report flags", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{
			"-w", "64", "-s", "16x8",
			"--opacity-min", "5", "--opacity-max", "80",
			"-W", "3", "-b", "2",
			"-j", "-P", "--max-pairs", "10",
			"--no-db", "--db-dir", dbDir,
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"./shots/../a.png", "b.png"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Window != scan.Square(64) {
			t.Errorf("expected 64x64 window, got %s", cfg.Window)
		}
		if cfg.Step != (scan.Size{Height: 16, Width: 8}) {
			t.Errorf("expected 16x8 step, got %s", cfg.Step)
		}
		if cfg.Opacity.Min != 5 || cfg.Opacity.Max != 80 {
			t.Errorf("unexpected opacity range: %s", cfg.Opacity)
		}
		if cfg.Workers != 3 || cfg.BatchSize != 2 {
			t.Errorf("expected 3 workers and batch 2, got %d and %d", cfg.Workers, cfg.BatchSize)
		}
		if !cfg.JSONReport || cfg.MarkdownReport {
			t.Error("expected JSON report only")
		}
		if !cfg.ShowPairs || cfg.MaxPairs != 10 {
			t.Errorf("expected pairs with limit 10, got %v and %d", cfg.ShowPairs, cfg.MaxPairs)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-db to disable the history")
		}
		if cfg.DBDir != dbDir {
			t.Errorf("expected db dir %q, got %q", dbDir, cfg.DBDir)
		}
		if len(cfg.Targets) != 2 || cfg.Targets[0] != "a.png" {
			t.Errorf("expected cleaned targets, got %v", cfg.Targets)
		}
	})

	t.Run("defaults to XDG data directory", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		cfg, err := buildConfig(cmd, []string{"a.png"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DBDir != config.XDGDataDir() {
			t.Errorf("expected %q, got %q", config.XDGDataDir(), cfg.DBDir)
		}
		if !cfg.SaveToDB {
			t.Error("expected history enabled by default")
		}
	})

	t.Run("rejects malformed window", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-w", "big"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildConfig(cmd, []string{"a.png"}); !errors.Is(err, config.ErrInvalidSize) {
			t.Errorf("expected ErrInvalidSize, got %v", err)
		}
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"-c", missing}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		_, err := buildConfig(cmd, []string{"a.png"})
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("loads explicit config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "profiles.yaml")
		content := "images:\n  \"*.tif\":\n    window: 80x80\n    step: 20\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-c", path}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"scan.tif"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Profiles == nil {
			t.Fatal("expected profiles to be loaded")
		}
		if got := cfg.SettingsFor("scan.tif").Window; got != scan.Square(80) {
			t.Errorf("expected profile window 80x80, got %s", got)
		}
	})
}

// TestRunScan tests complete scans of generated images.
func TestRunScan(t *testing.T) {
	t.Parallel()

	t.Run("text report of a single image", func(t *testing.T) {
		t.Parallel()

		path := writeSplitPNG(t, t.TempDir(), "split.png", 145, 178)
		cfg := newTestConfig(t, path)
		cfg.SaveToDB = false

		var out, errOut bytes.Buffer
		if err := runScan(context.Background(), cfg, discardLogger(), &out, &errOut); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := out.String()
		for _, want := range []string{"OVERLAYSCAN REPORT", "Pairs:        52", "Dominant:     30%"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output:\n%s", want, output)
			}
		}
		if !strings.Contains(errOut.String(), "Scanning "+path) {
			t.Errorf("expected progress on error output, got %q", errOut.String())
		}
	})

	t.Run("JSON report written to file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := writeSplitPNG(t, dir, "split.png", 145, 178)
		cfg := newTestConfig(t, path)
		cfg.SaveToDB = false
		cfg.JSONReport = true
		cfg.ShowPairs = true
		cfg.MaxPairs = 5
		cfg.ReportFile = filepath.Join(dir, "out", "report.json")

		var out, errOut bytes.Buffer
		if err := runScan(context.Background(), cfg, discardLogger(), &out, &errOut); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "OVERLAYSCAN REPORT") {
			t.Errorf("expected a text summary on stdout, got %q", out.String())
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}

		var envelope report.JSONReport
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if envelope.Version == "" {
			t.Error("expected a version in the JSON report")
		}
		got := envelope.Report
		if got == nil {
			t.Fatal("expected the scan report in the envelope")
		}
		if got.Table.Count(30) != 16 {
			t.Errorf("expected 16 pairs at 30%%, got %d", got.Table.Count(30))
		}
		if len(got.Diagnostics) != 5 || !got.DiagnosticsTruncated {
			t.Errorf("expected 5 truncated diagnostics, got %d (truncated=%v)",
				len(got.Diagnostics), got.DiagnosticsTruncated)
		}

		info, err := os.Stat(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to stat report: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected mode 0600, got %o", perm)
		}
	})

	t.Run("saves reports to the history", func(t *testing.T) {
		t.Parallel()

		path := writeSplitPNG(t, t.TempDir(), "split.png", 145, 178)
		cfg := newTestConfig(t, path)

		var out, errOut bytes.Buffer
		if err := runScan(context.Background(), cfg, discardLogger(), &out, &errOut); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		saved, err := db.GetLatestScanReport(context.Background(), path)
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}
		if saved == nil {
			t.Fatal("expected a saved report")
		}
		if saved.Summary == nil || saved.Summary.Dominant != 30 {
			t.Errorf("expected dominant opacity 30, got %+v", saved.Summary)
		}
	})

	t.Run("notes duplicate content under another path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		first := writeSplitPNG(t, dir, "first.png", 145, 178)
		second := writeSplitPNG(t, dir, "second.png", 145, 178)
		cfg := newTestConfig(t, first, second)
		cfg.BatchSize = 1

		var out, errOut bytes.Buffer
		if err := runScan(context.Background(), cfg, discardLogger(), &out, &errOut); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "Note: " + second + " has the same content as " + first
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("expected %q in error output:\n%s", want, errOut.String())
		}
	})

	t.Run("failed image makes the run fail", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		good := writeSplitPNG(t, dir, "good.png", 145, 178)
		broken := filepath.Join(dir, "broken.png")
		if err := os.WriteFile(broken, []byte("not an image"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		cfg := newTestConfig(t, good, broken)
		cfg.BatchSize = 1

		var out, errOut bytes.Buffer
		err := runScan(context.Background(), cfg, discardLogger(), &out, &errOut)
		if !errors.Is(err, errScansFailed) {
			t.Fatalf("expected errScansFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "1 of 2") {
			t.Errorf("expected failure count, got %v", err)
		}
		if !strings.Contains(errOut.String(), "Scan error for "+broken) {
			t.Errorf("expected scan error on error output:\n%s", errOut.String())
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		images, err := db.ListScannedImages(context.Background())
		if err != nil {
			t.Fatalf("failed to list images: %v", err)
		}
		if len(images) != 1 || images[0] != good {
			t.Errorf("expected only the good image in history, got %v", images)
		}
	})

	t.Run("batch scan writes JSON lines", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		targets := []string{
			writeSplitPNG(t, dir, "a.png", 145, 178),
			writeSplitPNG(t, dir, "b.png", 100, 100),
			writeSplitPNG(t, dir, "c.png", 145, 178),
		}
		cfg := newTestConfig(t, targets...)
		cfg.SaveToDB = false
		cfg.JSONReport = true
		cfg.BatchSize = 3

		var out, errOut bytes.Buffer
		if err := runScan(context.Background(), cfg, discardLogger(), &out, &errOut); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		detected := make(map[string]int)
		scanner := bufio.NewScanner(&out)
		for scanner.Scan() {
			var envelope report.JSONReport
			if err := json.Unmarshal(scanner.Bytes(), &envelope); err != nil || envelope.Report == nil {
				t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
			}
			detected[filepath.Base(envelope.Report.ImagePath)] = envelope.Report.Table.Detected()
		}

		if len(detected) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(detected))
		}
		if detected["a.png"] != 16 || detected["c.png"] != 16 {
			t.Errorf("expected 16 detections for split images, got %v", detected)
		}
		if detected["b.png"] != 0 {
			t.Errorf("expected no detections for a flat image, got %d", detected["b.png"])
		}
		if !strings.Contains(errOut.String(), "Batch scan completed") {
			t.Errorf("expected batch progress, got %q", errOut.String())
		}
	})

	t.Run("cancelled context stops the scan", func(t *testing.T) {
		t.Parallel()

		path := writeSplitPNG(t, t.TempDir(), "split.png", 145, 178)
		cfg := newTestConfig(t, path)
		cfg.SaveToDB = false

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var out, errOut bytes.Buffer
		if err := runScan(ctx, cfg, discardLogger(), &out, &errOut); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestNewReportWriter tests writer selection.
func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	path := writeSplitPNG(t, t.TempDir(), "split.png", 145, 178)

	tests := []struct {
		name    string
		setup   func(*config.Config)
		targets int
		check   func(t *testing.T, output string)
	}{
		{
			name:    "simple by default",
			setup:   func(*config.Config) {},
			targets: 1,
			check: func(t *testing.T, output string) {
				t.Helper()
				if !strings.Contains(output, "OVERLAYSCAN REPORT") {
					t.Errorf("expected text report: %s", output)
				}
			},
		},
		{
			name:    "markdown",
			setup:   func(c *config.Config) { c.MarkdownReport = true },
			targets: 1,
			check: func(t *testing.T, output string) {
				t.Helper()
				if !strings.HasPrefix(output, "# ") {
					t.Errorf("expected markdown heading: %s", output)
				}
			},
		},
		{
			name:    "pretty JSON for one target",
			setup:   func(c *config.Config) { c.JSONReport = true },
			targets: 1,
			check: func(t *testing.T, output string) {
				t.Helper()
				if !strings.Contains(output, "\n  \"version\"") {
					t.Errorf("expected indented JSON: %s", output)
				}
			},
		},
		{
			name:    "compact JSON for several targets",
			setup:   func(c *config.Config) { c.JSONReport = true },
			targets: 2,
			check: func(t *testing.T, output string) {
				t.Helper()
				if strings.Count(strings.TrimSpace(output), "\n") != 0 {
					t.Errorf("expected a single line: %s", output)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			targets := make([]string, tt.targets)
			for i := range targets {
				targets[i] = path
			}
			cfg := newTestConfig(t, targets...)
			tt.setup(cfg)

			r := model.NewScanReport(path)
			r.Table.Record(30)

			var out bytes.Buffer
			if _, err := newReportWriter(cfg, &out).Write(r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, out.String())
		})
	}
}
