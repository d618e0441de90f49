package model

import (
	"testing"

	"github.com/nao1215/overlayscan/internal/opacity"
)

// TestLevelString tests the String method of Level.
func TestLevelString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		level    Level
		expected string
	}{
		{LevelNone, "NONE"},
		{LevelLow, "LOW"},
		{LevelModerate, "MODERATE"},
		{LevelHigh, "HIGH"},
		{Level(42), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.level.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.level.String(), tc.expected)
			}
		})
	}
}

// TestLevelForRatio tests the ratio thresholds.
func TestLevelForRatio(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		ratio    float64
		expected Level
	}{
		{"zero", 0, LevelNone},
		{"isolated", 0.01, LevelLow},
		{"moderate boundary", 0.05, LevelModerate},
		{"moderate", 0.2, LevelModerate},
		{"high boundary", 0.25, LevelHigh},
		{"all pairs", 1, LevelHigh},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := LevelForRatio(tc.ratio); got != tc.expected {
				t.Errorf("LevelForRatio(%v) = %v, expected %v", tc.ratio, got, tc.expected)
			}
		})
	}
}

// TestNewSummary tests the summary of a frequency table.
func TestNewSummary(t *testing.T) {
	t.Parallel()

	t.Run("empty table", func(t *testing.T) {
		t.Parallel()

		var table opacity.FrequencyTable
		s := NewSummary(&table)
		if s.Total != 0 || s.Detected != 0 || s.HasDominant {
			t.Errorf("unexpected summary: %+v", s)
		}
		if s.Level != LevelNone || s.LevelText != "NONE" {
			t.Errorf("expected level NONE, got %v", s.Level)
		}
	})

	t.Run("detected opacities", func(t *testing.T) {
		t.Parallel()

		var table opacity.FrequencyTable
		table.Record(opacity.None)
		table.Record(opacity.None)
		table.Record(30)
		table.Record(30)

		s := NewSummary(&table)
		if s.Total != 4 || s.Detected != 2 {
			t.Errorf("expected 2 of 4 detected, got %d of %d", s.Detected, s.Total)
		}
		if s.DetectionRatio != 0.5 {
			t.Errorf("expected ratio 0.5, got %v", s.DetectionRatio)
		}
		if !s.HasDominant || s.Dominant != 30 {
			t.Errorf("expected dominant 30, got %d", s.Dominant)
		}
		if s.Mean != 30 || s.StdDev != 0 {
			t.Errorf("expected mean 30 stddev 0, got %v %v", s.Mean, s.StdDev)
		}
		if s.Level != LevelHigh {
			t.Errorf("expected level HIGH, got %v", s.Level)
		}
	})
}
