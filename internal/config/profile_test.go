package config

import (
	"errors"
	"testing"

	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/scan"
)

// TestParseSize tests size parsing.
func TestParseSize(t *testing.T) {
	t.Parallel()

	valid := []struct {
		input    string
		expected scan.Size
	}{
		{"40", scan.Size{Height: 40, Width: 40}},
		{"40x40", scan.Size{Height: 40, Width: 40}},
		{"32x64", scan.Size{Height: 32, Width: 64}},
		{" 16X8 ", scan.Size{Height: 16, Width: 8}},
	}
	for _, tc := range valid {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSize(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("ParseSize(%q) = %s, expected %s", tc.input, got, tc.expected)
			}
		})
	}

	for _, input := range []string{"", "0", "-4", "abc", "10x", "x10", "10x0", "1.5"} {
		t.Run("invalid "+input, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseSize(input); !errors.Is(err, ErrInvalidSize) {
				t.Errorf("ParseSize(%q): expected ErrInvalidSize, got %v", input, err)
			}
		})
	}
}

// TestFileGetImageConfig tests profile matching and merging.
func TestFileGetImageConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when no pattern matches", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: ImageConfig{Window: "32", OpacityMax: 40},
			Images:   map[string]ImageConfig{"*.jpg": {Window: "64"}},
		}

		got, name := cf.GetImageConfig("photo.png")
		if name != "" {
			t.Errorf("expected no match, got %q", name)
		}
		if got.Window != "32" || got.OpacityMax != 40 {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("pattern fields override defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: ImageConfig{Window: "32", Step: "8", OpacityMax: 40},
			Images:   map[string]ImageConfig{"*.jpg": {Window: "64", OpacityMin: 5}},
		}

		got, name := cf.GetImageConfig("dir/photo.jpg")
		if name != "*.jpg" {
			t.Errorf("expected *.jpg, got %q", name)
		}
		want := ImageConfig{Window: "64", Step: "8", OpacityMin: 5, OpacityMax: 40}
		if got != want {
			t.Errorf("got %+v, expected %+v", got, want)
		}
	})

	t.Run("exact path wins over globs", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Images: map[string]ImageConfig{
				"a/*.png":   {Window: "20"},
				"a/one.png": {Window: "30"},
			},
		}

		got, name := cf.GetImageConfig("a/one.png")
		if name != "a/one.png" || got.Window != "30" {
			t.Errorf("expected exact match, got %q %+v", name, got)
		}
	})

	t.Run("first pattern in lexical order wins", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Images: map[string]ImageConfig{
				"scan_*": {Window: "20"},
				"*.png":  {Window: "30"},
			},
		}

		for range 10 {
			if _, name := cf.GetImageConfig("scan_1.png"); name != "*.png" {
				t.Fatalf("expected *.png, got %q", name)
			}
		}
	})

	t.Run("nil images map", func(t *testing.T) {
		t.Parallel()

		cf := &File{Defaults: ImageConfig{Step: "5"}}
		got, _ := cf.GetImageConfig("any.png")
		if got.Step != "5" {
			t.Errorf("expected defaults, got %+v", got)
		}
	})
}

// TestImageConfigApply tests overlaying a profile on settings.
func TestImageConfigApply(t *testing.T) {
	t.Parallel()

	base := model.DefaultSettings()
	ic := ImageConfig{Window: "50x60", Step: "bad", OpacityMin: 15}

	got := ic.Apply(base, "profile")
	if got.Window != (scan.Size{Height: 50, Width: 60}) {
		t.Errorf("expected 50x60, got %s", got.Window)
	}
	if got.Step != base.Step {
		t.Errorf("expected unparsable step to be ignored, got %s", got.Step)
	}
	if got.Opacity.Min != 15 || got.Opacity.Max != base.Opacity.Max {
		t.Errorf("unexpected opacity range %s", got.Opacity)
	}
	if got.Profile != "profile" {
		t.Errorf("expected profile name, got %q", got.Profile)
	}
}
