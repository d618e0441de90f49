package model

import "github.com/nao1215/overlayscan/internal/opacity"

// Level grades how much overlay evidence a scan found.
type Level int

const (
	// LevelNone means no pair improved with any opacity.
	LevelNone Level = iota

	// LevelLow means isolated pairs improved; typical of natural texture.
	LevelLow

	// LevelModerate means a noticeable share of pairs improved.
	LevelModerate

	// LevelHigh means a large share of pairs improved, consistent with a
	// tiled overlay.
	LevelHigh
)

// Detection ratio thresholds between levels.
const (
	moderateRatio = 0.05
	highRatio     = 0.25
)

// String returns a human-readable representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelLow:
		return "LOW"
	case LevelModerate:
		return "MODERATE"
	case LevelHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LevelForRatio maps a detection ratio in [0, 1] to a Level.
func LevelForRatio(ratio float64) Level {
	switch {
	case ratio <= 0:
		return LevelNone
	case ratio < moderateRatio:
		return LevelLow
	case ratio < highRatio:
		return LevelModerate
	default:
		return LevelHigh
	}
}

// Summary condenses an opacity frequency table.
type Summary struct {
	// Total is the number of evaluated pairs.
	Total int `json:"total"`

	// Detected is the number of pairs with a non-zero opacity.
	Detected int `json:"detected"`

	// DetectionRatio is Detected/Total.
	DetectionRatio float64 `json:"detection_ratio"`

	// Dominant is the most frequent non-zero opacity; valid when HasDominant.
	Dominant    int  `json:"dominant_opacity"`
	HasDominant bool `json:"has_dominant"`

	// Mean and StdDev describe the detected opacities.
	Mean   float64 `json:"mean_opacity"`
	StdDev float64 `json:"stddev_opacity"`

	// Level grades the detection ratio.
	Level     Level  `json:"level"`
	LevelText string `json:"level_text"`
}

// NewSummary computes the summary of t.
func NewSummary(t *opacity.FrequencyTable) *Summary {
	s := &Summary{
		Total:          t.Total(),
		Detected:       t.Detected(),
		DetectionRatio: t.DetectionRatio(),
	}
	s.Dominant, s.HasDominant = t.Dominant()
	s.Mean, s.StdDev = t.Stats()
	s.Level = LevelForRatio(s.DetectionRatio)
	s.LevelText = s.Level.String()
	return s
}
