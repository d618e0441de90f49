package model

import (
	"github.com/nao1215/overlayscan/internal/histogram"
	"github.com/nao1215/overlayscan/internal/scan"
)

// LevelRange is the span of intensity levels with non-zero counts.
type LevelRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// PairDiagnostic describes one window pair whose fit improved with a
// non-zero opacity.
type PairDiagnostic struct {
	// Index is the pair position in scan order.
	Index int `json:"index"`

	// Direction is "horizontal" (left neighbour) or "vertical" (upper).
	Direction string `json:"direction"`

	// Reference and Target are the compared windows.
	Reference histogram.Window `json:"reference"`
	Target    histogram.Window `json:"target"`

	// Opacity is the selected opacity percentage.
	Opacity int `json:"opacity"`

	// BaselineScore is the dissimilarity before de-blending.
	BaselineScore float64 `json:"baseline_score"`

	// Score is the dissimilarity after de-blending at Opacity.
	Score float64 `json:"score"`

	// Levels spans the target and de-blended histograms; nil when both
	// are empty.
	Levels *LevelRange `json:"levels,omitempty"`
}

// NewPairDiagnostic builds a diagnostic from an evaluated pair.
func NewPairDiagnostic(p *scan.Pair) PairDiagnostic {
	d := PairDiagnostic{
		Index:         p.Index,
		Direction:     p.Direction.String(),
		Reference:     p.Reference,
		Target:        p.Target,
		Opacity:       p.Result.Opacity,
		BaselineScore: p.Result.BaselineScore,
		Score:         p.Result.Score,
	}

	if lo, hi, ok := histogram.NonZeroRange(p.TargetHistogram, &p.Result.Deblended); ok {
		d.Levels = &LevelRange{Low: lo, High: hi}
	}
	return d
}

// Improvement returns BaselineScore - Score.
func (d PairDiagnostic) Improvement() float64 {
	return d.BaselineScore - d.Score
}
