package opacity

import (
	"errors"
	"fmt"

	"github.com/nao1215/overlayscan/internal/histogram"
)

const (
	// None is the reserved opacity meaning "no candidate improved the fit".
	None = 0

	// Max is the highest opacity percentage a frequency table can hold.
	Max = 100

	// DefaultMin is the lowest candidate opacity searched by default.
	DefaultMin = 10

	// DefaultMax is the highest candidate opacity searched by default.
	DefaultMax = 50
)

// ErrInvalidRange is returned by Range.Validate when the range cannot be
// searched: bounds outside 1..99 or Min greater than Max.
var ErrInvalidRange = errors.New("invalid opacity range: bounds must satisfy 1 <= min <= max <= 99")

// Range is a closed range of candidate opacities, in percent.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DefaultRange returns the default candidate range [10, 50].
func DefaultRange() Range {
	return Range{Min: DefaultMin, Max: DefaultMax}
}

// Validate reports whether every candidate of the range yields an alpha
// strictly between 0 and 1 and the range is non-empty.
func (r Range) Validate() error {
	if r.Min < 1 || r.Max > Max-1 || r.Min > r.Max {
		return fmt.Errorf("%w (got [%d, %d])", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// Candidates returns the searchable opacities of the range in ascending
// order. Values that would make alpha 0 or 1 are skipped, and an empty or
// inverted range yields no candidates.
func (r Range) Candidates() []int {
	lo := max(r.Min, 1)
	hi := min(r.Max, Max-1)
	if lo > hi {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for op := lo; op <= hi; op++ {
		out = append(out, op)
	}
	return out
}

// String returns the range as "min..max".
func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Min, r.Max)
}

// Result is the outcome of an opacity search over one pair of histograms.
type Result struct {
	// Opacity is the selected opacity, or None.
	Opacity int

	// Score is the RMS score of the best fit. It never exceeds BaselineScore.
	Score float64

	// BaselineScore is the RMS score of the pair before any de-blending.
	BaselineScore float64

	// Diff is the baseline difference table (target - reference).
	Diff histogram.DiffTable

	// Deblended is the target histogram after de-blending at Opacity.
	// It equals the target histogram when Opacity is None.
	Deblended histogram.Histogram

	// Residual is the difference table between Deblended and the reference.
	Residual histogram.DiffTable
}

// Improved reports whether a candidate opacity improved the fit.
func (r *Result) Improved() bool {
	return r.Opacity != None
}

// Search finds the opacity in r for which de-blending target makes it most
// similar to reference. Candidates are tried in ascending order and only a
// strictly lower score replaces the current best, so ties favour the lower
// opacity. If no candidate improves on the baseline, the result is
// (None, baseline score).
func Search(reference, target *histogram.Histogram, r Range) Result {
	diff := histogram.Diff(reference, target)
	baseline := diff.RMS()

	best := Result{
		Opacity:       None,
		Score:         baseline,
		BaselineScore: baseline,
		Diff:          diff,
		Deblended:     *target,
		Residual:      diff,
	}

	if baseline == 0 {
		return best
	}

	for _, op := range r.Candidates() {
		candidate := histogram.Deblend(target, &diff, op)
		residual := histogram.Diff(reference, &candidate)
		score := residual.RMS()
		if score < best.Score {
			best.Opacity = op
			best.Score = score
			best.Deblended = candidate
			best.Residual = residual
		}
	}

	return best
}
