package histogram

import "math"

// MaxOverlayLevel is the intensity the overlay is assumed to contribute,
// i.e. a white overlay blended as observed = alpha*255 + (1-alpha)*original.
const MaxOverlayLevel = 255

// SourceLevel returns the level an observed level n came from if an overlay
// at the given opacity (percent) was blended on top of it. The inverse blend
// is computed in floating point and rounded half to even. ok is false when
// the opacity is outside (0, 100) or the source level falls outside 0..255.
func SourceLevel(n, opacity int) (src int, ok bool) {
	if opacity <= 0 || opacity >= 100 {
		return 0, false
	}
	alpha := float64(opacity) / 100
	v := math.RoundToEven((float64(n) - alpha*MaxOverlayLevel) / (1 - alpha))
	if v < 0 || v > MaxLevel {
		return 0, false
	}
	return int(v), true
}

// Deblend returns a copy of target in which mass has been moved back to the
// levels it would occupy if an overlay at the given opacity were removed.
//
// diff must be the difference reference - target was compared against,
// i.e. Diff(reference, target). For every level n with excess mass
// (diff[n][c] > 0), the source level of n is computed; if the reference has
// a deficit there (diff[src][c] < 0), min(excess, remaining deficit) counts
// are moved from n to src. Levels are visited in ascending order and the
// remaining deficit is tracked, so competing source levels never fill one
// deficit beyond what the reference holds.
//
// target is never modified. An opacity outside (0, 100) returns target
// unchanged.
func Deblend(target *Histogram, diff *DiffTable, opacity int) Histogram {
	out := *target
	if opacity <= 0 || opacity >= 100 {
		return out
	}

	var sources [Levels]int
	var valid [Levels]bool
	for n := range sources {
		sources[n], valid[n] = SourceLevel(n, opacity)
	}

	for c := 0; c < Channels; c++ {
		var deficit [Levels]int
		for level := range deficit {
			if diff[level][c] < 0 {
				deficit[level] = -diff[level][c]
			}
		}

		for n := 0; n < Levels; n++ {
			excess := diff[n][c]
			if excess <= 0 || !valid[n] {
				continue
			}
			src := sources[n]
			if src == n || deficit[src] == 0 {
				continue
			}
			moved := min(excess, deficit[src], out[n][c])
			if moved <= 0 {
				continue
			}
			out[n][c] -= moved
			out[src][c] += moved
			deficit[src] -= moved
		}
	}

	return out
}
