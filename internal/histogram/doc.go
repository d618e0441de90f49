// Package histogram provides per-channel intensity histograms of image
// windows and the numeric routines that operate on them.
//
// A Histogram has 256 rows (intensity levels) and 3 columns (R, G, B).
// Histograms are plain arrays and therefore values: assigning or passing a
// Histogram copies it, so no routine in this package can mutate a caller's
// histogram. This is what keeps the opacity search free of side effects
// between candidate opacities.
//
// The routines are:
//   - Extract: build a Histogram from a rectangular window of an image
//   - Diff: the signed per-cell difference of two histograms
//   - Score: the root-mean-square of that difference (lower is more similar)
//   - Deblend: redistribute histogram mass as if an overlay at a given
//     opacity had been removed
//
// All routines are total over zero-mass histograms: Score returns 0 and
// Deblend is a no-op.
package histogram
