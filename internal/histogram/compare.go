package histogram

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DiffTable holds the signed per-level, per-channel difference of two
// histograms (b - a). It has the same shape as a Histogram.
type DiffTable [Levels][Channels]int

// Diff returns b - a.
func Diff(a, b *Histogram) DiffTable {
	var d DiffTable
	for level := range d {
		for c := range d[level] {
			d[level][c] = b[level][c] - a[level][c]
		}
	}
	return d
}

// Score returns the root-mean-square of Diff(a, b) over all 256x3 cells.
// Lower is more similar; Score(h, h) is 0.
func Score(a, b *Histogram) float64 {
	d := Diff(a, b)
	return d.RMS()
}

// RMS returns the root-mean-square of all cells of the table.
func (d *DiffTable) RMS() float64 {
	v := make([]float64, 0, Cells)
	for level := range d {
		for c := range d[level] {
			v = append(v, float64(d[level][c]))
		}
	}
	return floats.Norm(v, 2) / math.Sqrt(Cells)
}
