package histogram

import (
	"image"
	"image/color"
)

const (
	// Levels is the number of intensity levels per channel (8-bit channels).
	Levels = 256

	// Channels is the number of colour channels tracked per level.
	Channels = 3

	// Cells is the total number of cells in a Histogram or DiffTable.
	Cells = Levels * Channels

	// MaxLevel is the highest intensity level.
	MaxLevel = Levels - 1
)

// Channel indexes used for the columns of a Histogram.
const (
	Red = iota
	Green
	Blue
)

// ChannelNames maps channel indexes to their names.
var ChannelNames = [Channels]string{"red", "green", "blue"}

// Histogram is a per-channel intensity distribution of a window.
// Histogram[level][channel] is the number of pixels of the window whose
// channel value equals level.
type Histogram [Levels][Channels]int

// Window is a rectangular sub-region of an image, in pixel coordinates
// relative to the image bounds origin.
type Window struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Rect returns the window as an image.Rectangle anchored at the given
// bounds origin.
func (w Window) Rect(origin image.Point) image.Rectangle {
	minPt := origin.Add(image.Pt(w.Col, w.Row))
	return image.Rectangle{Min: minPt, Max: minPt.Add(image.Pt(w.Width, w.Height))}
}

// Area returns the number of pixels covered by the window.
func (w Window) Area() int {
	if w.Height <= 0 || w.Width <= 0 {
		return 0
	}
	return w.Height * w.Width
}

// Extract computes the histogram of the given window of img.
// The window is clipped to the image bounds; an empty intersection yields
// a zero histogram.
func Extract(img image.Image, w Window) Histogram {
	var h Histogram
	if img == nil {
		return h
	}

	bounds := img.Bounds()
	r := w.Rect(bounds.Min).Intersect(bounds)
	if r.Empty() {
		return h
	}

	switch src := img.(type) {
	case *image.NRGBA:
		extractPix(&h, src.Pix, src.Stride, src.PixOffset(r.Min.X, r.Min.Y), r.Dx(), r.Dy())
	case *image.RGBA:
		extractPremultiplied(&h, src.Pix, src.Stride, src.PixOffset(r.Min.X, r.Min.Y), r.Dx(), r.Dy())
	default:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				c, _ := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				h[c.R][Red]++
				h[c.G][Green]++
				h[c.B][Blue]++
			}
		}
	}

	return h
}

// extractPix counts the RGB bytes of a 4-bytes-per-pixel buffer.
func extractPix(h *Histogram, pix []uint8, stride, offset, width, height int) {
	for y := 0; y < height; y++ {
		row := pix[offset+y*stride : offset+y*stride+width*4]
		for i := 0; i < len(row); i += 4 {
			h[row[i]][Red]++
			h[row[i+1]][Green]++
			h[row[i+2]][Blue]++
		}
	}
}

// extractPremultiplied counts alpha-premultiplied RGBA bytes after
// converting them to non-premultiplied levels the way color.NRGBAModel does,
// so translucent pixels land on the same levels as on the generic path.
func extractPremultiplied(h *Histogram, pix []uint8, stride, offset, width, height int) {
	for y := 0; y < height; y++ {
		row := pix[offset+y*stride : offset+y*stride+width*4]
		for i := 0; i < len(row); i += 4 {
			a := row[i+3]
			if a == 0xff {
				h[row[i]][Red]++
				h[row[i+1]][Green]++
				h[row[i+2]][Blue]++
				continue
			}
			h[unpremultiply(row[i], a)][Red]++
			h[unpremultiply(row[i+1], a)][Green]++
			h[unpremultiply(row[i+2], a)][Blue]++
		}
	}
}

// unpremultiply mirrors the 16-bit arithmetic of color.NRGBAModel.
func unpremultiply(v, a uint8) uint8 {
	if a == 0 {
		return 0
	}
	v16 := uint32(v) * 0x101
	a16 := uint32(a) * 0x101
	return uint8((v16 * 0xffff / a16) >> 8)
}

// Total returns the number of pixels counted in the given channel.
func (h *Histogram) Total(channel int) int {
	total := 0
	for level := range h {
		total += h[level][channel]
	}
	return total
}

// IsZero reports whether the histogram has no mass at all.
func (h *Histogram) IsZero() bool {
	for level := range h {
		for c := range h[level] {
			if h[level][c] != 0 {
				return false
			}
		}
	}
	return true
}

// NonZeroRange returns the lowest and highest levels holding mass in any
// channel of any of the given histograms. ok is false when all histograms
// are empty, so callers never index into an empty level set.
func NonZeroRange(hs ...*Histogram) (lo, hi int, ok bool) {
	lo, hi = Levels, -1
	for _, h := range hs {
		if h == nil {
			continue
		}
		for level := range h {
			for c := range h[level] {
				if h[level][c] == 0 {
					continue
				}
				if level < lo {
					lo = level
				}
				if level > hi {
					hi = level
				}
			}
		}
	}
	if hi < 0 {
		return 0, 0, false
	}
	return lo, hi, true
}
