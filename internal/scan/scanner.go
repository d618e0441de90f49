package scan

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/nao1215/overlayscan/internal/histogram"
	"github.com/nao1215/overlayscan/internal/opacity"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWindowSize is the default window height and width in pixels.
	DefaultWindowSize = 40

	// DefaultStepSize is the default stride between window origins.
	DefaultStepSize = 10
)

// Size is a height and width in pixels.
type Size struct {
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width" yaml:"width"`
}

// Square returns a Size with equal height and width.
func Square(n int) Size {
	return Size{Height: n, Width: n}
}

// String returns the size as "HEIGHTxWIDTH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Height, s.Width)
}

// IsZero reports whether both dimensions are zero.
func (s Size) IsZero() bool {
	return s.Height == 0 && s.Width == 0
}

// Direction tells which neighbour a window was compared with.
type Direction int

const (
	// Horizontal pairs compare a window with its left neighbour.
	Horizontal Direction = iota
	// Vertical pairs compare a window with the window one row above.
	Vertical
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return "unknown"
	}
}

// Pair is one evaluated pair of neighbouring windows together with
// everything the opacity search produced for it.
type Pair struct {
	// Index is the position of the pair in scan order, starting at 0.
	Index int

	// Direction tells whether Reference is the left or the upper neighbour.
	Direction Direction

	// Reference is the earlier window in scan order.
	Reference histogram.Window

	// Target is the window being scanned.
	Target histogram.Window

	// ReferenceHistogram and TargetHistogram are the window histograms.
	ReferenceHistogram *histogram.Histogram
	TargetHistogram    *histogram.Histogram

	// Result holds the selected opacity, the scores, the baseline
	// difference table and the de-blended target histogram.
	Result opacity.Result
}

// Observer is called once per evaluated pair, sequentially and in scan
// order. It must not modify the pair's histograms.
type Observer func(p *Pair)

// Result is the outcome of scanning one image.
type Result struct {
	// Table counts the selected opacity of every evaluated pair.
	Table opacity.FrequencyTable

	// Rows and Cols are the number of window origins per dimension.
	Rows int
	Cols int

	// Windows is the number of windows whose histogram was extracted.
	Windows int

	// Pairs is the number of evaluated window pairs.
	Pairs int

	// Elapsed is the wall time of the scan.
	Elapsed time.Duration
}

// Scanner runs window scans with a fixed configuration.
// A Scanner holds no per-scan state and may be used by several goroutines.
type Scanner struct {
	window       Size
	step         Size
	opacityRange opacity.Range
	workers      int
	observer     Observer
	logger       *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWindow sets the window size.
func WithWindow(size Size) Option {
	return func(s *Scanner) {
		s.window = size
	}
}

// WithStep sets the stride between window origins.
func WithStep(size Size) Option {
	return func(s *Scanner) {
		s.step = size
	}
}

// WithOpacityRange sets the candidate opacities searched for every pair.
func WithOpacityRange(r opacity.Range) Option {
	return func(s *Scanner) {
		s.opacityRange = r
	}
}

// WithWorkers sets how many histograms or pairs of one row are processed
// concurrently. Non-positive values are ignored.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithObserver registers a callback receiving every evaluated pair.
func WithObserver(fn Observer) Option {
	return func(s *Scanner) {
		s.observer = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a Scanner. Defaults are a 40x40 window, a 10x10 step, the
// default opacity range and one worker per CPU.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		window:       Square(DefaultWindowSize),
		step:         Square(DefaultStepSize),
		opacityRange: opacity.DefaultRange(),
		workers:      runtime.GOMAXPROCS(0),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Validate checks the window and step configuration.
func (s *Scanner) Validate() error {
	if s.window.Height <= 0 || s.window.Width <= 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidWindow, s.window)
	}
	if s.step.Height <= 0 || s.step.Width <= 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidStep, s.step)
	}
	if s.step.Height >= s.window.Height || s.step.Width >= s.window.Width {
		return fmt.Errorf("%w (step %s, window %s)", ErrStepNotSmallerThanWindow, s.step, s.window)
	}
	return nil
}

// Origins returns the window origins along one dimension:
// 0, step, 2*step, ... while the origin is below extent - size.
func Origins(extent, size, step int) []int {
	out := make([]int, 0)
	if step <= 0 {
		return out
	}
	for o := 0; o < extent-size; o += step {
		out = append(out, o)
	}
	return out
}

// Scan tiles img into windows and searches every left and upper neighbour
// pair. The configuration is validated before any histogram is extracted.
// An image smaller than one window yields an empty table.
func (s *Scanner) Scan(ctx context.Context, img image.Image) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNilImage
	}

	start := time.Now()
	bounds := img.Bounds()
	rows := Origins(bounds.Dy(), s.window.Height, s.step.Height)
	cols := Origins(bounds.Dx(), s.window.Width, s.step.Width)

	result := &Result{
		Rows: len(rows),
		Cols: len(cols),
	}

	var previous []histogram.Histogram
	index := 0

	for ri, row := range rows {
		select {
		case <-ctx.Done():
			s.logger.Warn("scan cancelled",
				"row", ri,
				"rows", len(rows),
				"reason", ctx.Err(),
			)
			return nil, ctx.Err()
		default:
		}

		current, err := s.extractRow(ctx, img, row, cols)
		if err != nil {
			return nil, err
		}
		result.Windows += len(current)

		pairs, err := s.evaluateRow(ctx, row, cols, previous, current)
		if err != nil {
			return nil, err
		}

		for i := range pairs {
			pairs[i].Index = index
			index++
			result.Table.Record(pairs[i].Result.Opacity)
			if s.observer != nil {
				s.observer(&pairs[i])
			}
		}
		result.Pairs += len(pairs)

		previous = current
	}

	result.Elapsed = time.Since(start)

	s.logger.Debug("scan complete",
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"window", s.window.String(),
		"step", s.step.String(),
		"opacityRange", s.opacityRange.String(),
		"windows", result.Windows,
		"pairs", result.Pairs,
		"detected", result.Table.Detected(),
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// windowAt returns the window at the given origin.
func (s *Scanner) windowAt(row, col int) histogram.Window {
	return histogram.Window{
		Row:    row,
		Col:    col,
		Height: s.window.Height,
		Width:  s.window.Width,
	}
}

// extractRow computes the histograms of all windows of one row.
func (s *Scanner) extractRow(ctx context.Context, img image.Image, row int, cols []int) ([]histogram.Histogram, error) {
	hs := make([]histogram.Histogram, len(cols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for ci, col := range cols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hs[ci] = histogram.Extract(img, s.windowAt(row, col))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hs, nil
}

// evaluateRow runs the opacity search for every pair ending in this row.
// For each window the left pair precedes the upper pair.
func (s *Scanner) evaluateRow(ctx context.Context, row int, cols []int, previous, current []histogram.Histogram) ([]Pair, error) {
	pairs := make([]Pair, 0, 2*len(cols))
	for ci, col := range cols {
		if ci > 0 {
			pairs = append(pairs, Pair{
				Direction:          Horizontal,
				Reference:          s.windowAt(row, cols[ci-1]),
				Target:             s.windowAt(row, col),
				ReferenceHistogram: &current[ci-1],
				TargetHistogram:    &current[ci],
			})
		}
		if previous != nil {
			pairs = append(pairs, Pair{
				Direction:          Vertical,
				Reference:          s.windowAt(row-s.step.Height, col),
				Target:             s.windowAt(row, col),
				ReferenceHistogram: &previous[ci],
				TargetHistogram:    &current[ci],
			})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := &pairs[i]
			p.Result = opacity.Search(p.ReferenceHistogram, p.TargetHistogram, s.opacityRange)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}
