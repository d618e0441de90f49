package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/overlayscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of images a BatchProcessor scans at once
// unless configured otherwise.
const DefaultConcurrency = 4

// BatchProcessor scans many images with a bounded number of concurrent
// pipelines. One failing image never stops the others; its error stays in
// its report. Only cancellation ends a batch early.
type BatchProcessor struct {
	// newPipeline is called once per image so that no step state is shared.
	newPipeline func() *Pipeline

	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger. A nil logger keeps slog.Default().
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that builds one pipeline per
// image with newPipeline.
func NewBatchProcessor(newPipeline func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		newPipeline: newPipeline,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(bp)
	}
	return bp
}

// Concurrency returns the maximum number of concurrent scans.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// ProcessBatch scans imagePaths and returns the reports in input order,
// failed scans included. Entries of images that were not finished before
// cancellation are nil. The error is non-nil only if ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, imagePaths []string) ([]*model.ScanReport, error) {
	reports := make([]*model.ScanReport, len(imagePaths))
	err := bp.ProcessBatchWithCallback(ctx, imagePaths, func(report *model.ScanReport, index int) {
		reports[index] = report
	})
	return reports, err
}

// ProcessBatchWithCallback scans imagePaths and calls callback with every
// finished report and its index in imagePaths, in completion order.
//
// The callback runs on the goroutine that finished the scan, so it must be
// safe for concurrent use. It is not called for cancelled scans.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	imagePaths []string,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch",
		"images", len(imagePaths),
		"concurrency", bp.concurrency,
	)

	start := time.Now()
	var failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range imagePaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			report := model.NewScanReport(path)
			err := bp.newPipeline().Execute(ctx, report)
			if report.Cancelled {
				return err
			}
			if report.Failed() {
				failed.Add(1)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch complete",
		"images", len(imagePaths),
		"failed", failed.Load(),
		"elapsed", time.Since(start),
	)

	return err
}
