package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/overlayscan/internal/model"
)

// Step is one stage of scanning an image. Do fills the report fields that
// later steps read; a step whose inputs are missing returns an error.
type Step interface {
	// Name identifies the step in logs and in ScanReport.Steps.
	Name() string

	// Do runs the step on report. Long-running steps observe ctx.
	Do(ctx context.Context, report *model.ScanReport) error
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, report *model.ScanReport) error
}

// Name implements Step.
func (f StepFunc) Name() string { return f.StepName }

// Do implements Step. A nil Fn does nothing.
func (f StepFunc) Do(ctx context.Context, report *model.ScanReport) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, report)
}

// Pipeline runs its steps in order on one report.
// A Pipeline holds no per-image state and may be reused for several images,
// one at a time.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps running later steps after a failure.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithContinueOnError makes the pipeline run the remaining steps after a
// step fails. The first error is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddStep appends steps in execution order.
func (p *Pipeline) AddStep(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Len returns the number of steps.
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// Names returns the step names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Execute runs the steps on report and appends a StepRecord per step.
//
// If ctx is done before a step starts, or a step returns the context's
// error, the report is marked Cancelled and ctx.Err() is returned; a
// cancelled scan is not a failed one. Any other step error is recorded with
// report.SetError. Execute then returns it, unless the pipeline continues
// on error, in which case it returns nil once all steps ran.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	logger := p.logger.With("image", report.ImagePath)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			logger.Warn("scan cancelled", "before", step.Name(), "reason", err)
			report.Cancelled = true
			return err
		}

		start := time.Now()
		err := step.Do(ctx, report)
		record := model.StepRecord{Name: step.Name(), Elapsed: time.Since(start)}

		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.Warn("scan cancelled", "during", record.Name, "reason", err)
			report.Steps = append(report.Steps, record)
			report.Cancelled = true
			return err
		}

		if err != nil {
			record.Error = err.Error()
			report.Steps = append(report.Steps, record)
			logger.Error("step failed", "step", record.Name, "error", err)

			if !report.Failed() {
				report.SetError(err)
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		report.Steps = append(report.Steps, record)
		logger.Debug("step completed", "step", record.Name, "elapsed", record.Elapsed)
	}

	return nil
}
