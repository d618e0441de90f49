package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/nao1215/overlayscan/internal/imageio"
	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/scan"
)

// DefaultMaxPairs caps the number of pair diagnostics kept per image.
const DefaultMaxPairs = 200

// SettingsResolver returns the scan settings for one image path.
type SettingsResolver func(imagePath string) model.Settings

// LoadStep decodes the image file named by the report and records its
// dimensions, fingerprint and metadata.
type LoadStep struct {
	loader *imageio.Loader
	logger *slog.Logger
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadStepOption {
	return func(s *LoadStep) {
		s.logger = logger
	}
}

// WithLoader sets the image loader.
func WithLoader(loader *imageio.Loader) LoadStepOption {
	return func(s *LoadStep) {
		s.loader = loader
	}
}

// NewLoadStep creates a new load step.
func NewLoadStep(opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{
		loader: imageio.NewLoader(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do executes the load step.
func (s *LoadStep) Do(ctx context.Context, report *model.ScanReport) error {
	src, err := s.loader.Load(ctx, report.ImagePath)
	if err != nil {
		return err
	}

	report.Image = src.Image
	report.Format = src.Format
	report.Width = src.Width
	report.Height = src.Height
	report.FileSize = src.Size
	report.Fingerprint = src.Fingerprint
	for k, v := range src.Metadata {
		report.Metadata[k] = v
	}

	exif := make([]any, 0, len(src.Metadata))
	for _, k := range slices.Sorted(maps.Keys(src.Metadata)) {
		exif = append(exif, slog.String(strings.ToLower(k), src.Metadata[k]))
	}

	s.logger.Debug("image loaded",
		"image", report.ImagePath,
		"format", src.Format,
		"width", src.Width,
		"height", src.Height,
		"fingerprint", src.Fingerprint,
		slog.Group("exif", exif...),
	)

	return nil
}

// ScanStep runs the window scan over the loaded image and fills the
// opacity table. The decoded image is released afterwards.
type ScanStep struct {
	settings    model.Settings
	resolver    SettingsResolver
	diagnostics bool
	maxPairs    int
	logger      *slog.Logger
}

// ScanStepOption configures a ScanStep.
type ScanStepOption func(*ScanStep)

// WithScanSettingsResolver sets a per-image settings lookup that replaces
// the fixed settings.
func WithScanSettingsResolver(resolver SettingsResolver) ScanStepOption {
	return func(s *ScanStep) {
		s.resolver = resolver
	}
}

// WithScanDiagnostics enables pair diagnostics, keeping at most maxPairs
// of them. A non-positive maxPairs keeps every detected pair.
func WithScanDiagnostics(maxPairs int) ScanStepOption {
	return func(s *ScanStep) {
		s.diagnostics = true
		s.maxPairs = maxPairs
	}
}

// WithScanLogger sets a custom logger for the scan step.
func WithScanLogger(logger *slog.Logger) ScanStepOption {
	return func(s *ScanStep) {
		s.logger = logger
	}
}

// NewScanStep creates a new scan step with the given settings.
func NewScanStep(settings model.Settings, opts ...ScanStepOption) *ScanStep {
	s := &ScanStep{
		settings: settings,
		maxPairs: DefaultMaxPairs,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ScanStep) Name() string {
	return "scan"
}

// Do executes the scan step.
func (s *ScanStep) Do(ctx context.Context, report *model.ScanReport) error {
	if report.Image == nil {
		return ErrNoImage
	}

	settings := s.settings
	if s.resolver != nil {
		settings = s.resolver(report.ImagePath)
	}
	report.Settings = settings

	opts := []scan.Option{
		scan.WithWindow(settings.Window),
		scan.WithStep(settings.Step),
		scan.WithOpacityRange(settings.Opacity),
		scan.WithWorkers(settings.Workers),
		scan.WithLogger(s.logger),
	}
	if s.diagnostics {
		opts = append(opts, scan.WithObserver(func(p *scan.Pair) {
			if p.Result.Improved() {
				report.AddDiagnostic(model.NewPairDiagnostic(p), s.maxPairs)
			}
		}))
	}

	res, err := scan.New(opts...).Scan(ctx, report.Image)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", report.ImagePath, err)
	}

	report.Table = res.Table
	report.Rows = res.Rows
	report.Cols = res.Cols
	report.Windows = res.Windows
	report.Pairs = res.Pairs
	report.Elapsed = res.Elapsed
	report.Image = nil

	s.logger.Info("image scanned",
		"image", report.ImagePath,
		"pairs", res.Pairs,
		"detected", res.Table.Detected(),
	)

	return nil
}

// SummaryStep condenses the opacity table into a Summary.
type SummaryStep struct{}

// NewSummaryStep creates a new summary step.
func NewSummaryStep() *SummaryStep {
	return &SummaryStep{}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do executes the summary step.
func (s *SummaryStep) Do(_ context.Context, report *model.ScanReport) error {
	report.Summary = model.NewSummary(&report.Table)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Resolver picks per-image settings; nil applies the pipeline settings
	// to every image.
	Resolver SettingsResolver

	// Diagnostics enables pair diagnostics.
	Diagnostics bool

	// MaxPairs caps the number of diagnostics per image.
	MaxPairs int

	// MaxFileSize is the largest image file accepted, in bytes.
	MaxFileSize int64
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSettingsResolver sets the per-image settings lookup.
func WithPipelineSettingsResolver(resolver SettingsResolver) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Resolver = resolver
	}
}

// WithPipelineDiagnostics enables pair diagnostics capped at maxPairs.
func WithPipelineDiagnostics(maxPairs int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Diagnostics = true
		c.MaxPairs = maxPairs
	}
}

// WithPipelineMaxFileSize sets the largest accepted image file in bytes.
func WithPipelineMaxFileSize(n int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxFileSize = n
	}
}

// DefaultPipeline creates the standard load, scan and summary pipeline.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineDiagnostics, etc).
func DefaultPipeline(settings model.Settings, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		MaxPairs:    DefaultMaxPairs,
		MaxFileSize: imageio.DefaultMaxFileSize,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	scanOpts := []ScanStepOption{
		WithScanLogger(p.logger),
	}
	if cfg.Resolver != nil {
		scanOpts = append(scanOpts, WithScanSettingsResolver(cfg.Resolver))
	}
	if cfg.Diagnostics {
		scanOpts = append(scanOpts, WithScanDiagnostics(cfg.MaxPairs))
	}

	p.AddStep(
		NewLoadStep(
			WithLoader(imageio.NewLoader(imageio.WithMaxFileSize(cfg.MaxFileSize))),
			WithLoadLogger(p.logger),
		),
		NewScanStep(settings, scanOpts...),
		NewSummaryStep(),
	)

	return p
}
