package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/overlayscan/internal/config"
	"github.com/nao1215/overlayscan/internal/database"
	ovlog "github.com/nao1215/overlayscan/internal/log"
	"github.com/nao1215/overlayscan/internal/model"
	"github.com/nao1215/overlayscan/internal/pipeline"
	"github.com/nao1215/overlayscan/internal/report"
	"github.com/spf13/cobra"
)

// errScansFailed is returned when at least one image could not be scanned.
var errScansFailed = errors.New("some scans failed")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [image]...",
		Short: "Estimate overlay opacity in one or more images",
		Long: `Scan slides a window over each image and compares every window with its
left and upper neighbours. For each pair it searches the opacity of a white
overlay that, once removed, makes the two histograms agree best. The
resulting frequency table shows how often each opacity was selected.

Supported formats: PNG, JPEG, GIF, BMP, TIFF and WebP.

Examples:
  # Scan a single image
  overlayscan scan photo.png

  # Scan several images, four at a time
  overlayscan scan -b 4 shots/*.jpg

  # Larger windows and a wider opacity range
  overlayscan scan -w 64 -s 16 --opacity-min 5 --opacity-max 80 photo.png

  # Markdown report with the pairs that pointed to an overlay
  overlayscan scan -m -P -o report.md photo.png

  # JSON output without touching the scan history
  overlayscan scan --json --no-db photo.png

Profile file (.overlayscan) example:
  defaults:
    window: 48x48
  images:
    "scans/*.tif":
      window: 80x80
      step: 20x20`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	defaults := config.NewConfig()

	// Scan geometry flags
	cmd.Flags().StringP("window", "w", defaults.Window.String(),
		"Window size as N or HEIGHTxWIDTH")
	cmd.Flags().StringP("step", "s", defaults.Step.String(),
		"Stride between windows as N or HEIGHTxWIDTH (must be smaller than the window)")
	cmd.Flags().Int("opacity-min", defaults.Opacity.Min,
		"Lowest overlay opacity searched, in percent")
	cmd.Flags().Int("opacity-max", defaults.Opacity.Max,
		"Highest overlay opacity searched, in percent")
	cmd.Flags().IntP("workers", "W", defaults.Workers,
		"Number of window rows evaluated concurrently per image")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of images scanned concurrently")
	cmd.Flags().Int64("max-file-size", config.DefaultMaxFileSize,
		"Largest image file to decode, in bytes")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Profile file path (default: .overlayscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("pairs", "P", false,
		"Include the window pairs that selected an opacity")
	cmd.Flags().Int("max-pairs", config.DefaultMaxPairs,
		"Maximum number of pairs listed per image (0 = unlimited)")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Do not save results to the scan history")
	cmd.Flags().String("db-dir", "",
		"Scan history directory (default: XDG data directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := ovlog.New(cmd.ErrOrStderr(), ovlog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.JSONLog,
	})
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getBoolFlag retrieves a bool flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	window, err := flags.GetString("window")
	if err != nil {
		return nil, err
	}
	if cfg.Window, err = config.ParseSize(window); err != nil {
		return nil, fmt.Errorf("--window: %w", err)
	}

	step, err := flags.GetString("step")
	if err != nil {
		return nil, err
	}
	if cfg.Step, err = config.ParseSize(step); err != nil {
		return nil, fmt.Errorf("--step: %w", err)
	}

	if cfg.Opacity.Min, err = flags.GetInt("opacity-min"); err != nil {
		return nil, err
	}
	if cfg.Opacity.Max, err = flags.GetInt("opacity-max"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MaxFileSize, err = flags.GetInt64("max-file-size"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit profile path must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.Profiles, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ShowPairs, err = flags.GetBool("pairs"); err != nil {
		return nil, err
	}
	if cfg.MaxPairs, err = flags.GetInt("max-pairs"); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.JSONLog = getBoolFlag(cmd, "log-json")

	cfg.Targets = make([]string, len(args))
	for i, arg := range args {
		cfg.Targets[i] = filepath.Clean(arg)
	}

	return cfg, nil
}

// scanSession holds what the scan of several images shares.
type scanSession struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.ScanDB
	writer report.Writer
	errOut io.Writer

	mu     sync.Mutex
	failed int
}

// runScan executes the scan of every target and writes the reports.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	logger.Info("starting scan",
		"targets", len(cfg.Targets),
		"window", cfg.Window.String(),
		"step", cfg.Step.String(),
		"opacity", cfg.Opacity.String(),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	s := &scanSession{
		cfg:    cfg,
		logger: logger,
		errOut: errOut,
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		s.db = db
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	s.writer = newReportWriter(cfg, out)
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()

		// The file gets the requested format; the terminal a text summary.
		s.writer = report.NewMultiWriter(
			newReportWriter(cfg, f),
			report.NewSimpleWriter(out),
		)
	}

	var err error
	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		err = s.runBatch(ctx)
	} else {
		err = s.runSequential(ctx)
	}
	if err != nil {
		return err
	}

	if s.failed > 0 {
		return fmt.Errorf("%w: %d of %d", errScansFailed, s.failed, len(cfg.Targets))
	}
	return nil
}

// runSequential scans targets one at a time.
func (s *scanSession) runSequential(ctx context.Context) error {
	for _, target := range s.cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p := createPipeline(s.cfg, s.logger)
		scanReport := model.NewScanReport(target)

		fmt.Fprintf(s.errOut, "Scanning %s...\n", target)
		startTime := time.Now()

		if err := p.Execute(ctx, scanReport); err != nil && scanReport.Cancelled {
			return err
		}

		fmt.Fprintf(s.errOut, "Scan completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))
		s.handleReport(ctx, scanReport)
	}

	return nil
}

// runBatch scans targets concurrently using BatchProcessor.
func (s *scanSession) runBatch(ctx context.Context) error {
	fmt.Fprintf(s.errOut, "Starting batch scan of %d images (concurrency: %d)...\n\n",
		len(s.cfg.Targets), s.cfg.BatchSize)

	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return createPipeline(s.cfg, s.logger)
		},
		pipeline.WithConcurrency(s.cfg.BatchSize),
		pipeline.WithBatchLogger(s.logger),
	)

	var done int
	err := bp.ProcessBatchWithCallback(ctx, s.cfg.Targets, func(scanReport *model.ScanReport, _ int) {
		s.mu.Lock()
		done++
		fmt.Fprintf(s.errOut, "[%d/%d] Scan completed: %s\n", done, len(s.cfg.Targets), scanReport.ImagePath)
		s.mu.Unlock()

		s.handleReport(ctx, scanReport)
	})

	fmt.Fprintf(s.errOut, "\nBatch scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return err
}

// handleReport writes a finished report and stores it in the history.
// It is safe for concurrent use.
func (s *scanSession) handleReport(ctx context.Context, scanReport *model.ScanReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scanReport.Failed() {
		s.failed++
		fmt.Fprintf(s.errOut, "Scan error for %s: %s\n", scanReport.ImagePath, scanReport.ErrorMessage)
	}

	if _, err := s.writer.Write(scanReport); err != nil {
		s.logger.Error("report failed", "image", scanReport.ImagePath, "error", err)
	}

	if err := s.saveScanReport(ctx, scanReport); err != nil {
		s.logger.Error("failed to save scan report", "image", scanReport.ImagePath, "error", err)
	}
}

// createPipeline creates the scan pipeline for the configuration.
func createPipeline(cfg *config.Config, logger *slog.Logger) *pipeline.Pipeline {
	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(false),
	}

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineSettingsResolver(cfg.SettingsFor),
		pipeline.WithPipelineMaxFileSize(cfg.MaxFileSize),
	}
	if cfg.ShowPairs {
		configOpts = append(configOpts, pipeline.WithPipelineDiagnostics(cfg.MaxPairs))
	}

	return pipeline.DefaultPipeline(cfg.Settings(), pipelineOpts, configOpts...)
}

// newReportWriter returns the writer for the requested format. JSON reports
// carry the overlayscan version; several of them are written one per line.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport && len(cfg.Targets) > 1:
		return report.NewFullJSONWriter(out, getVersion())
	case cfg.JSONReport:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.ShowPairs))
	}
}

// createReportFile creates the report file and its parent directories.
// The file is only readable by the owner since reports carry image metadata.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// saveScanReport saves a successful report to the history and notes when
// the same image content was scanned before under another path.
// If the database is disabled, this is a no-op.
func (s *scanSession) saveScanReport(ctx context.Context, scanReport *model.ScanReport) error {
	if s.db == nil || scanReport.Failed() || scanReport.Cancelled {
		return nil
	}

	if scanReport.Fingerprint != "" {
		seen, err := s.db.FindByFingerprint(ctx, scanReport.Fingerprint)
		if err != nil {
			return err
		}
		for _, meta := range seen {
			if meta.ImagePath != scanReport.ImagePath {
				fmt.Fprintf(s.errOut, "Note: %s has the same content as %s (scan #%d)\n",
					scanReport.ImagePath, meta.ImagePath, meta.ID)
				break
			}
		}
	}

	id, err := s.db.SaveScanReport(ctx, scanReport)
	if err != nil {
		return err
	}

	s.logger.Info("scan report saved to database", "image", scanReport.ImagePath, "id", id)
	return nil
}
