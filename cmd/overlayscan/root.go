package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for overlayscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlayscan",
		Short: "Estimate watermark overlay opacity in images",
		Long: `overlayscan estimates the opacity of a semi-transparent white overlay,
such as a watermark, from the image alone.

It slides a window over the image, compares the colour histograms of
neighbouring windows, and records which overlay opacity best explains the
difference between them. The frequency table of those opacities shows
whether, and how strongly, an overlay is present.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
