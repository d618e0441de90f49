package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/overlayscan/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/overlayscan.yaml
var configTemplate embed.FS

// templatePath is the template location inside configTemplate.
const templatePath = "templates/overlayscan.yaml"

// configFileName is the default profile file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a profile file with per-image scan settings",
		Long: `Init writes a commented profile template.

The template documents the defaults section and per-image overrides keyed
by glob patterns (window, step and opacity range). Every entry is commented
out, so the file changes nothing until edited.

Examples:
  # Create .overlayscan in current directory
  overlayscan init

  # Create the file at a specific path, replacing an existing one
  overlayscan init -f -o profiles/overlayscan.yaml

  # Print the template instead of writing a file
  overlayscan init --print > ~/.config/overlayscan/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName, "Path of the profile file to create")
	cmd.Flags().BoolP("force", "f", false, "Replace an existing profile file")
	cmd.Flags().BoolP("print", "p", false, "Write the template to stdout")

	return cmd
}

type initOptions struct {
	output string
	force  bool
	print  bool
}

func initOptionsFromFlags(cmd *cobra.Command) (initOptions, error) {
	var opts initOptions
	var err error
	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return opts, err
	}
	if opts.force, err = cmd.Flags().GetBool("force"); err != nil {
		return opts, err
	}
	if opts.print, err = cmd.Flags().GetBool("print"); err != nil {
		return opts, err
	}
	return opts, nil
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	opts, err := initOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read profile template: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.print {
		_, err := out.Write(content)
		return err
	}

	if err := writeProfile(opts.output, content, opts.force); err != nil {
		return err
	}

	fmt.Fprintf(out, "Created profile file: %s\n", opts.output)
	fmt.Fprintln(out, "Uncomment entries to override the window, step or opacity range per image.")
	return nil
}

// writeProfile writes content to path with mode 0600, creating parent
// directories. An existing file is kept unless force is set.
func writeProfile(path string, content []byte, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("profile file already exists: %s (use -f to overwrite)", path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	return nil
}
