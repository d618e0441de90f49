package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the profile file name looked up in the current and
// home directories.
const DefaultConfigFile = ".overlayscan"

// xdgConfigFile is the profile file name inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the profile file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads image profiles from a YAML file.
//
// Unknown keys are rejected so that a misspelled setting does not silently
// fall back to the command line value. An empty file yields empty profiles.
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided profile path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cf File
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Images == nil {
		cf.Images = make(map[string]ImageConfig)
	}

	if err := cf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration file %s: %w", path, err)
	}

	return &cf, nil
}

// SearchPaths returns the locations FindConfigFile looks at when no path is
// given, in order:
//  1. .overlayscan in the current directory
//  2. config.yaml in the XDG config directory
//  3. .overlayscan in the home directory
func SearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	paths = append(paths, filepath.Join(XDGConfigDir(), xdgConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

// FindConfigFile returns configPath if it names an existing file, or the
// first existing entry of SearchPaths when configPath is empty. It returns
// "" if nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if isFile(configPath) {
			return configPath
		}
		return ""
	}

	for _, path := range SearchPaths() {
		if isFile(path) {
			return path
		}
	}
	return ""
}

// isFile reports whether path exists and is not a directory.
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
