// Package config provides configuration structures and utilities for overlayscan.
// It defines scan geometry and opacity defaults, validation, the optional
// .overlayscan profile file with per-image overrides, and XDG paths.
package config
