package log

import (
	"io"
	"log/slog"
	"os"
)

// Options configures New.
type Options struct {
	// Verbose sets the level to Debug; otherwise Warn.
	Verbose bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// Home is the directory shown as "~" in logged paths.
	// Empty means the current user's home directory.
	Home string
}

// New creates a logger writing to w through a PrivacyHandler.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	home := opts.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	return slog.New(NewPrivacyHandler(handler, home))
}
