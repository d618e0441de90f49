// Package log builds the slog loggers used by overlayscan.
//
// New returns a text or JSON logger at Warn level, or Debug when verbose.
// Every logger is wrapped in a PrivacyHandler so that logs can be shared
// without leaking who owns an image:
//   - EXIF owner tags (Artist, Copyright, serial numbers, GPS) are masked
//   - paths under the home directory are shown as "~/..."
//   - content fingerprints are shortened
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Info("image loaded", "image", "/home/alice/pics/a.png", "artist", "Alice")
//	// image=~/pics/a.png artist=***REDACTED***
package log
