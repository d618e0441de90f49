package log

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

// privateKeys are attribute keys whose values identify people rather than
// images. They come from EXIF tags copied into log records.
var privateKeys = map[string]bool{
	"artist":           true,
	"copyright":        true,
	"owner":            true,
	"ownername":        true,
	"cameraownername":  true,
	"serialnumber":     true,
	"bodyserialnumber": true,
	"gpslatitude":      true,
	"gpslongitude":     true,
	"gpsposition":      true,
}

// MaskValue is the string used to replace private values.
const MaskValue = "***REDACTED***"

// fingerprintKey values are shortened to fingerprintLen characters.
const (
	fingerprintKey = "fingerprint"
	fingerprintLen = 16
)

// PrivacyHandler wraps an slog.Handler and rewrites attributes before they
// reach it: private EXIF values are masked, the home directory prefix of
// paths is replaced with "~", and content fingerprints are shortened.
type PrivacyHandler struct {
	// handler is the underlying slog handler that receives rewritten records.
	handler slog.Handler

	// home is the directory replaced by "~"; empty disables the rewrite.
	home string
}

// NewPrivacyHandler creates a PrivacyHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewPrivacyHandler(handler slog.Handler, home string) *PrivacyHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if home != "" {
		home = filepath.Clean(home)
	}
	return &PrivacyHandler{handler: handler, home: home}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrivacyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the record's attributes and passes it on.
func (h *PrivacyHandler) Handle(ctx context.Context, r slog.Record) error {
	rewritten := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		rewritten.AddAttrs(h.rewriteAttr(a))
		return true
	})

	return h.handler.Handle(ctx, rewritten)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *PrivacyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rewritten := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		rewritten[i] = h.rewriteAttr(a)
	}
	return &PrivacyHandler{handler: h.handler.WithAttrs(rewritten), home: h.home}
}

// WithGroup returns a new handler with the given group name.
func (h *PrivacyHandler) WithGroup(name string) slog.Handler {
	return &PrivacyHandler{handler: h.handler.WithGroup(name), home: h.home}
}

// rewriteAttr rewrites a single attribute, recursing into groups.
func (h *PrivacyHandler) rewriteAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		rewritten := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			rewritten[i] = h.rewriteAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(rewritten...)}
	}

	key := strings.ToLower(a.Key)
	if privateKeys[key] {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}

	s := a.Value.String()
	if key == fingerprintKey && len(s) > fingerprintLen {
		return slog.String(a.Key, s[:fingerprintLen])
	}
	if short, ok := h.shortenHome(s); ok {
		return slog.String(a.Key, short)
	}
	return a
}

// shortenHome replaces a leading home directory with "~".
func (h *PrivacyHandler) shortenHome(s string) (string, bool) {
	if h.home == "" || h.home == string(filepath.Separator) {
		return s, false
	}
	if s == h.home {
		return "~", true
	}
	if strings.HasPrefix(s, h.home+string(filepath.Separator)) {
		return "~" + s[len(h.home):], true
	}
	return s, false
}
