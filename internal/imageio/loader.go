package imageio

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/crypto/sha3"
)

// DefaultMaxFileSize limits the size of image files read by a Loader.
const DefaultMaxFileSize = 256 * 1024 * 1024 // 256MB

// Source is a decoded image together with the information needed to report
// on it and to recognise it later.
type Source struct {
	// Path is the file the image was read from, or the name given to Decode.
	Path string

	// Format is the decoder name, e.g. "png" or "jpeg".
	Format string

	// Image is the decoded image.
	Image image.Image

	// Width and Height are the image dimensions in pixels.
	Width  int
	Height int

	// Size is the encoded size in bytes.
	Size int64

	// Fingerprint is the hex SHA3-256 digest of the encoded bytes.
	Fingerprint string

	// Metadata holds selected EXIF tags; it is empty when the image has none.
	Metadata map[string]string
}

// Loader reads and decodes image files.
type Loader struct {
	maxFileSize int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxFileSize sets the largest accepted file size in bytes.
// Non-positive values are ignored.
func WithMaxFileSize(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxFileSize = n
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and decodes the image file at path.
func (l *Loader) Load(ctx context.Context, path string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path) //nolint:gosec // Scanning user-provided paths is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, path, info.Size(), l.maxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, l.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > l.maxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path, l.maxFileSize)
	}

	return l.Decode(data, path)
}

// Decode decodes encoded image bytes. name is recorded as the Source path.
func (l *Loader) Decode(data []byte, name string) (*Source, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
		}
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, name)
	}

	return &Source{
		Path:        name,
		Format:      format,
		Image:       img,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Size:        int64(len(data)),
		Fingerprint: Fingerprint(data),
		Metadata:    ReadMetadata(data),
	}, nil
}

// Fingerprint returns the hex SHA3-256 digest of data.
func Fingerprint(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
