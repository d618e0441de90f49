// Package imageio loads images for scanning.
//
// Decoding uses the standard library decoders (PNG, JPEG, GIF) plus the BMP,
// TIFF and WebP decoders from golang.org/x/image. Besides the decoded image,
// a Source carries a SHA3-256 fingerprint of the file content, used to
// recognise the same image across scans, and a small set of EXIF tags that
// tend to name the software or the rights holder responsible for an overlay.
package imageio
