package imageio

import (
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// metadataTags are the EXIF tags copied into Source.Metadata.
// Editing software and rights information often accompany a watermark.
var metadataTags = map[string]bool{
	"Software":         true,
	"Artist":           true,
	"Copyright":        true,
	"ImageDescription": true,
	"Make":             true,
	"Model":            true,
	"DateTime":         true,
}

// ReadMetadata extracts selected EXIF tags from encoded image bytes.
// Images without EXIF data, or with unreadable EXIF data, yield an empty map.
func ReadMetadata(data []byte) map[string]string {
	result := make(map[string]string)

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return result
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return result
	}

	for _, entry := range entries {
		if !metadataTags[entry.TagName] {
			continue
		}
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		if value == "" {
			continue
		}
		// IFD0 comes first; keep it over thumbnail IFD duplicates
		if _, ok := result[entry.TagName]; !ok {
			result[entry.TagName] = value
		}
	}

	return result
}
