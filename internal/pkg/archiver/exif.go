package archiver

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// extractEXIFJSON decodes EXIF tags from an image blob and returns them
// as a JSON object suitable for ArchiveArtifact.MetadataJSON. Most
// images carry no EXIF block at all (PNGs, re-encoded JPEGs, anything
// that already passed through a CDN) -- that's the common case, not an
// error, so callers get ("", false) rather than a wrapped archerr.
func extractEXIFJSON(data []byte) (string, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	blob, err := x.MarshalJSON()
	if err != nil {
		return "", false
	}
	return string(blob), true
}
