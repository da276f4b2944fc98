package archiver

import (
	"path/filepath"
	"strings"

	"github.com/forumarch/archiver/pkg/models"
)

// extensionMIME is the fixed extension -> content-type mapping used to
// compute an upload's Content-Type header (§4.5 step 5: "Compute MIME via
// extension mapping").
var extensionMIME = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".json": "application/json",
	".txt":  "text/plain",
	".vtt":  "text/vtt",
	".srt":  "application/x-subrip",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".pdf":  "application/pdf",
	".mhtml": "multipart/related",
	".mht":   "multipart/related",
}

// mimeForFilename returns the extension-mapped content type, falling back
// to application/octet-stream for anything unrecognized.
func mimeForFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := extensionMIME[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// extraFileKind implements §4.5 step 5's "kind chosen by content type"
// rule for extra files: image/* -> image, video/* -> video, subtitle
// extensions -> subtitles, everything else -> metadata.
func extraFileKind(name string) models.ArtifactKind {
	ct := mimeForFilename(name)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case strings.HasPrefix(ct, "image/"):
		return models.ArtifactKindImage
	case strings.HasPrefix(ct, "video/"):
		return models.ArtifactKindVideo
	case ext == ".vtt" || ext == ".srt" || strings.Contains(strings.ToLower(name), "subtitle"):
		return models.ArtifactKindSubtitles
	default:
		return models.ArtifactKindMetadata
	}
}

func isImageOrVideoMIME(ct string) bool {
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/")
}

// parseSubtitleFilename implements the subtitle metadata convention of
// §4.5 step 5 / §8's boundary behaviors: `<stem>.<lang>.<ext>`, with
// is_auto detected when the filename has a segment before the language
// part whose text contains "auto" (e.g. "title.auto.en.vtt").
func parseSubtitleFilename(name string) (language string, isAuto bool, format string) {
	base := filepath.Base(name)
	parts := strings.Split(base, ".")
	format = strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")

	if len(parts) >= 2 {
		language = parts[len(parts)-2]
	}
	if len(parts) > 2 && strings.Contains(strings.ToLower(parts[len(parts)-3]), "auto") {
		isAuto = true
	}
	return language, isAuto, format
}
