package handlers

import (
	"context"
	"regexp"

	"github.com/forumarch/archiver/pkg/models"
)

var streamableURLRe = regexp.MustCompile(`(?i)^https?://(www\.)?streamable\.com/[a-zA-Z0-9]+`)
var streamableVideoIDRe = regexp.MustCompile(`(?i)streamable\.com/([a-zA-Z0-9]+)`)

// streamableHandler mirrors the YouTube/TikTok shared video-extractor
// path (§4.3) -- Streamable is a single-video host with no playlist or
// gallery concept.
type streamableHandler struct{}

func init() {
	Register(&streamableHandler{})
}

func (h *streamableHandler) SiteID() string { return "streamable" }

func (h *streamableHandler) Priority() int { return 100 }

func (h *streamableHandler) Matches(rawURL string) bool {
	return streamableURLRe.MatchString(rawURL)
}

func (h *streamableHandler) Normalize(rawURL string) string {
	return normalizeVideoURL(rawURL)
}

func (h *streamableHandler) VideoID(rawURL string) (string, bool) {
	m := streamableVideoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (h *streamableHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	meta, err := probeVideoMetadata(ctx, req.URL, req.CookiesFilePath)
	if err != nil {
		return nil, err
	}
	return downloadVideo(ctx, req, meta, nil)
}
