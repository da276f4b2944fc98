package handlers

import (
	"context"
	"regexp"

	"github.com/forumarch/archiver/pkg/models"
)

var tiktokURLRe = regexp.MustCompile(`(?i)^https?://(www\.|vm\.|vt\.)?tiktok\.com/`)
var tiktokVideoIDRe = regexp.MustCompile(`(?i)tiktok\.com/@[^/]+/video/(\d+)`)

// tiktokHandler covers tiktok.com short and canonical URLs (§4.2, §4.11).
type tiktokHandler struct{}

func init() {
	Register(&tiktokHandler{})
}

func (h *tiktokHandler) SiteID() string { return "tiktok" }

func (h *tiktokHandler) Priority() int { return 100 }

func (h *tiktokHandler) Matches(rawURL string) bool {
	return tiktokURLRe.MatchString(rawURL)
}

func (h *tiktokHandler) Normalize(rawURL string) string {
	return normalizeVideoURL(rawURL)
}

func (h *tiktokHandler) VideoID(rawURL string) (string, bool) {
	m := tiktokVideoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Archive mirrors the YouTube handler; TikTok's short URLs need yt-dlp's own
// redirect-resolution, so no separate shortlink expansion step is required
// here the way it is for Reddit.
func (h *tiktokHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	meta, err := probeVideoMetadata(ctx, req.URL, req.CookiesFilePath)
	if err != nil {
		return nil, err
	}
	return downloadVideo(ctx, req, meta, nil)
}
