package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/forumarch/archiver/pkg/models"
)

var facebookURLRe = regexp.MustCompile(`(?i)^https?://(www\.|m\.|web\.)?facebook\.com/`)
var facebookReelRe = regexp.MustCompile(`(?i)facebook\.com/(reel/|[^/]+/videos/)`)

// facebookHandler routes to the shared video extractor. Facebook's
// auto-generated title for reels is just the view/reaction counts, so
// when a description is present it is used as the title instead (§4.3).
type facebookHandler struct{}

func init() {
	Register(&facebookHandler{})
}

func (h *facebookHandler) SiteID() string { return "facebook" }

func (h *facebookHandler) Priority() int { return 100 }

func (h *facebookHandler) Matches(rawURL string) bool {
	return facebookURLRe.MatchString(rawURL)
}

func (h *facebookHandler) Normalize(rawURL string) string {
	return normalizeVideoURL(rawURL)
}

func (h *facebookHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	meta, err := probeVideoMetadata(ctx, req.URL, req.CookiesFilePath)
	if err != nil {
		return nil, err
	}

	result, err := downloadVideo(ctx, req, meta, nil)
	if err != nil {
		return nil, err
	}

	if facebookReelRe.MatchString(req.URL) && strings.TrimSpace(meta.Description) != "" {
		result.Title = meta.Description
	}

	return result, nil
}
