package handlers

import (
	"context"
	"regexp"

	"github.com/forumarch/archiver/pkg/models"
)

// imgurURLRe matches a direct Imgur post, gallery, or album permalink
// (§4.3). Direct i.imgur.com media blobs are handled inline by
// reddit.go's isDirectRedditMedia path and don't need routing here.
var imgurURLRe = regexp.MustCompile(`(?i)^https?://(www\.|m\.)?imgur\.com/(a/|gallery/)?[a-zA-Z0-9]+`)

// imgurHandler is thin routing onto the shared gallery downloader --
// Imgur posts are always one or more images/videos with no separate
// text body worth a dedicated extractor.
type imgurHandler struct{}

func init() {
	Register(&imgurHandler{})
}

func (h *imgurHandler) SiteID() string { return "imgur" }

func (h *imgurHandler) Priority() int { return 100 }

func (h *imgurHandler) Matches(rawURL string) bool {
	return imgurURLRe.MatchString(rawURL)
}

func (h *imgurHandler) Normalize(rawURL string) string {
	return normalizeVideoURL(rawURL)
}

func (h *imgurHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	return downloadGallery(ctx, req, req.URL)
}
