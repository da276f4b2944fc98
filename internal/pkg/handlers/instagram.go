package handlers

import (
	"context"
	"regexp"

	"github.com/forumarch/archiver/pkg/models"
)

// instagramURLRe matches a post, reel, or TV permalink (§4.3).
var instagramURLRe = regexp.MustCompile(`(?i)^https?://(www\.)?instagram\.com/(p|reel|tv)/[\w-]+`)

// instagramHandler is thin routing onto the shared gallery downloader,
// which covers Instagram's single-image, single-video, and multi-image
// carousel posts uniformly the same way it covers Imgur and Twitter
// media (§4.3).
type instagramHandler struct{}

func init() {
	Register(&instagramHandler{})
}

func (h *instagramHandler) SiteID() string { return "instagram" }

func (h *instagramHandler) Priority() int { return 100 }

func (h *instagramHandler) Matches(rawURL string) bool {
	return instagramURLRe.MatchString(rawURL)
}

func (h *instagramHandler) Normalize(rawURL string) string {
	return normalizeVideoURL(rawURL)
}

func (h *instagramHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	return downloadGallery(ctx, req, req.URL)
}
