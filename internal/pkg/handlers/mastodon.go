package handlers

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/mattn/go-mastodon"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/pkg/models"
)

// mastodonStatusRe matches any instance's canonical status permalink
// (§4.3's "fediverse" entry): https://instance.tld/@user/123456.
var mastodonStatusRe = regexp.MustCompile(`(?i)^https?://([a-z0-9.-]+)/@[\w.-]+/(\d+)$`)

// mastodonHandler fetches a toot via its own instance's public REST API --
// every Mastodon instance exposes the same unauthenticated
// /api/v1/statuses/{id} endpoint, so unlike reddit.com there's no single
// host to target.
type mastodonHandler struct{}

func init() {
	Register(&mastodonHandler{})
}

func (h *mastodonHandler) SiteID() string { return "mastodon" }

func (h *mastodonHandler) Priority() int { return 90 }

func (h *mastodonHandler) Matches(rawURL string) bool {
	return mastodonStatusRe.MatchString(rawURL)
}

func (h *mastodonHandler) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = "https"
	return u.String()
}

func (h *mastodonHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	m := mastodonStatusRe.FindStringSubmatch(req.URL)
	if m == nil {
		return nil, archerr.New(archerr.KindParseError, "could not parse mastodon status url: "+req.URL)
	}
	instance, statusID := m[1], m[2]

	client := mastodon.NewClient(&mastodon.Config{Server: "https://" + instance})
	status, err := client.GetStatus(ctx, mastodon.ID(statusID))
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "fetch mastodon status", err)
	}

	result := models.NewArchiveResult()
	result.Title = status.Account.DisplayName
	result.Author = status.Account.Acct
	result.Text = stripMastodonTags(status.Content)
	result.ContentType = models.ContentTypeText
	result.FinalURL = req.URL
	result.IsNSFW = status.Sensitive
	if status.Sensitive {
		result.NSFWSource = models.NSFWSourceAPI
	}

	var downloaded []string
	contentType := result.ContentType
	for _, att := range status.MediaAttachments {
		filename, err := fetchMediaFile(ctx, att.URL, req.WorkDir)
		if err != nil {
			return nil, err
		}
		switch att.Type {
		case "video", "gifv":
			contentType = models.ContentTypeVideo
		case "image":
			if contentType != models.ContentTypeVideo {
				contentType = models.ContentTypeImage
			}
		}
		downloaded = append(downloaded, filename)
	}

	if len(downloaded) > 0 {
		result.ContentType = contentType
		result.PrimaryFile = downloaded[0]
		result.ExtraFiles = downloaded[1:]
	}

	return result, nil
}

var mastodonTagRe = regexp.MustCompile(`(?is)<[^>]+>`)

func stripMastodonTags(html string) string {
	return strings.TrimSpace(mastodonTagRe.ReplaceAllString(html, " "))
}
