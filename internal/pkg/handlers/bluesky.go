package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bluesky-social/indigo/xrpc"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/pkg/models"
)

// blueskyPostURLRe matches the bsky.app web permalink for a single post:
// https://bsky.app/profile/{handle-or-did}/post/{rkey} (§4.3).
var blueskyPostURLRe = regexp.MustCompile(`(?i)^https?://(www\.)?bsky\.app/profile/([^/]+)/post/([a-zA-Z0-9]+)$`)

// blueskyHandler reads a post through the public, unauthenticated
// app.bsky.feed.getPostThread XRPC endpoint rather than a generated
// lexicon client -- the read surface needed here (text, author, embedded
// media) is a thin slice of the full schema.
type blueskyHandler struct {
	client *xrpc.Client
}

func init() {
	Register(&blueskyHandler{
		client: &xrpc.Client{Host: "https://public.api.bsky.app"},
	})
}

func (h *blueskyHandler) SiteID() string { return "bluesky" }

func (h *blueskyHandler) Priority() int { return 90 }

func (h *blueskyHandler) Matches(rawURL string) bool {
	return blueskyPostURLRe.MatchString(rawURL)
}

func (h *blueskyHandler) Normalize(rawURL string) string {
	return rawURL
}

type blueskyPostThreadResponse struct {
	Thread struct {
		Post struct {
			Author struct {
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Record struct {
				Text string `json:"text"`
			} `json:"record"`
			Embed struct {
				Images []struct {
					Fullsize string `json:"fullsize"`
				} `json:"images"`
				Playlist string `json:"playlist"`
			} `json:"embed"`
			Labels []struct {
				Val string `json:"val"`
			} `json:"labels"`
		} `json:"post"`
	} `json:"thread"`
}

func (h *blueskyHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	m := blueskyPostURLRe.FindStringSubmatch(req.URL)
	if m == nil {
		return nil, archerr.New(archerr.KindParseError, "could not parse bluesky post url: "+req.URL)
	}
	actor, rkey := m[2], m[3]
	atURI := fmt.Sprintf("at://%s/app.bsky.feed.post/%s", actor, rkey)

	var out blueskyPostThreadResponse
	params := map[string]interface{}{"uri": atURI, "depth": 0}
	if err := h.client.Do(ctx, xrpc.Query, "", "app.bsky.feed.getPostThread", params, nil, &out); err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "fetch bluesky post thread", err)
	}

	post := out.Thread.Post
	result := models.NewArchiveResult()
	result.Title = post.Author.DisplayName
	result.Author = post.Author.Handle
	result.Text = post.Record.Text
	result.ContentType = models.ContentTypeText
	result.FinalURL = req.URL

	for _, label := range post.Labels {
		if strings.Contains(strings.ToLower(label.Val), "sexual") || strings.Contains(strings.ToLower(label.Val), "nudity") {
			result.IsNSFW = true
			result.NSFWSource = models.NSFWSourceAPI
		}
	}

	if post.Embed.Playlist != "" {
		filename, err := fetchMediaFile(ctx, post.Embed.Playlist, req.WorkDir)
		if err != nil {
			return nil, err
		}
		result.ContentType = models.ContentTypeVideo
		result.PrimaryFile = filename
	} else if len(post.Embed.Images) > 0 {
		for _, img := range post.Embed.Images {
			filename, err := fetchMediaFile(ctx, img.Fullsize, req.WorkDir)
			if err != nil {
				return nil, err
			}
			if result.PrimaryFile == "" {
				result.PrimaryFile = filename
			} else {
				result.ExtraFiles = append(result.ExtraFiles, filename)
			}
		}
		result.ContentType = models.ContentTypeImage
	}

	return result, nil
}
