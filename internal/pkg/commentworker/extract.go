package commentworker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/subprocess"
	"github.com/forumarch/archiver/pkg/models"
)

var tiktokVideoIDRe = regexp.MustCompile(`(?i)tiktok\.com/@[^/]+/video/(\d+)`)

const extractTimeout = 5 * time.Minute

// commentPageLimiter paces successive TikTok comment-page requests at
// cfg.CommentsRequestDelayMs, context-cancelable rather than a blind
// time.Sleep (§4.6 step 4's polite-pagination note).
func commentPageLimiter(cfg *config.Config) *rate.Limiter {
	delay := time.Duration(cfg.CommentsRequestDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = time.Millisecond
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// ytComment is the subset of yt-dlp's per-comment JSON shape the §4.6
// schema needs.
type ytComment struct {
	ID              string `json:"id"`
	Parent          string `json:"parent"`
	Text            string `json:"text"`
	Author          string `json:"author"`
	AuthorID        string `json:"author_id"`
	LikeCount       int    `json:"like_count"`
	Timestamp       int64  `json:"timestamp"`
	IsFavorited     bool   `json:"is_favorited"`
	AuthorIsUploader bool  `json:"author_is_uploader"`
}

// ytMetadata is the subset of yt-dlp's --dump-json output relevant to
// comment extraction.
type ytMetadata struct {
	ID         string      `json:"id"`
	WebpageURL string      `json:"webpage_url"`
	Extractor  string      `json:"extractor_key"`
	Comments   []ytComment `json:"comments"`
}

// extractGeneric implements §4.6 step 4's non-TikTok path: the video
// extractor with --skip-download --write-comments and platform-specific
// limit args, parsing the comments array out of its dumped metadata.
func extractGeneric(ctx context.Context, cfg *config.Config, rawURL string) (*models.CommentExtractionSchema, error) {
	extractorArgs := fmt.Sprintf("youtube:max_comments=%d;comment_sort=top", commentLimit(cfg))

	args := []string{
		"--skip-download",
		"--write-comments",
		"--dump-json",
		"--no-playlist",
		"--extractor-args", extractorArgs,
		"--cookies", cfg.CookiesFilePath,
		rawURL,
	}

	res, err := subprocess.Run(ctx, extractTimeout, nil, nil, "yt-dlp", args...)
	if err != nil {
		return nil, err
	}
	if len(res.Stdout) == 0 {
		return nil, archerr.New(archerr.KindParseError, "yt-dlp produced no comment metadata")
	}

	var meta ytMetadata
	if err := json.Unmarshal([]byte(res.Stdout[len(res.Stdout)-1]), &meta); err != nil {
		return nil, archerr.Wrap(archerr.KindParseError, "decode yt-dlp comment metadata", err)
	}

	limited := len(meta.Comments) >= commentLimit(cfg)
	comments, topLevel, maxDepth := buildCommentTree(meta.Comments)

	return &models.CommentExtractionSchema{
		Platform:         meta.Extractor,
		ExtractionMethod: "video_extractor",
		ExtractedAt:      time.Now().UTC(),
		ContentURL:       meta.WebpageURL,
		ContentID:        meta.ID,
		Limited:          limited,
		LimitApplied:     commentLimit(cfg),
		Stats: models.CommentStats{
			TotalComments:     len(meta.Comments),
			ExtractedComments: len(meta.Comments),
			TopLevelComments:  topLevel,
			MaxDepth:          maxDepth,
		},
		Comments: comments,
	}, nil
}

// tiktokCommentResponse is the shape of TikTok's public comment-list API.
type tiktokCommentResponse struct {
	Comments []struct {
		CID       string `json:"cid"`
		Text      string `json:"text"`
		DiggCount int    `json:"digg_count"`
		CreateTime int64 `json:"create_time"`
		User       struct {
			UID      string `json:"uid"`
			Nickname string `json:"nickname"`
		} `json:"user"`
		ReplyID string `json:"reply_id"`
	} `json:"comments"`
	Total  int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// extractTikTok implements §4.6 step 4's TikTok path: a direct call to
// TikTok's public comment-list API, paginated until exhausted or the
// configured limit is reached.
func extractTikTok(ctx context.Context, cfg *config.Config, rawURL string) (*models.CommentExtractionSchema, error) {
	videoID, ok := tiktokVideoIDFromURL(rawURL)
	if !ok {
		return nil, archerr.New(archerr.KindParseError, "could not derive tiktok video id from url")
	}

	limit := commentLimit(cfg)
	limiter := commentPageLimiter(cfg)
	var raw []ytComment
	cursor := 0
	for len(raw) < limit {
		page, hasMore, err := fetchTikTokCommentPage(ctx, cfg, videoID, cursor)
		if err != nil {
			return nil, err
		}
		raw = append(raw, page...)
		if !hasMore || len(page) == 0 {
			break
		}
		cursor += len(page)
		if err := limiter.Wait(ctx); err != nil {
			return nil, archerr.Wrap(archerr.KindNetwork, "comment page pacing", err)
		}
	}

	limited := len(raw) >= limit
	if limited {
		raw = raw[:limit]
	}

	comments, topLevel, maxDepth := buildCommentTree(raw)

	return &models.CommentExtractionSchema{
		Platform:         "tiktok",
		ExtractionMethod: "direct_api",
		ExtractedAt:      time.Now().UTC(),
		ContentURL:       rawURL,
		ContentID:        videoID,
		Limited:          limited,
		LimitApplied:     limit,
		Stats: models.CommentStats{
			TotalComments:     len(raw),
			ExtractedComments: len(raw),
			TopLevelComments:  topLevel,
			MaxDepth:          maxDepth,
		},
		Comments: comments,
	}, nil
}

func fetchTikTokCommentPage(ctx context.Context, cfg *config.Config, videoID string, cursor int) ([]ytComment, bool, error) {
	endpoint := "https://www.tiktok.com/api/comment/list/"
	q := url.Values{}
	q.Set("aweme_id", videoID)
	q.Set("cursor", strconv.Itoa(cursor))
	q.Set("count", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, false, archerr.Wrap(archerr.KindNetwork, "build tiktok comment request", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false, archerr.Wrap(archerr.KindNetwork, "tiktok comment request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, false, archerr.New(archerr.KindRateLimited, "tiktok comment api rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, archerr.New(archerr.KindNetwork, fmt.Sprintf("tiktok comment api returned status %d", resp.StatusCode))
	}

	var parsed tiktokCommentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, archerr.Wrap(archerr.KindParseError, "decode tiktok comment response", err)
	}

	out := make([]ytComment, 0, len(parsed.Comments))
	for _, c := range parsed.Comments {
		parent := "root"
		if c.ReplyID != "" && c.ReplyID != "0" {
			parent = c.ReplyID
		}
		out = append(out, ytComment{
			ID:        c.CID,
			Parent:    parent,
			Text:      c.Text,
			Author:    c.User.Nickname,
			AuthorID:  c.User.UID,
			LikeCount: c.DiggCount,
			Timestamp: c.CreateTime,
		})
	}
	return out, parsed.HasMore, nil
}

// buildCommentTree nests ytComment rows into the §4.6 schema's recursive
// Comment shape by parent_id, computing top-level count and max depth.
func buildCommentTree(raw []ytComment) ([]models.Comment, int, int) {
	byParent := map[string][]ytComment{}
	for _, c := range raw {
		parent := c.Parent
		if parent == "" {
			parent = "root"
		}
		byParent[parent] = append(byParent[parent], c)
	}

	maxDepth := 0
	var build func(parentID string, depth int) []models.Comment
	build = func(parentID string, depth int) []models.Comment {
		children := byParent[parentID]
		if len(children) > 0 && depth > maxDepth {
			maxDepth = depth
		}
		out := make([]models.Comment, 0, len(children))
		for _, c := range children {
			var ts *time.Time
			if c.Timestamp > 0 {
				t := time.Unix(c.Timestamp, 0).UTC()
				ts = &t
			}
			out = append(out, models.Comment{
				ID:        c.ID,
				Author:    c.Author,
				AuthorID:  c.AuthorID,
				Text:      c.Text,
				Timestamp: ts,
				Likes:     c.LikeCount,
				IsPinned:  c.IsFavorited,
				IsCreator: c.AuthorIsUploader,
				ParentID:  parentID,
				Replies:   build(c.ID, depth+1),
			})
		}
		return out
	}

	topLevel := build("root", 0)
	return topLevel, len(topLevel), maxDepth
}

// tiktokVideoIDFromURL reuses the same numeric-id convention the tiktok
// site handler's VideoID uses.
func tiktokVideoIDFromURL(rawURL string) (string, bool) {
	m := tiktokVideoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func commentLimit(cfg *config.Config) int {
	if cfg.CommentsMaxCount <= 0 {
		return 500
	}
	return cfg.CommentsMaxCount
}
