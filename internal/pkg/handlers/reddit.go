package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/pkg/models"
)

var (
	redditURLRe      = regexp.MustCompile(`(?i)^https?://([a-z0-9.-]*\.)?reddit\.com/`)
	redditShortlink  = regexp.MustCompile(`(?i)^https?://redd\.it/`)
	redditSubredditRe = regexp.MustCompile(`(?i)reddit\.com/r/([a-zA-Z0-9_]+)`)
)

// nsfwSubredditPatterns is the fixed substring deny-list checked against a
// submission's subreddit name (§4.3).
var nsfwSubredditPatterns = []string{"nsfw", "porn", "gonewild", "nude", "xxx", "hentai"}

// redditHandler normalizes every variant to old.reddit.com and merges the
// JSON API response into the handler result (§4.3).
type redditHandler struct {
	httpClient *http.Client
}

func init() {
	Register(&redditHandler{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (h *redditHandler) SiteID() string { return "reddit" }

func (h *redditHandler) Priority() int { return 100 }

func (h *redditHandler) Matches(rawURL string) bool {
	return redditURLRe.MatchString(rawURL) || redditShortlink.MatchString(rawURL)
}

// Normalize rewrites any reddit.com subdomain variant to old.reddit.com,
// preserving path and query (§4.1).
func (h *redditHandler) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = "https"
	if redditShortlink.MatchString(rawURL) {
		return u.String()
	}
	u.Host = "old.reddit.com"
	return u.String()
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Author    string `json:"author"`
				Selftext  string `json:"selftext"`
				Subreddit string `json:"subreddit"`
				Over18    bool   `json:"over_18"`
				URL       string `json:"url"`
				Permalink string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Archive resolves shortlinks via a redirectless HEAD, then fetches the
// JSON API listing and merges its fields into the result (§4.3). No HTML
// page is fetched.
func (h *redditHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	targetURL := req.URL

	if redditShortlink.MatchString(targetURL) {
		resolved, err := h.resolveShortlink(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		targetURL = resolved
	}

	jsonURL := strings.TrimRight(targetURL, "/") + "/.json"
	listing, listErr := h.fetchListing(ctx, jsonURL)

	result := models.NewArchiveResult()
	result.ContentType = models.ContentTypeText
	result.FinalURL = targetURL

	var mediaURL string
	if listErr == nil && listing != nil && len(listing.Data.Children) > 0 {
		post := listing.Data.Children[0].Data
		result.Title = post.Title
		result.Author = post.Author
		result.Text = post.Selftext
		mediaURL = post.URL

		if post.Over18 || isNSFWSubreddit(post.Subreddit) {
			result.IsNSFW = true
			result.NSFWSource = models.NSFWSourceSubreddit
		}
	}

	if m := redditSubredditRe.FindStringSubmatch(targetURL); m != nil && !result.IsNSFW {
		if isNSFWSubreddit(m[1]) {
			result.IsNSFW = true
			result.NSFWSource = models.NSFWSourceSubreddit
		}
	}

	if err := h.archiveContent(ctx, req.WorkDir, mediaURL, result); err != nil {
		return nil, err
	}

	return result, nil
}

// archiveContent downloads the submission's linked media into the work
// directory when the listing points at one directly (i.redd.it,
// v.redd.it, or a plain image/video extension); otherwise it writes the
// merged title/selftext out as the primary artifact, the same
// write-then-point-PrimaryFile pattern as the video handlers.
func (h *redditHandler) archiveContent(ctx context.Context, workDir, mediaURL string, result *models.ArchiveResult) error {
	if mediaURL != "" && isDirectRedditMedia(mediaURL) {
		filename, err := fetchMediaFile(ctx, mediaURL, workDir)
		if err != nil {
			return err
		}
		result.PrimaryFile = filename
		ext := strings.ToLower(filepath.Ext(filename))
		if videoExtensions[ext] {
			result.ContentType = models.ContentTypeVideo
		} else if imageExtensions[ext] {
			result.ContentType = models.ContentTypeImage
		} else {
			result.ContentType = models.ContentTypeFile
		}
		return nil
	}

	body := result.Title
	if result.Text != "" {
		body = body + "\n\n" + result.Text
	}
	if err := writeFile(workDir, "post.txt", body); err != nil {
		return err
	}
	result.PrimaryFile = "post.txt"
	return nil
}

var redditDirectMediaHosts = []string{"i.redd.it", "v.redd.it", "i.imgur.com"}

// isDirectRedditMedia reports whether rawURL points straight at a media
// blob rather than an external article or comments page.
func isDirectRedditMedia(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, host := range redditDirectMediaHosts {
		if strings.Contains(lower, "://"+host+"/") {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(rawURL))
	return imageExtensions[ext] || videoExtensions[ext]
}

func (h *redditHandler) resolveShortlink(ctx context.Context, shortURL string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, shortURL, nil)
	if err != nil {
		return "", archerr.Wrap(archerr.KindNetwork, "build shortlink request", err)
	}
	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return "", archerr.Wrap(archerr.KindNetwork, "resolve shortlink", err)
	}
	defer resp.Body.Close()

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", archerr.New(archerr.KindNotFound, "shortlink did not redirect: "+shortURL)
	}
	return loc, nil
}

func (h *redditHandler) fetchListing(ctx context.Context, jsonURL string) (*redditListing, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "build json api request", err)
	}
	httpReq.Header.Set("User-Agent", "forum-archiver/1.0")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "fetch json api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, archerr.New(archerr.KindNotFound, "reddit json api 404")
	}

	var listings []redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, archerr.Wrap(archerr.KindParseError, "decode reddit json api", err)
	}
	if len(listings) == 0 {
		return nil, archerr.New(archerr.KindParseError, "empty reddit json api response")
	}
	return &listings[0], nil
}

func isNSFWSubreddit(subreddit string) bool {
	lower := strings.ToLower(subreddit)
	for _, pattern := range nsfwSubredditPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
