// Package ingest implements the §4.8 ingestion loop: fetching the posts
// feed, extracting links, and deciding which ones get an archive opened.
// The thread worker reuses ProcessPost over a single thread's feed.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"
	"github.com/tomnomnom/linkheader"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/config"
)

// RawPost is a single feed entry before it is hashed and upserted (§4.8
// step 1).
type RawPost struct {
	GUID        string
	ForumURL    string
	Author      string
	Title       string
	Body        string
	PublishedAt time.Time
}

type jsonPostsPage struct {
	Posts []struct {
		GUID        string    `json:"guid"`
		URL         string    `json:"url"`
		Author      string    `json:"author"`
		Title       string    `json:"title"`
		Body        string    `json:"body"`
		PublishedAt time.Time `json:"published_at"`
	} `json:"posts"`
}

// FetchFeed retrieves every page of feedURL, following rel=next Link
// headers, tolerating both the paginated JSON posts list and an older
// RSS-like representation (§4.8 step 1).
func FetchFeed(ctx context.Context, cfg *config.Config, feedURL string) ([]RawPost, error) {
	var out []RawPost
	next := feedURL
	for next != "" {
		page, nextLink, err := fetchPage(ctx, cfg, next)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		next = nextLink
	}
	return out, nil
}

func fetchPage(ctx context.Context, cfg *config.Config, pageURL string) ([]RawPost, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", archerr.Wrap(archerr.KindNetwork, "build feed request", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", archerr.Wrap(archerr.KindNetwork, "fetch feed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", archerr.New(archerr.KindNetwork, fmt.Sprintf("feed returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", archerr.Wrap(archerr.KindNetwork, "read feed body", err)
	}

	ct := resp.Header.Get("Content-Type")
	var posts []RawPost
	if strings.Contains(ct, "xml") {
		posts, err = parseRSSFeed(body)
	} else {
		posts, err = parseJSONFeed(body)
	}
	if err != nil {
		return nil, "", err
	}

	next := ""
	for _, l := range linkheader.Parse(resp.Header.Get("Link")) {
		if l.Rel == "next" {
			next = l.URL
		}
	}
	return posts, next, nil
}

func parseJSONFeed(body []byte) ([]RawPost, error) {
	var page jsonPostsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, archerr.Wrap(archerr.KindParseError, "decode json posts feed", err)
	}
	out := make([]RawPost, 0, len(page.Posts))
	for _, p := range page.Posts {
		out = append(out, RawPost{
			GUID:        p.GUID,
			ForumURL:    p.URL,
			Author:      p.Author,
			Title:       p.Title,
			Body:        p.Body,
			PublishedAt: p.PublishedAt,
		})
	}
	return out, nil
}

// parseRSSFeed tolerates the older RSS-like representation via a generic
// XML-to-map decode rather than a fixed struct, since legacy feeds vary in
// which optional elements they include.
func parseRSSFeed(body []byte) ([]RawPost, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindParseError, "decode rss posts feed", err)
	}

	items, err := m.ValuesForPath("rss.channel.item")
	if err != nil || len(items) == 0 {
		items, _ = m.ValuesForPath("channel.item")
	}

	out := make([]RawPost, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		guid := stringField(item, "guid")
		link := stringField(item, "link")
		if guid == "" {
			guid = link
		}
		out = append(out, RawPost{
			GUID:        guid,
			ForumURL:    link,
			Author:      stringField(item, "author"),
			Title:       stringField(item, "title"),
			Body:        stringField(item, "description"),
			PublishedAt: parseRSSDate(stringField(item, "pubDate")),
		})
	}
	return out, nil
}

func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if s, ok := t["#text"].(string); ok {
			return s
		}
	}
	return ""
}

func parseRSSDate(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
