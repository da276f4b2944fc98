package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/urlnorm"
	"github.com/forumarch/archiver/pkg/models"
)

// textSanitizer strips scripts, styles, and any markup bluemonday's UGC
// policy doesn't allow before a fragment is handed to the markdown
// converter -- both generic.go's extracted body text and twitter.go's
// tweet text route through it (§4.3).
var textSanitizer = bluemonday.UGCPolicy()

// mdConverter renders sanitized HTML fragments down to Markdown for
// ArchiveResult.Text, rather than goquery's flattened .Text() (which
// drops paragraph breaks and link targets).
var mdConverter = converter.NewConverter(
	converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()),
)

// htmlFragmentToText sanitizes an HTML fragment and converts it to
// Markdown; on conversion failure it falls back to the sanitized
// fragment's plain text so a malformed snippet never drops the whole
// field.
func htmlFragmentToText(fragmentHTML string) string {
	clean := textSanitizer.Sanitize(fragmentHTML)
	md, err := mdConverter.ConvertString(clean)
	if err != nil {
		doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(clean))
		if parseErr != nil {
			return strings.TrimSpace(clean)
		}
		return strings.TrimSpace(doc.Text())
	}
	return strings.TrimSpace(md)
}

// genericHandler is the last-resort handler: priority -100, matches any
// http(s) URL (§4.2, §4.3).
type genericHandler struct{}

func init() {
	Register(&genericHandler{})
}

func (h *genericHandler) SiteID() string { return "generic" }

func (h *genericHandler) Priority() int { return -100 }

func (h *genericHandler) Matches(rawURL string) bool {
	norm := urlnorm.Normalize(rawURL)
	return strings.HasPrefix(norm, "https://") || strings.HasPrefix(norm, "http://")
}

func (h *genericHandler) Normalize(rawURL string) string { return urlnorm.Normalize(rawURL) }

// Archive implements the generic handler's contract (§4.3): HTTP GET with
// a 30s timeout, text/html only, title/text extraction via OG tags and a
// content heuristic, raw.html stored verbatim.
func (h *genericHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "build request", err)
	}
	if req.Config != nil {
		httpReq.Header.Set("User-Agent", req.Config.UserAgent)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "GET "+req.URL, err)
	}
	defer resp.Body.Close()

	result := models.NewArchiveResult()
	result.HTTPStatusCode = resp.StatusCode

	if resp.StatusCode == http.StatusNotFound {
		return nil, archerr.New(archerr.KindNotFound, fmt.Sprintf("HTTP 404 Not Found: %s", req.URL))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, archerr.New(archerr.KindUnauthorized, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, req.URL))
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, archerr.New(archerr.KindInvariantViolation, fmt.Sprintf("unsupported content-type %q for generic handler", contentType))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "read body", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, archerr.Wrap(archerr.KindParseError, "parse html", err)
	}

	result.Title = extractTitle(doc)
	result.Text = extractDescription(doc)
	result.ContentType = models.ContentTypeText
	result.FinalURL = resp.Request.URL.String()
	result.PrimaryFile = "raw.html"

	rawPath := filepath.Join(req.WorkDir, "raw.html")
	if err := os.WriteFile(rawPath, body, 0o644); err != nil {
		return nil, archerr.Wrap(archerr.KindStorageError, "write raw.html", err)
	}

	return result, nil
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html")
}

func extractTitle(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && v != "" {
		return v
	}
	if v, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok && v != "" {
		return v
	}
	return doc.Find("title").First().Text()
}

func extractDescription(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && v != "" {
		return v
	}
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && v != "" {
		return v
	}
	if h, err := doc.Find("article").First().Html(); err == nil && strings.TrimSpace(h) != "" {
		return htmlFragmentToText(h)
	}
	if h, err := doc.Find("main").First().Html(); err == nil && strings.TrimSpace(h) != "" {
		return htmlFragmentToText(h)
	}
	h, _ := doc.Find("body").First().Html()
	return htmlFragmentToText(h)
}
