package handlers

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/render"
	"github.com/forumarch/archiver/internal/pkg/subprocess"
	"github.com/forumarch/archiver/pkg/models"
)

var twitterURLRe = regexp.MustCompile(`(?i)^https?://(www\.|mobile\.)?(twitter|x)\.com/`)

// twitterMediaKind is the in-DOM media classification driving routing
// (§4.3).
type twitterMediaKind int

const (
	twitterMediaNone twitterMediaKind = iota
	twitterMediaVideo
	twitterMediaGif
	twitterMediaImages
	twitterMediaMixed
	twitterMediaCard
)

// twitterHandler unifies twitter.com/x.com/mobile.* to a single host and
// always snapshots the page via the headless browser first (§4.1, §4.3).
type twitterHandler struct{}

func init() {
	Register(&twitterHandler{})
}

func (h *twitterHandler) SiteID() string { return "twitter" }

func (h *twitterHandler) Priority() int { return 100 }

func (h *twitterHandler) Matches(rawURL string) bool {
	return twitterURLRe.MatchString(rawURL)
}

// Normalize unifies twitter.com/x.com/mobile.twitter.com/mobile.x.com to
// a single canonical host (§4.1).
func (h *twitterHandler) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = "https"
	u.Host = "x.com"
	return u.String()
}

func (h *twitterHandler) Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	mgr := render.Get()
	if mgr == nil {
		return nil, archerr.New(archerr.KindExternalTool, "headless renderer is not available")
	}

	var cookies []subprocess.Cookie
	if req.CookiesFilePath != "" {
		parsed, err := subprocess.ParseCookieFile(req.CookiesFilePath)
		if err == nil {
			cookies = parsed
		}
	}

	page, err := mgr.OpenStealthPage(ctx, req.URL, cookies)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	html, err := page.HTML()
	if err != nil {
		return nil, err
	}

	cleaned := stripScriptsAndNoscript(html)
	if err := writeFile(req.WorkDir, "raw.html", cleaned); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return nil, archerr.Wrap(archerr.KindParseError, "parse twitter snapshot", err)
	}

	result := models.NewArchiveResult()
	result.Title = extractTitle(doc)
	result.Text = extractDescription(doc)
	result.PrimaryFile = "raw.html"
	result.ContentType = models.ContentTypeText

	if detectTwitterNSFW(doc) {
		result.IsNSFW = true
		result.NSFWSource = models.NSFWSourceHTML
	}

	switch classifyTwitterMedia(doc) {
	case twitterMediaVideo, twitterMediaGif:
		videoResult, err := h.archiveVideo(ctx, req)
		if err == nil {
			mergeMediaResult(result, videoResult)
		}
	case twitterMediaImages:
		galleryResult, err := downloadGallery(ctx, req, req.URL)
		if err == nil {
			mergeMediaResult(result, galleryResult)
		}
	case twitterMediaMixed:
		videoResult, vErr := h.archiveVideo(ctx, req)
		galleryResult, gErr := downloadGallery(ctx, req, req.URL)
		if vErr == nil && gErr == nil {
			result.ContentType = models.ContentTypeMixed
			result.PrimaryFile = videoResult.PrimaryFile
			result.ExtraFiles = append(result.ExtraFiles, galleryResult.PrimaryFile)
			result.ExtraFiles = append(result.ExtraFiles, galleryResult.ExtraFiles...)
		}
	case twitterMediaCard, twitterMediaNone:
		// raw.html snapshot already captures the card/text content.
	}

	return result, nil
}

func (h *twitterHandler) archiveVideo(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error) {
	meta, err := probeVideoMetadata(ctx, req.URL, req.CookiesFilePath)
	if err != nil {
		return nil, err
	}
	return downloadVideo(ctx, req, meta, nil)
}

// mergeMediaResult folds a media-extractor result's files into the
// HTML-snapshot result without losing the title/text already parsed
// from Open Graph tags.
func mergeMediaResult(dst, media *models.ArchiveResult) {
	dst.ContentType = media.ContentType
	dst.PrimaryFile = media.PrimaryFile
	dst.ExtraFiles = append(dst.ExtraFiles, media.ExtraFiles...)
	if dst.Thumbnail == "" {
		dst.Thumbnail = media.Thumbnail
	}
	if media.IsNSFW {
		dst.IsNSFW = true
		dst.NSFWSource = media.NSFWSource
	}
}

var scriptTagRe = regexp.MustCompile(`(?is)<(script|noscript)[^>]*>.*?</(script|noscript)>`)

func stripScriptsAndNoscript(html string) string {
	return scriptTagRe.ReplaceAllString(html, "")
}

func classifyTwitterMedia(doc *goquery.Document) twitterMediaKind {
	hasVideo := doc.Find(`video, meta[property="og:video"]`).Length() > 0
	hasGif := doc.Find(`[data-testid="tweetGif"]`).Length() > 0
	imageCount := doc.Find(`[data-testid="tweetPhoto"] img`).Length()

	switch {
	case hasVideo && imageCount > 0:
		return twitterMediaMixed
	case hasVideo:
		return twitterMediaVideo
	case hasGif:
		return twitterMediaGif
	case imageCount > 0:
		return twitterMediaImages
	case doc.Find(`[data-testid="card.wrapper"]`).Length() > 0:
		return twitterMediaCard
	default:
		return twitterMediaNone
	}
}

func detectTwitterNSFW(doc *goquery.Document) bool {
	if v, ok := doc.Find(`meta[property="og:video:tag"]`).Attr("content"); ok {
		if strings.Contains(strings.ToLower(v), "nsfw") {
			return true
		}
	}
	return doc.Find(`[data-testid="sensitiveMediaWarning"]`).Length() > 0
}
