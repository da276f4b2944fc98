package archiver

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forumarch/archiver/internal/pkg/subprocess"
)

// bannerTemplate is injected into a saved raw.html page to produce
// view.html (§4.5 step 5). It carries no styling assumptions about the
// page it's dropped into, just a fixed-position notice.
const bannerTemplate = `<div style="position:fixed;top:0;left:0;right:0;z-index:2147483647;background:#222;color:#fff;padding:6px 12px;font:12px sans-serif;">Archived copy captured %s from %s</div>`

// injectBanner implements §4.5 step 5's fallback chain: insert
// immediately after the opening <body>, else after </head>, else after
// the opening <html>, else prepend.
func injectBanner(html, sourceURL string, capturedAt time.Time) string {
	banner := fmt.Sprintf(bannerTemplate, capturedAt.UTC().Format(time.RFC3339), sourceURL)

	lower := strings.ToLower(html)

	if idx := indexOfTagEnd(lower, "<body"); idx >= 0 {
		return html[:idx] + banner + html[idx:]
	}
	if idx := strings.Index(lower, "</head>"); idx >= 0 {
		return html[:idx+len("</head>")] + banner + html[idx+len("</head>"):]
	}
	if idx := indexOfTagEnd(lower, "<html"); idx >= 0 {
		return html[:idx] + banner + html[idx:]
	}
	return banner + html
}

// indexOfTagEnd finds the byte offset just past the closing '>' of the
// first occurrence of an opening tag starting with prefix (e.g. "<body"),
// or -1 if absent.
func indexOfTagEnd(lowerHTML, prefix string) int {
	start := strings.Index(lowerHTML, prefix)
	if start < 0 {
		return -1
	}
	end := strings.Index(lowerHTML[start:], ">")
	if end < 0 {
		return -1
	}
	return start + end + 1
}

// monolithTimeout bounds the self-contained HTML builder invocation.
const monolithTimeout = 60 * time.Second

// buildCompleteHTML shells out to the monolith-style self-contained HTML
// builder (§6: "-s -i -f [-j] -F" flags, "-c" for cookies, a file:// URL
// preferred over re-fetching). Non-fatal: callers log and continue on
// error per §7's propagation policy for ancillary artifacts.
func buildCompleteHTML(ctx context.Context, rawHTMLPath, destPath, cookiesFilePath string) error {
	fileURL := "file://" + rawHTMLPath

	args := []string{"-s", "-i", "-f", "-F", "-o", destPath}
	if cookiesFilePath != "" {
		if _, err := os.Stat(cookiesFilePath); err == nil {
			args = append(args, "-c", cookiesFilePath)
		}
	}
	args = append(args, fileURL)

	_, err := subprocess.Run(ctx, monolithTimeout, nil, nil, "monolith", args...)
	return err
}
