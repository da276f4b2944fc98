package handlers

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/sanitize"
)

// mediaFetchClient is shared by every handler that downloads a remote
// CDN URL into the work directory rather than writing a file itself
// (reddit.go, bluesky.go, mastodon.go).
var mediaFetchClient = &http.Client{Timeout: 60 * time.Second}

// fetchMediaFile downloads rawURL into workDir under a sanitized
// filename derived from the URL path, and returns that filename relative
// to workDir -- the form every ArchiveResult.PrimaryFile/ExtraFiles entry
// must take (pkg/models/handler.go).
func fetchMediaFile(ctx context.Context, rawURL, workDir string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", archerr.Wrap(archerr.KindNetwork, "build media request", err)
	}

	resp, err := mediaFetchClient.Do(httpReq)
	if err != nil {
		return "", archerr.Wrap(archerr.KindNetwork, "fetch media "+rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", archerr.New(archerr.KindNotFound, "media not found: "+rawURL)
	}
	if resp.StatusCode >= 400 {
		return "", archerr.New(archerr.KindNetwork, "media fetch failed: "+rawURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", archerr.Wrap(archerr.KindNetwork, "read media body", err)
	}

	filename := sanitize.Filename(mediaFilenameFromURL(rawURL))
	if err := writeFileBytes(workDir, filename, data); err != nil {
		return "", err
	}
	return filename, nil
}

// mediaFilenameFromURL derives a bare filename from a CDN URL's path,
// falling back to a generic name when the path has none (e.g. a query-
// string-only reference).
func mediaFilenameFromURL(rawURL string) string {
	clean := rawURL
	if idx := strings.IndexAny(clean, "?#"); idx != -1 {
		clean = clean[:idx]
	}
	if u, err := url.Parse(clean); err == nil {
		clean = u.Path
	}
	name := path.Base(clean)
	if name == "" || name == "." || name == "/" {
		return "media"
	}
	return name
}

// writeFileBytes writes data into name under workDir, creating workDir
// if needed -- the binary counterpart to videoextractor.go's writeFile.
func writeFileBytes(workDir, name string, data []byte) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "mkdir work dir", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, name), data, 0o644); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "write "+name, err)
	}
	return nil
}
