// Package ipfs implements the optional IPFS pin of §4.5 step 7: upload a
// completed archive's primary file to a local IPFS node's HTTP API and
// record the resulting CID on the archive row.
//
// go.mod carries github.com/ipfs/go-cid for parsing and validating the
// response, not a full client -- the IPFS HTTP API's /api/v0/add is a
// single multipart POST, and no go-ipfs-api-style client is in the
// retrieved dependency pack to ground one on (see DESIGN.md).
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/config"
)

// addResponse is the single-line JSON object /api/v0/add writes per file.
type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Pin uploads the file at path (or, if path is a directory, is a no-op
// returning an error -- the pipeline only ever pins a single primary
// file) to cfg.IPFSAPIAddr and returns the resulting CID string.
func Pin(ctx context.Context, cfg *config.Config, path string) (string, error) {
	if cfg.IPFSAPIAddr == "" {
		return "", archerr.New(archerr.KindInvariantViolation, "ipfs api addr not configured")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", archerr.Wrap(archerr.KindStorageError, "stat ipfs upload target", err)
	}
	if info.IsDir() {
		return "", archerr.New(archerr.KindInvariantViolation, "ipfs pin target must be a file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", archerr.Wrap(archerr.KindStorageError, "read ipfs upload target", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", archerr.Wrap(archerr.KindExternalTool, "build ipfs upload form", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", archerr.Wrap(archerr.KindExternalTool, "write ipfs upload form", err)
	}
	if err := writer.Close(); err != nil {
		return "", archerr.Wrap(archerr.KindExternalTool, "close ipfs upload form", err)
	}

	url := fmt.Sprintf("%s/api/v0/add", cfg.IPFSAPIAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", archerr.Wrap(archerr.KindNetwork, "build ipfs add request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", archerr.Wrap(archerr.KindNetwork, "ipfs add request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", archerr.New(archerr.KindExternalTool, fmt.Sprintf("ipfs add returned status %d", resp.StatusCode))
	}

	var parsed addResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", archerr.Wrap(archerr.KindParseError, "decode ipfs add response", err)
	}

	if _, err := cid.Decode(parsed.Hash); err != nil {
		return "", archerr.Wrap(archerr.KindParseError, "invalid cid in ipfs add response", err)
	}

	return parsed.Hash, nil
}
