package handlers

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/sanitize"
	"github.com/forumarch/archiver/internal/pkg/subprocess"
	"github.com/forumarch/archiver/pkg/models"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".mkv": true, ".gifv": true,
}

// downloadGallery spawns the gallery downloader against rawURL with a flat
// filename template, then classifies the produced files into
// image/video/gallery content (§4.3).
func downloadGallery(ctx context.Context, req ArchiveRequest, rawURL string) (*models.ArchiveResult, error) {
	timeout := 5 * time.Minute

	args := []string{
		"--dest", req.WorkDir,
		"-o", "filename={id}_{num}.{extension}",
		rawURL,
	}

	_, err := subprocess.Run(ctx, timeout, nil, nil, "gallery-dl", args...)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(req.WorkDir)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindStorageError, "read gallery work dir", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, archerr.New(archerr.KindNotFound, "gallery downloader produced no files: "+rawURL)
	}

	for i, name := range files {
		files[i] = sanitize.Filename(name)
		if files[i] != name {
			if err := os.Rename(filepath.Join(req.WorkDir, name), filepath.Join(req.WorkDir, files[i])); err != nil {
				return nil, archerr.Wrap(archerr.KindStorageError, "rename sanitized gallery file", err)
			}
		}
	}

	result := models.NewArchiveResult()
	result.PrimaryFile = files[0]
	if len(files) > 1 {
		result.ExtraFiles = files[1:]
	}
	result.ContentType = classifyGalleryContent(files)

	return result, nil
}

// classifyGalleryContent distinguishes image/video/gallery by the set of
// produced file extensions (§4.3).
func classifyGalleryContent(files []string) models.ContentType {
	if len(files) == 1 {
		ext := strings.ToLower(filepath.Ext(files[0]))
		if videoExtensions[ext] {
			return models.ContentTypeVideo
		}
		if imageExtensions[ext] {
			return models.ContentTypeImage
		}
		return models.ContentTypeFile
	}
	return models.ContentTypeGallery
}
