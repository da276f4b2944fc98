package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/subprocess"
	"github.com/forumarch/archiver/internal/pkg/urlnorm"
	"github.com/forumarch/archiver/pkg/models"
)

// videoMetadata is the subset of the extractor's --dump-json output the
// handlers need to pre-flight a download (§4.3 "general video handler").
type videoMetadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	Filesize    int64   `json:"filesize_approx"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AgeLimit    int     `json:"age_limit"`
	Extension   string  `json:"ext"`
	WebpageURL  string  `json:"webpage_url"`
}

// probeVideoMetadata runs the extractor in quiet JSON metadata mode
// (§6: "--dump-json --no-playlist").
func probeVideoMetadata(ctx context.Context, rawURL, cookiesPath string) (*videoMetadata, error) {
	res, err := subprocess.Run(ctx, 30*time.Second, nil, nil,
		"yt-dlp", "--dump-json", "--no-playlist", "--cookies", cookiesPath, rawURL,
	)
	if err != nil {
		return nil, err
	}
	if len(res.Stdout) == 0 {
		return nil, archerr.New(archerr.KindParseError, "yt-dlp produced no metadata")
	}

	var meta videoMetadata
	if err := json.Unmarshal([]byte(res.Stdout[len(res.Stdout)-1]), &meta); err != nil {
		return nil, archerr.Wrap(archerr.KindParseError, "decode yt-dlp metadata", err)
	}
	return &meta, nil
}

// chooseFormat implements the adaptive format-string selection of §4.3:
// short videos get native resolution up to 1080p; long low-bitrate
// videos get 1080p; long normal-bitrate videos get 720p.
func chooseFormat(meta *videoMetadata, maxDurationSeconds int) string {
	const longThresholdSeconds = 20 * 60
	const lowBitrateThreshold = 2_000_000 // bytes/sec, approximate

	if meta.Duration <= longThresholdSeconds {
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	}

	bitrate := float64(meta.Filesize) / maxFloat(meta.Duration, 1)
	if bitrate < lowBitrateThreshold {
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	}
	return "bestvideo[height<=720]+bestaudio/best[height<=720]"
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// downloadVideo implements the rest of the general video handler
// contract: duration-cap rejection, adaptive format, streamed progress
// updates throttled to 2s, subtitle retrieval, and the configured total
// timeout.
func downloadVideo(ctx context.Context, req ArchiveRequest, meta *videoMetadata, onProgress func(subprocess.ProgressLine)) (*models.ArchiveResult, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if int(meta.Duration) > cfg.YoutubeMaxDurationSeconds {
		return nil, archerr.New(archerr.KindInvariantViolation, fmt.Sprintf(
			"video duration %ds exceeds configured cap of %ds", int(meta.Duration), cfg.YoutubeMaxDurationSeconds,
		))
	}

	format := chooseFormat(meta, cfg.YoutubeMaxDurationSeconds)
	outputTemplate := filepath.Join(req.WorkDir, "%(title)s.%(ext)s")

	timeout := time.Duration(cfg.YoutubeDownloadTimeoutSeconds) * time.Second
	var lastProgressAt time.Time

	onStdout := func(line string) {
		pl, ok := subprocess.ParseProgressLine(line)
		if !ok {
			return
		}
		if time.Since(lastProgressAt) < 2*time.Second {
			return
		}
		lastProgressAt = time.Now()
		if onProgress != nil {
			onProgress(pl)
		}
	}

	args := []string{
		"--newline",
		"-f", format,
		"--cookies", req.CookiesFilePath,
		"--write-subs", "--write-auto-subs",
		"--sub-langs", "en.*,en-orig,en",
		"--sub-format", "vtt,srt",
		"--write-info-json",
		"-o", outputTemplate,
		req.URL,
	}

	_, err := subprocess.Run(ctx, timeout, onStdout, nil, "yt-dlp", args...)
	if err != nil {
		return nil, err
	}

	result := models.NewArchiveResult()
	result.Title = meta.Title
	result.Author = meta.Uploader
	result.ContentType = models.ContentTypeVideo
	result.VideoID = meta.ID
	result.PrimaryFile = sanitizedVideoFilename(meta)

	if meta.AgeLimit >= 18 {
		result.IsNSFW = true
		result.NSFWSource = models.NSFWSourceMetadata
	}

	return result, nil
}

// normalizeVideoURL strips tracking/session query parameters from a video
// URL but otherwise defers to the standard normalization (§4.1).
func normalizeVideoURL(rawURL string) string {
	return urlnorm.Normalize(rawURL)
}

// writeFile writes content into name under workDir, creating workDir if
// needed.
func writeFile(workDir, name, content string) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "mkdir work dir", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, name), []byte(content), 0o644); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "write "+name, err)
	}
	return nil
}

func sanitizedVideoFilename(meta *videoMetadata) string {
	ext := meta.Extension
	if ext == "" {
		ext = "mp4"
	}
	title := meta.Title
	if title == "" {
		title = meta.ID
	}
	return strings.TrimSpace(title) + "." + ext
}
