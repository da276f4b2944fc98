package backfill

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/subprocess"
)

const probeTimeout = 30 * time.Second

type subtitleTrack struct {
	URL string `json:"url"`
	Ext string `json:"ext"`
}

type subtitleProbe struct {
	RequestedSubtitles map[string]subtitleTrack `json:"requested_subtitles"`
}

// probeSubtitleURL re-runs the extractor's metadata probe for rawURL and
// picks the first English-looking subtitle variant out of
// requested_subtitles, the extractor's own map of language -> track.
func probeSubtitleURL(ctx context.Context, cfg *config.Config, rawURL string) (string, string, error) {
	res, err := subprocess.Run(ctx, probeTimeout, nil, nil,
		"yt-dlp", "--dump-json", "--no-playlist", "--write-subs", "--sub-langs", "en.*,en-orig,en",
		"--cookies", cfg.CookiesFilePath, rawURL,
	)
	if err != nil {
		return "", "", err
	}
	if len(res.Stdout) == 0 {
		return "", "", archerr.New(archerr.KindParseError, "yt-dlp produced no metadata")
	}

	var probe subtitleProbe
	if err := json.Unmarshal([]byte(res.Stdout[len(res.Stdout)-1]), &probe); err != nil {
		return "", "", archerr.Wrap(archerr.KindParseError, "decode yt-dlp subtitle metadata", err)
	}

	url, ext, ok := selectEnglishSubtitle(probe.RequestedSubtitles)
	if !ok {
		return "", "", archerr.New(archerr.KindNotFound, "no english subtitle track found")
	}
	return url, ext, nil
}

// englishSubtitleLangs is checked in preference order against
// requested_subtitles, the extractor's own language -> track map.
var englishSubtitleLangs = []string{"en", "en-orig", "en-US", "en-GB"}

func selectEnglishSubtitle(tracks map[string]subtitleTrack) (url, ext string, ok bool) {
	for _, lang := range englishSubtitleLangs {
		if track, found := tracks[lang]; found && track.URL != "" {
			ext := track.Ext
			if ext == "" {
				ext = "vtt"
			}
			return track.URL, ext, true
		}
	}
	return "", "", false
}

func fetchSubtitle(ctx context.Context, cfg *config.Config, subURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subURL, nil)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "build subtitle request", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindNetwork, "fetch subtitle", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, archerr.New(archerr.KindNetwork, "subtitle fetch returned non-200 status")
	}
	return io.ReadAll(resp.Body)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: true}
}
