package backfill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectEnglishSubtitlePrefersExactEnTag(t *testing.T) {
	tracks := map[string]subtitleTrack{
		"fr":      {URL: "https://example.com/fr.vtt", Ext: "vtt"},
		"en-orig": {URL: "https://example.com/en-orig.vtt", Ext: "vtt"},
		"en":      {URL: "https://example.com/en.vtt", Ext: "vtt"},
	}

	url, ext, ok := selectEnglishSubtitle(tracks)
	require.True(t, ok)
	require.Equal(t, "https://example.com/en.vtt", url)
	require.Equal(t, "vtt", ext)
}

func TestSelectEnglishSubtitleFallsBackToVariant(t *testing.T) {
	tracks := map[string]subtitleTrack{
		"en-US": {URL: "https://example.com/en-us.srt", Ext: "srt"},
	}

	url, ext, ok := selectEnglishSubtitle(tracks)
	require.True(t, ok)
	require.Equal(t, "https://example.com/en-us.srt", url)
	require.Equal(t, "srt", ext)
}

func TestSelectEnglishSubtitleNoneFound(t *testing.T) {
	_, _, ok := selectEnglishSubtitle(map[string]subtitleTrack{"fr": {URL: "https://example.com/fr.vtt"}})
	require.False(t, ok)
}
