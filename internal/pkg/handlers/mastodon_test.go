package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMastodonHandlerMatches(t *testing.T) {
	h := &mastodonHandler{}
	require.True(t, h.Matches("https://mastodon.social/@someone/123456789"))
	require.True(t, h.Matches("http://fosstodon.org/@someone/42"))
	require.False(t, h.Matches("https://mastodon.social/@someone"))
	require.False(t, h.Matches("https://example.com/foo/123"))
}

func TestMastodonHandlerNormalizeForcesHTTPS(t *testing.T) {
	h := &mastodonHandler{}
	require.Equal(t, "https://mastodon.social/@someone/123",
		h.Normalize("http://mastodon.social/@someone/123"))
}

func TestStripMastodonTags(t *testing.T) {
	require.Equal(t, "hello world", stripMastodonTags("<p>hello world</p>"))
	require.Equal(t, "plain", stripMastodonTags("plain"))
}
