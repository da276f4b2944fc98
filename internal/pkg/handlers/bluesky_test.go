package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlueskyHandlerMatches(t *testing.T) {
	h := &blueskyHandler{}
	require.True(t, h.Matches("https://bsky.app/profile/someone.bsky.social/post/3k7abcxyz123"))
	require.True(t, h.Matches("https://www.bsky.app/profile/did:plc:abc123/post/3k7abcxyz123"))
	require.False(t, h.Matches("https://bsky.app/profile/someone.bsky.social"))
	require.False(t, h.Matches("https://example.com"))
}

func TestBlueskyHandlerNormalizeIsIdentity(t *testing.T) {
	h := &blueskyHandler{}
	url := "https://bsky.app/profile/someone.bsky.social/post/3k7abcxyz123"
	require.Equal(t, url, h.Normalize(url))
}

func TestBlueskyPostURLRegexCapturesActorAndRkey(t *testing.T) {
	m := blueskyPostURLRe.FindStringSubmatch("https://bsky.app/profile/someone.bsky.social/post/3k7abcxyz123")
	require.NotNil(t, m)
	require.Equal(t, "someone.bsky.social", m[2])
	require.Equal(t, "3k7abcxyz123", m[3])
}
