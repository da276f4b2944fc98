package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImgurHandlerMatches(t *testing.T) {
	h := &imgurHandler{}
	require.True(t, h.Matches("https://imgur.com/a/abc123"))
	require.True(t, h.Matches("https://imgur.com/gallery/abc123"))
	require.True(t, h.Matches("https://www.imgur.com/abc123"))
	require.False(t, h.Matches("https://example.com/abc123"))
}

func TestInstagramHandlerMatches(t *testing.T) {
	h := &instagramHandler{}
	require.True(t, h.Matches("https://www.instagram.com/p/Cabc123/"))
	require.True(t, h.Matches("https://instagram.com/reel/Cabc123/"))
	require.True(t, h.Matches("https://instagram.com/tv/Cabc123/"))
	require.False(t, h.Matches("https://instagram.com/someuser/"))
}

func TestStreamableHandlerMatchesAndVideoID(t *testing.T) {
	h := &streamableHandler{}
	require.True(t, h.Matches("https://streamable.com/abc12"))
	require.False(t, h.Matches("https://example.com/abc12"))

	id, ok := h.VideoID("https://streamable.com/abc12")
	require.True(t, ok)
	require.Equal(t, "abc12", id)
}

func TestFacebookHandlerMatches(t *testing.T) {
	h := &facebookHandler{}
	require.True(t, h.Matches("https://www.facebook.com/someone/videos/123456"))
	require.True(t, h.Matches("https://m.facebook.com/reel/123456"))
	require.False(t, h.Matches("https://example.com/reel/123456"))
}

func TestFacebookReelURLDetection(t *testing.T) {
	require.True(t, facebookReelRe.MatchString("https://www.facebook.com/reel/123456"))
	require.True(t, facebookReelRe.MatchString("https://www.facebook.com/someone/videos/123456"))
	require.False(t, facebookReelRe.MatchString("https://www.facebook.com/someone/posts/123456"))
}
