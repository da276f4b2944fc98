package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forumarch/archiver/pkg/models"
)

func TestIsDirectRedditMedia(t *testing.T) {
	require.True(t, isDirectRedditMedia("https://i.redd.it/abc123.jpg"))
	require.True(t, isDirectRedditMedia("https://v.redd.it/abc123/DASH_1080.mp4"))
	require.True(t, isDirectRedditMedia("https://i.imgur.com/abc123.png"))
	require.True(t, isDirectRedditMedia("https://example.com/some/path/clip.mp4"))
	require.False(t, isDirectRedditMedia("https://www.reddit.com/r/golang/comments/abc123/some_post/"))
	require.False(t, isDirectRedditMedia("https://example.com/article"))
}

func TestIsNSFWSubreddit(t *testing.T) {
	require.True(t, isNSFWSubreddit("NSFW_pics"))
	require.True(t, isNSFWSubreddit("gonewild"))
	require.False(t, isNSFWSubreddit("golang"))
}

func TestRedditHandlerNormalize(t *testing.T) {
	h := &redditHandler{}
	require.Equal(t, "https://old.reddit.com/r/golang/comments/abc123/",
		h.Normalize("https://www.reddit.com/r/golang/comments/abc123/"))
	require.Equal(t, "https://redd.it/abc123", h.Normalize("http://redd.it/abc123"))
}

func TestRedditHandlerMatches(t *testing.T) {
	h := &redditHandler{}
	require.True(t, h.Matches("https://www.reddit.com/r/golang/comments/abc123/"))
	require.True(t, h.Matches("https://redd.it/abc123"))
	require.False(t, h.Matches("https://example.com"))
}

func TestArchiveContentFallsBackToPostText(t *testing.T) {
	h := &redditHandler{}
	workDir := t.TempDir()
	result := models.NewArchiveResult()
	result.Title = "a title"
	result.Text = "body text"

	err := h.archiveContent(context.Background(), workDir, "", result)
	require.NoError(t, err)
	require.Equal(t, "post.txt", result.PrimaryFile)

	data, err := os.ReadFile(filepath.Join(workDir, "post.txt"))
	require.NoError(t, err)
	require.Equal(t, "a title\n\nbody text", string(data))
}
