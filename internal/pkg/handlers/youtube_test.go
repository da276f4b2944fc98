package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestYoutubeHandlerMatches(t *testing.T) {
	h := &youtubeHandler{}
	require.True(t, h.Matches("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	require.True(t, h.Matches("https://youtu.be/dQw4w9WgXcQ"))
	require.True(t, h.Matches("https://www.youtube.com/shorts/dQw4w9WgXcQ"))
	require.True(t, h.Matches("https://www.youtube.com/playlist?list=PL123456"))
	require.False(t, h.Matches("https://vimeo.com/12345"))
}

func TestYoutubePlaylistURLRoutesToPlaylistArchiver(t *testing.T) {
	require.True(t, youtubePlaylistURLRe.MatchString("https://www.youtube.com/playlist?list=PLabc123"))
	require.False(t, youtubePlaylistURLRe.MatchString("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	require.False(t, youtubePlaylistURLRe.MatchString("https://youtu.be/dQw4w9WgXcQ"))
}

func TestYoutubeHandlerVideoID(t *testing.T) {
	h := &youtubeHandler{}

	id, ok := h.VideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.True(t, ok)
	require.Equal(t, "dQw4w9WgXcQ", id)

	id, ok = h.VideoID("https://youtu.be/dQw4w9WgXcQ")
	require.True(t, ok)
	require.Equal(t, "dQw4w9WgXcQ", id)

	_, ok = h.VideoID("https://www.youtube.com/playlist?list=PLabc123")
	require.False(t, ok)
}
