package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupRoutesToExpectedHandler(t *testing.T) {
	cases := []struct {
		url      string
		wantSite string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "youtube"},
		{"https://www.reddit.com/r/golang/comments/abc123/post/", "reddit"},
		{"https://imgur.com/a/abc123", "imgur"},
		{"https://www.instagram.com/p/Cabc123/", "instagram"},
		{"https://streamable.com/abc12", "streamable"},
		{"https://www.facebook.com/someone/videos/123456", "facebook"},
		{"https://bsky.app/profile/someone.bsky.social/post/3k7abcxyz123", "bluesky"},
		{"https://mastodon.social/@someone/123456789", "mastodon"},
		{"https://some-random-forum.example.com/thread/1", "generic"},
	}

	for _, tc := range cases {
		h := Lookup(tc.url)
		require.NotNilf(t, h, "expected a handler for %s", tc.url)
		require.Equalf(t, tc.wantSite, h.SiteID(), "url %s", tc.url)
	}
}
