package commentworker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCommentTreeNestsReplies(t *testing.T) {
	raw := []ytComment{
		{ID: "1", Parent: "root", Text: "top"},
		{ID: "2", Parent: "1", Text: "reply"},
		{ID: "3", Parent: "2", Text: "reply to reply"},
		{ID: "4", Parent: "root", Text: "second top"},
	}

	comments, topLevel, maxDepth := buildCommentTree(raw)

	require.Equal(t, 2, topLevel)
	require.Equal(t, 2, maxDepth)
	require.Len(t, comments, 2)
	require.Equal(t, "root", comments[0].ParentID)
	require.Len(t, comments[0].Replies, 1)
	require.Equal(t, "1", comments[0].Replies[0].ParentID)
	require.Len(t, comments[0].Replies[0].Replies, 1)
}

func TestBuildCommentTreeEmpty(t *testing.T) {
	comments, topLevel, maxDepth := buildCommentTree(nil)
	require.Empty(t, comments)
	require.Equal(t, 0, topLevel)
	require.Equal(t, 0, maxDepth)
}

func TestTiktokVideoIDFromURL(t *testing.T) {
	id, ok := tiktokVideoIDFromURL("https://www.tiktok.com/@someone/video/7123456789012345678")
	require.True(t, ok)
	require.Equal(t, "7123456789012345678", id)

	_, ok = tiktokVideoIDFromURL("https://www.tiktok.com/foo")
	require.False(t, ok)
}
