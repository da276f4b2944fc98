package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChooseFormatShortVideo(t *testing.T) {
	meta := &videoMetadata{Duration: 300}
	require.Equal(t, "bestvideo[height<=1080]+bestaudio/best[height<=1080]", chooseFormat(meta, 1200))
}

func TestChooseFormatLongLowBitrate(t *testing.T) {
	meta := &videoMetadata{Duration: 3600, Filesize: 1_000_000_000}
	require.Equal(t, "bestvideo[height<=1080]+bestaudio/best[height<=1080]", chooseFormat(meta, 1200))
}

func TestChooseFormatLongNormalBitrate(t *testing.T) {
	meta := &videoMetadata{Duration: 3600, Filesize: 20_000_000_000}
	require.Equal(t, "bestvideo[height<=720]+bestaudio/best[height<=720]", chooseFormat(meta, 1200))
}

func TestSanitizedVideoFilenameUsesTitle(t *testing.T) {
	meta := &videoMetadata{Title: "My Video", Extension: "webm"}
	require.Equal(t, "My Video.webm", sanitizedVideoFilename(meta))
}

func TestSanitizedVideoFilenameFallsBackToID(t *testing.T) {
	meta := &videoMetadata{ID: "abc123"}
	require.Equal(t, "abc123.mp4", sanitizedVideoFilename(meta))
}
