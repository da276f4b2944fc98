package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMediaFilenameFromURL(t *testing.T) {
	require.Equal(t, "video.mp4", mediaFilenameFromURL("https://cdn.example.com/path/video.mp4"))
	require.Equal(t, "video.mp4", mediaFilenameFromURL("https://cdn.example.com/path/video.mp4?sig=abc&exp=123"))
	require.Equal(t, "media", mediaFilenameFromURL("https://cdn.example.com/"))
}

func TestWriteFileBytesCreatesWorkDir(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "nested")
	err := writeFileBytes(workDir, "blob.bin", []byte("data"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(workDir, "blob.bin"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}
