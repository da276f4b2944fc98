package archiver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractEXIFJSONReturnsFalseForNonImageData(t *testing.T) {
	_, ok := extractEXIFJSON([]byte("not an image"))
	require.False(t, ok)
}

func TestExtractEXIFJSONReturnsFalseForEmptyData(t *testing.T) {
	_, ok := extractEXIFJSON(nil)
	require.False(t, ok)
}
