package archiver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPdfPageCountReturnsFalseForInvalidPDF(t *testing.T) {
	_, ok := pdfPageCount([]byte("not a pdf"))
	require.False(t, ok)
}

func TestPdfPageCountReturnsFalseForEmptyData(t *testing.T) {
	_, ok := pdfPageCount(nil)
	require.False(t, ok)
}
