package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLinksTagsQuoteBlocks(t *testing.T) {
	body := `<p>check this out <a href="https://example.com/a">link</a></p>
<blockquote><a href="https://example.com/b">quoted link</a></blockquote>`

	links := ExtractLinks(body)
	require.Len(t, links, 2)

	byURL := map[string]ExtractedLink{}
	for _, l := range links {
		byURL[l.URL] = l
	}

	require.False(t, byURL["https://example.com/a"].InQuote)
	require.True(t, byURL["https://example.com/b"].InQuote)
}

func TestExtractLinksDedupes(t *testing.T) {
	body := `<a href="https://example.com/a">one</a><a href="https://example.com/a">two</a>`
	links := ExtractLinks(body)
	require.Len(t, links, 1)
}

func TestContextSnippetTruncatesAndCollapsesWhitespace(t *testing.T) {
	raw := "word   " + stringsRepeat("x", 200)
	snip := contextSnippet(raw)
	require.LessOrEqual(t, len(snip), contextWindow)
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
