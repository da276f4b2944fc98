package handlers

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestHtmlFragmentToTextStripsScripts(t *testing.T) {
	got := htmlFragmentToText(`<p>hello</p><script>alert(1)</script>`)
	require.Contains(t, got, "hello")
	require.NotContains(t, got, "alert")
}

func TestHtmlFragmentToTextRendersMarkdownLink(t *testing.T) {
	got := htmlFragmentToText(`<p>see <a href="https://example.com">this</a></p>`)
	require.Contains(t, got, "example.com")
}

func TestExtractTitlePrefersOGTag(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><title>Fallback</title><meta property="og:title" content="OG Title"></head></html>`,
	))
	require.NoError(t, err)
	require.Equal(t, "OG Title", extractTitle(doc))
}

func TestExtractTitleFallsBackToTitleTag(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head><title>Plain Title</title></head></html>`))
	require.NoError(t, err)
	require.Equal(t, "Plain Title", extractTitle(doc))
}

func TestExtractDescriptionPrefersMetaTag(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><meta name="description" content="a summary"></head><body><article>ignored</article></body></html>`,
	))
	require.NoError(t, err)
	require.Equal(t, "a summary", extractDescription(doc))
}

func TestExtractDescriptionFallsBackToArticleBody(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><article><p>the article text</p></article></body></html>`,
	))
	require.NoError(t, err)
	require.Contains(t, extractDescription(doc), "the article text")
}
