package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"mvdan.cc/xurls/v2"
)

// ExtractedLink is a single link found inside a post body, tagged with
// whether it sits inside a quote block and a short surrounding-text window
// (§4.8 step 3).
type ExtractedLink struct {
	URL     string
	InQuote bool
	Context string
}

var bareURLRe = xurls.Strict()

const contextWindow = 120

// ExtractLinks walks the post body's HTML for anchors and bare URLs in
// text, recording whether each sits inside a quote block.
func ExtractLinks(bodyHTML string) []ExtractedLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return textLinks(bodyHTML, false)
	}

	seen := map[string]bool{}
	var out []ExtractedLink

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		out = append(out, ExtractedLink{
			URL:     href,
			InQuote: insideQuote(s),
			Context: contextSnippet(s.Text()),
		})
	})

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := s.Text()
		for _, u := range bareURLRe.FindAllString(text, -1) {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, ExtractedLink{
				URL:     u,
				InQuote: insideQuote(s),
				Context: contextSnippet(text),
			})
		}
	})

	return out
}

func textLinks(text string, inQuote bool) []ExtractedLink {
	urls := bareURLRe.FindAllString(text, -1)
	out := make([]ExtractedLink, 0, len(urls))
	for _, u := range urls {
		out = append(out, ExtractedLink{URL: u, InQuote: inQuote, Context: contextSnippet(text)})
	}
	return out
}

// insideQuote walks up the DOM looking for a blockquote or a common
// forum-software quote-block class.
func insideQuote(s *goquery.Selection) bool {
	found := false
	s.ParentsFiltered("blockquote").Each(func(_ int, _ *goquery.Selection) { found = true })
	if found {
		return true
	}
	s.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		class, _ := p.Attr("class")
		if strings.Contains(class, "quote") {
			found = true
			return false
		}
		return true
	})
	return found
}

func contextSnippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= contextWindow {
		return text
	}
	return text[:contextWindow]
}
