package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, br, div, li, h1, h2, h3, h4, h5, h6, blockquote, tr"

// htmlToText flattens a feed-provided HTML snippet into plain text. Block
// boundaries become spaces so that sentences stay separated.
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return collapseSpaces(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpaces(s)
	}

	doc.Find("script, style").Remove()
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		sel.AfterHtml(" ")
	})

	return collapseSpaces(doc.Text())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
