// Package markup builds text in the HTML subset understood by Telegram's
// HTML parse mode.
package markup

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

//nolint:gochecknoglobals // Policies are safe for concurrent use.
var linkPolicy = newLinkPolicy()

// newLinkPolicy keeps anchors only for absolute http(s) URLs.
func newLinkPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)

	return p
}

// Escape turns arbitrary text into HTML text content. Anything that looks
// like a tag is kept as literal text.
func Escape(s string) string {
	return html.EscapeString(s)
}

func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Header is a bold underlined line.
func Header(s string) string {
	return "<u>" + Bold(s) + "</u>"
}

// Link renders an anchor. When href is not an absolute http(s) URL only the
// text is left.
func Link(href, text string) string {
	anchor := `<a href="` + Escape(strings.TrimSpace(href)) + `">` + Escape(text) + "</a>"

	return linkPolicy.Sanitize(anchor)
}
