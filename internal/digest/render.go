package digest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"newsdigest/internal/domain"
	"newsdigest/internal/markup"
)

const (
	MaxSummaryLength         = 600
	ellipsis                 = "…"
	telegramMessageMaxLength = 4096
	blockSeparator           = "\n\n"
	readMoreText             = "Read more"
)

// Truncate cuts s to MaxSummaryLength characters and appends an ellipsis
// when it is longer than that.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxSummaryLength {
		return s
	}

	runes := []rune(s)

	return string(runes[:MaxSummaryLength]) + ellipsis
}

// TopicTitle capitalizes a topic name for display.
func TopicTitle(topic string) string {
	r, size := utf8.DecodeRuneInString(topic)
	if r == utf8.RuneError {
		return topic
	}

	return string(unicode.ToUpper(r)) + topic[size:]
}

func RenderBlock(block domain.Block) string {
	var b strings.Builder

	b.WriteString(markup.Bold(block.Title))
	b.WriteString("\n")
	b.WriteString(markup.Escape(block.Summary))
	b.WriteString("\n")
	b.WriteString(markup.Link(block.URL, readMoreText))

	return b.String()
}

// RenderSection renders section as HTML messages. A section normally fits
// in one message; longer ones are split between blocks and every part
// repeats the header.
func RenderSection(section domain.Section) []string {
	header := markup.Header(TopicTitle(section.Topic))

	var messages []string
	var current strings.Builder

	current.WriteString(header)

	for _, block := range section.Blocks {
		rendered := RenderBlock(block)

		if current.Len() > len(header) &&
			utf8.RuneCountInString(current.String())+
				utf8.RuneCountInString(blockSeparator+rendered) > telegramMessageMaxLength {
			messages = append(messages, current.String())
			current.Reset()
			current.WriteString(header)
		}

		current.WriteString(blockSeparator)
		current.WriteString(rendered)
	}

	if current.Len() > len(header) {
		messages = append(messages, current.String())
	}

	return messages
}

// Render renders all sections in order.
func Render(sections []domain.Section) []string {
	var messages []string
	for _, section := range sections {
		messages = append(messages, RenderSection(section)...)
	}

	return messages
}
