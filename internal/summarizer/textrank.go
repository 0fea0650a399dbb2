package summarizer

import (
	"log/slog"
	"strings"

	"github.com/DavidBelicza/TextRank/v2"
	"mvdan.cc/xurls/v2"
)

// TextRank ranks sentences by centrality in a sentence-similarity graph and
// keeps the strongest ones. Output order is the ranking order.
type TextRank struct {
	log *slog.Logger
}

func NewTextRank(log *slog.Logger) *TextRank {
	return &TextRank{log: log}
}

func (s *TextRank) Summarize(text string, maxSentences int) (summary string) {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if maxSentences <= 0 {
		maxSentences = 1
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("Failed to summarize text",
				"error", r,
				"textLength", len(text))

			summary = text
		}
	}()

	sentences := rank(cleanText(text), maxSentences)
	if len(sentences) == 0 {
		return firstSentence(text)
	}

	return strings.Join(sentences, " ")
}

func rank(text string, maxSentences int) []string {
	if text == "" {
		return nil
	}

	tr := textrank.NewTextRank()
	tr.Populate(text, textrank.NewDefaultLanguage(), textrank.NewDefaultRule())
	tr.Ranking(textrank.NewDefaultAlgorithm())

	ranked := textrank.FindSentencesByRelationWeight(tr, maxSentences)

	out := make([]string, 0, len(ranked))
	for _, sentence := range ranked {
		v := strings.TrimSpace(sentence.Value)
		if v == "" {
			continue
		}

		out = append(out, v)
	}

	return out
}

// cleanText drops bare URLs, which otherwise end up as words of their own
// sentences, and collapses whitespace.
func cleanText(text string) string {
	text = xurls.Strict().ReplaceAllString(text, "")

	return strings.Join(strings.Fields(text), " ")
}

func firstSentence(text string) string {
	first, _, _ := strings.Cut(text, ". ")

	return first
}
