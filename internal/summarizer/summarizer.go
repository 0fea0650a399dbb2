package summarizer

// Summarizer condenses plain text into at most maxSentences sentences. It
// never fails: on any internal problem the input is returned as is.
type Summarizer interface {
	Summarize(text string, maxSentences int) string
}
