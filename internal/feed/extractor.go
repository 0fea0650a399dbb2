package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"
)

const (
	maxArticleBytes  = 5 << 20
	primaryUserAgent = "newsdigest/1.0"
	browserUserAgent = "Mozilla/5.0"
)

type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonCached       Reason = "cached"
	ReasonEmpty        Reason = "empty"
	ReasonUnreachable  Reason = "unreachable"
	ReasonUnparsable   Reason = "unparsable"
	ReasonInvalidURL   Reason = "invalid_url"
	ReasonUnknownTopic Reason = "unknown_topic"
)

// Extraction is the outcome of pulling plain text out of an article page.
// Text is empty whenever Reason is not ReasonOK or ReasonCached.
type Extraction struct {
	Text   string
	Reason Reason
	Err    error
}

func (e Extraction) OK() bool {
	return e.Reason == ReasonOK || e.Reason == ReasonCached
}

type Extractor interface {
	Extract(ctx context.Context, articleURL string) Extraction
}

// HTTPExtractor downloads an article and extracts its main text. The first
// attempt favors recall; when it yields nothing a second plain browser-like
// GET is tried with comments excluded. There are no further retries.
type HTTPExtractor struct {
	client *http.Client
	log    *slog.Logger
}

func NewHTTPExtractor(client *http.Client, log *slog.Logger) *HTTPExtractor {
	return &HTTPExtractor{client: client, log: log}
}

func (e *HTTPExtractor) Extract(ctx context.Context, articleURL string) Extraction {
	parsedURL, err := url.Parse(strings.TrimSpace(articleURL))
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return Extraction{Reason: ReasonInvalidURL, Err: fmt.Errorf("invalid URL %q", articleURL)}
	}

	primary := e.extract(ctx, parsedURL, false, trafilatura.Options{
		Focus:          trafilatura.FavorRecall,
		EnableFallback: true,
		OriginalURL:    parsedURL,
	})
	if primary.OK() {
		return primary
	}

	fallback := e.extract(ctx, parsedURL, true, trafilatura.Options{
		Focus:           trafilatura.FavorRecall,
		EnableFallback:  true,
		ExcludeComments: true,
		OriginalURL:     parsedURL,
	})
	if fallback.OK() {
		return fallback
	}

	e.log.DebugContext(ctx, "Article text is not extracted",
		"url", parsedURL.String(),
		"primaryReason", primary.Reason,
		"primaryError", primary.Err,
		"fallbackReason", fallback.Reason,
		"fallbackError", fallback.Err)

	fallback.Err = errors.Join(primary.Err, fallback.Err)

	return fallback
}

func (e *HTTPExtractor) extract(
	ctx context.Context,
	articleURL *url.URL,
	browserLike bool,
	opts trafilatura.Options,
) Extraction {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL.String(), http.NoBody)
	if err != nil {
		return Extraction{Reason: ReasonInvalidURL, Err: fmt.Errorf("create request: %w", err)}
	}

	if browserLike {
		req.Header.Set("User-Agent", browserUserAgent)
		addBrowserHeaders(req)
	} else {
		req.Header.Set("User-Agent", primaryUserAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Extraction{Reason: ReasonUnreachable, Err: fmt.Errorf("fetch URL: %w", err)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.log.DebugContext(ctx, "Failed to close response body",
				"error", closeErr,
				"url", articleURL.String())
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return Extraction{
			Reason: ReasonUnreachable,
			Err:    fmt.Errorf("unexpected status code %d", resp.StatusCode),
		}
	}

	result, err := trafilatura.Extract(io.LimitReader(resp.Body, maxArticleBytes), opts)
	if err != nil {
		return Extraction{Reason: ReasonUnparsable, Err: fmt.Errorf("extract content: %w", err)}
	}
	if result == nil {
		return Extraction{Reason: ReasonEmpty}
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return Extraction{Reason: ReasonEmpty}
	}

	return Extraction{Text: text, Reason: ReasonOK}
}

// addBrowserHeaders makes the fallback request look like a regular browser
// navigation.
func addBrowserHeaders(req *http.Request) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
}
