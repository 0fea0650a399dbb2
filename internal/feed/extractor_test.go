package feed_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"newsdigest/internal/feed"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Test Article</title></head>
<body>
	<article>
		<h1>Test Article Title</h1>
		<p>This is the main content of the article and it is long enough to be kept.</p>
		<p>It has multiple paragraphs that describe what happened in some detail.</p>
	</article>
</body>
</html>`

func TestHTTPExtractorFallsBackToBrowserRequest(t *testing.T) {
	var (
		mu         sync.Mutex
		userAgents []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		userAgents = append(userAgents, r.UserAgent())
		mu.Unlock()

		if r.UserAgent() != "Mozilla/5.0" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	extractor := feed.NewHTTPExtractor(srv.Client(), slog.Default())

	got := extractor.Extract(context.Background(), srv.URL+"/story")
	if !got.OK() {
		t.Fatalf("expected extraction to succeed, got reason %s: %v", got.Reason, got.Err)
	}

	if !strings.Contains(got.Text, "main content of the article") {
		t.Fatalf("unexpected text: %q", got.Text)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(userAgents) != 2 || userAgents[0] != "newsdigest/1.0" {
		t.Fatalf("unexpected requests: %v", userAgents)
	}
}

func TestHTTPExtractorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	extractor := feed.NewHTTPExtractor(srv.Client(), slog.Default())

	got := extractor.Extract(context.Background(), srv.URL)
	if got.OK() || got.Text != "" {
		t.Fatalf("expected failed extraction, got %+v", got)
	}

	if got.Reason != feed.ReasonUnreachable {
		t.Fatalf("unexpected reason: %s", got.Reason)
	}
}

func TestHTTPExtractorInvalidURL(t *testing.T) {
	extractor := feed.NewHTTPExtractor(http.DefaultClient, slog.Default())

	got := extractor.Extract(context.Background(), "not a url")
	if got.Reason != feed.ReasonInvalidURL {
		t.Fatalf("unexpected reason: %s", got.Reason)
	}
}

func TestHTTPClientRefusesPrivateNetworks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	guarded := feed.NewHTTPClient(time.Second, false)
	if resp, err := guarded.Get(srv.URL); err == nil {
		_ = resp.Body.Close()
		t.Fatalf("expected loopback request to be refused")
	}

	open := feed.NewHTTPClient(time.Second, true)
	resp, err := open.Get(srv.URL)
	if err != nil {
		t.Fatalf("expected request to succeed: %v", err)
	}
	_ = resp.Body.Close()
}
