package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"newsdigest/internal/domain"
	"newsdigest/internal/metrics"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchTimeout   = 12 * time.Second
	defaultMaxParallelism = 4
	untitledArticle       = "Untitled"
)

// FetchResult is the outcome of reading one feed.
type FetchResult struct {
	FeedURL  string
	Articles []domain.Article
	Reason   Reason
	Err      error
}

// TopicResult is the outcome of LatestArticles plus the per-feed and
// per-article reasons behind it.
type TopicResult struct {
	Topic       string
	Articles    []domain.Article
	Reason      Reason
	Feeds       []FetchResult
	Extractions []Extraction
}

type Options struct {
	// Client is used for feed requests. Nil means a plain client with Timeout.
	Client         *http.Client
	Timeout        time.Duration
	CacheTTL       time.Duration
	MaxParallelism int
	Metrics        *metrics.Collector
}

// Source returns recent articles for a topic. It never fails: unreachable
// feeds and pages only shrink or empty the result.
type Source struct {
	catalog        *Catalog
	parser         *gofeed.Parser
	extractor      Extractor
	cache          *extractCache
	timeout        time.Duration
	maxParallelism int
	metrics        *metrics.Collector
	log            *slog.Logger
}

func NewSource(catalog *Catalog, extractor Extractor, opts Options, log *slog.Logger) *Source {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MaxParallelism <= 0 {
		opts.MaxParallelism = defaultMaxParallelism
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}

	parser := gofeed.NewParser()
	parser.Client = opts.Client

	return &Source{
		catalog:        catalog,
		parser:         parser,
		extractor:      extractor,
		cache:          newExtractCache(extractCacheMaxEntries, opts.CacheTTL),
		timeout:        opts.Timeout,
		maxParallelism: opts.MaxParallelism,
		metrics:        opts.Metrics,
		log:            log,
	}
}

func (s *Source) Catalog() *Catalog {
	return s.catalog
}

// LatestArticles returns at most limit articles for topic, newest first.
func (s *Source) LatestArticles(ctx context.Context, topic string, limit int) []domain.Article {
	return s.Fetch(ctx, topic, limit).Articles
}

// Fetch merges up to limit entries from every feed of topic, sorts them by
// publication time (undated entries last), keeps the first limit and fills
// in their text.
func (s *Source) Fetch(ctx context.Context, topic string, limit int) TopicResult {
	result := TopicResult{Topic: topic, Reason: ReasonOK}

	feeds := s.catalog.Feeds(topic)
	if len(feeds) == 0 || limit <= 0 {
		result.Reason = ReasonUnknownTopic
		if limit <= 0 {
			result.Reason = ReasonEmpty
		}

		return result
	}

	result.Feeds = make([]FetchResult, len(feeds))

	g := s.group()
	for i, feedURL := range feeds {
		g.Go(func() error {
			result.Feeds[i] = s.fetchFeed(ctx, feedURL, limit)
			return nil
		})
	}
	_ = g.Wait()

	var merged []domain.Article
	for _, fr := range result.Feeds {
		merged = append(merged, fr.Articles...)
	}

	slices.SortStableFunc(merged, func(a, b domain.Article) int {
		return publishedUnix(b).Compare(publishedUnix(a))
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}

	if len(merged) == 0 {
		result.Reason = ReasonEmpty
		return result
	}

	result.Extractions = make([]Extraction, len(merged))

	g = s.group()
	for i := range merged {
		g.Go(func() error {
			result.Extractions[i] = s.fillContent(ctx, &merged[i])
			return nil
		})
	}
	_ = g.Wait()

	result.Articles = merged

	return result
}

func (s *Source) group() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(s.maxParallelism)

	return g
}

func (s *Source) fetchFeed(ctx context.Context, feedURL string, limit int) FetchResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()

	parsed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	s.metrics.RecordFeedFetch(err == nil, time.Since(started))

	if err != nil {
		reason := ReasonUnparsable

		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) || ctx.Err() != nil || isNetworkError(err) {
			reason = ReasonUnreachable
		}

		s.log.WarnContext(ctx, "Failed to fetch feed",
			"error", err,
			"feedURL", feedURL,
			"reason", reason)

		return FetchResult{
			FeedURL: feedURL,
			Reason:  reason,
			Err:     fmt.Errorf("parse feed (URL = %s): %w", feedURL, err),
		}
	}

	items := parsed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		articles = append(articles, articleFromItem(item))
	}

	reason := ReasonOK
	if len(articles) == 0 {
		reason = ReasonEmpty
	}

	return FetchResult{FeedURL: feedURL, Articles: articles, Reason: reason}
}

func (s *Source) fillContent(ctx context.Context, article *domain.Article) Extraction {
	extraction := s.extract(ctx, article.URL)
	s.metrics.RecordExtraction(string(extraction.Reason))

	switch {
	case extraction.OK():
		article.Content = extraction.Text
		article.Source = domain.ContentExtracted
	case article.Summary != "":
		article.Content = article.Summary
		article.Source = domain.ContentFeedSummary
	default:
		article.Content = ""
		article.Source = domain.ContentNone
	}

	return extraction
}

func (s *Source) extract(ctx context.Context, articleURL string) Extraction {
	if articleURL == "" {
		return Extraction{Reason: ReasonInvalidURL, Err: errors.New("article URL is empty")}
	}

	if text, ok := s.cache.get(articleURL); ok {
		return Extraction{Text: text, Reason: ReasonCached}
	}

	if s.extractor == nil {
		return Extraction{Reason: ReasonEmpty}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*s.timeout)
	defer cancel()

	extraction := s.extractor.Extract(ctx, articleURL)
	if extraction.OK() {
		s.cache.put(articleURL, extraction.Text)
	}

	return extraction
}

func articleFromItem(item *gofeed.Item) domain.Article {
	title := htmlToText(item.Title)
	if title == "" {
		title = untitledArticle
	}

	article := domain.Article{
		Title:   title,
		URL:     strings.TrimSpace(item.Link),
		Summary: htmlToText(item.Description),
		Source:  domain.ContentNone,
	}

	switch {
	case item.PublishedParsed != nil:
		published := *item.PublishedParsed
		article.Published = &published
	case item.UpdatedParsed != nil:
		updated := *item.UpdatedParsed
		article.Published = &updated
	}

	return article
}

// publishedUnix treats a missing timestamp as the epoch so that undated
// entries sort as oldest.
func publishedUnix(a domain.Article) time.Time {
	if a.Published == nil {
		return time.Unix(0, 0)
	}

	return *a.Published
}

func isNetworkError(err error) bool {
	var netErr net.Error
	var urlErr *url.Error

	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}
