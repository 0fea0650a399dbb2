// Package digest turns a user's topics into rendered news sections.
package digest

import (
	"context"
	"fmt"
	"log/slog"

	"newsdigest/internal/domain"
	"newsdigest/internal/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSentences  = 3
	maxParallelTopics = 3
)

type Preferences interface {
	GetTopics(ctx context.Context, userID int64) ([]string, error)
	GetSettings(ctx context.Context, userID int64) (domain.Settings, error)
}

type ArticleSource interface {
	LatestArticles(ctx context.Context, topic string, limit int) []domain.Article
}

type Summarizer interface {
	Summarize(text string, maxSentences int) string
}

type Builder struct {
	prefs      Preferences
	source     ArticleSource
	summarizer Summarizer
	sentences  int
	metrics    *metrics.Collector
	log        *slog.Logger
}

// NewBuilder returns a Builder that summarizes every article to at most
// sentences sentences. Zero means 3.
func NewBuilder(
	prefs Preferences,
	source ArticleSource,
	summarizer Summarizer,
	sentences int,
	m *metrics.Collector,
	log *slog.Logger,
) *Builder {
	if sentences <= 0 {
		sentences = defaultSentences
	}

	return &Builder{
		prefs:      prefs,
		source:     source,
		summarizer: summarizer,
		sentences:  sentences,
		metrics:    m,
		log:        log,
	}
}

// Build returns one section per user topic, in stored topic order, using
// the article count selected by key. Topics without articles are left out,
// so an empty result means nothing was found.
func (b *Builder) Build(ctx context.Context, userID int64, key domain.CountKey) ([]domain.Section, error) {
	topics, err := b.prefs.GetTopics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get topics: %w", err)
	}

	settings, err := b.prefs.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	limit := settings.Count(key)
	sections := make([]domain.Section, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTopics)

	for i, topic := range topics {
		g.Go(func() error {
			sections[i] = b.buildSection(gctx, topic, limit)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Section, 0, len(sections))
	for _, section := range sections {
		if len(section.Blocks) > 0 {
			out = append(out, section)
		}
	}

	b.metrics.RecordDigest(string(key), len(out))

	b.log.InfoContext(ctx, "Digest is built",
		"userID", userID,
		"kind", key,
		"topics", len(topics),
		"sections", len(out))

	return out, nil
}

func (b *Builder) buildSection(ctx context.Context, topic string, limit int) domain.Section {
	articles := b.source.LatestArticles(ctx, topic, limit)

	section := domain.Section{Topic: topic, Blocks: make([]domain.Block, 0, len(articles))}
	for _, article := range articles {
		section.Blocks = append(section.Blocks, domain.Block{
			Title:   article.Title,
			Summary: Truncate(b.summarizer.Summarize(article.Body(), b.sentences)),
			URL:     article.URL,
		})
	}

	return section
}
