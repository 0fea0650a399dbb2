package bot

import (
	"context"
	"errors"
	"fmt"

	"newsdigest/internal/digest"
	"newsdigest/internal/domain"
)

// SendDigest delivers rendered sections to a chat, one message per section
// part, and keeps going when a single message fails.
func (b *Bot) SendDigest(ctx context.Context, chatID int64, sections []domain.Section) error {
	var errs []error

	for _, text := range digest.Render(sections) {
		if err := b.reply(ctx, chatID, Message{Text: text, HTML: true}); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SendDailyDigest builds the scheduled digest for a user and pushes it to
// the user's private chat. Users without topics, or without any articles
// found, get nothing.
func (b *Bot) SendDailyDigest(ctx context.Context, userID int64) error {
	topics, err := b.prefs.GetTopics(ctx, userID)
	if err != nil {
		return fmt.Errorf("get topics: %w", err)
	}

	if len(topics) == 0 {
		b.log.InfoContext(ctx, "Daily digest is skipped, no topics",
			"userID", userID)

		return nil
	}

	sections, err := b.digests.Build(ctx, userID, domain.CountDaily)
	if err != nil {
		return fmt.Errorf("build digest: %w", err)
	}

	if len(sections) == 0 {
		b.log.InfoContext(ctx, "Daily digest is empty",
			"userID", userID,
			"topics", len(topics))

		return nil
	}

	return b.SendDigest(ctx, userID, sections)
}
