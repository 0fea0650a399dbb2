package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsdigest/internal/domain"
)

const (
	toggleCallbackPrefix = "toggle:"
	doneCallbackData     = "done"
	topicsSavedText      = "Topics saved. Use /latest to get news."
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback Callback) error {
	var errs []error

	if err := b.sender.AnswerCallback(ctx, callback.ID); err != nil {
		errs = append(errs, fmt.Errorf("answer callback: %w", err))
	}

	data := strings.TrimSpace(callback.Data)

	switch {
	case data == doneCallbackData:
		err := b.sender.EditMessage(ctx, callback.ChatID, callback.MessageID, Message{Text: topicsSavedText})
		if err != nil {
			errs = append(errs, fmt.Errorf("edit message: %w", err))
		}
	case strings.HasPrefix(data, toggleCallbackPrefix):
		if err := b.handleToggleQuery(ctx, strings.TrimPrefix(data, toggleCallbackPrefix), callback); err != nil {
			errs = append(errs, err)
		}
	default:
		b.log.DebugContext(ctx, "Unknown callback data",
			"userID", callback.UserID,
			"data", data)
	}

	return errors.Join(errs...)
}

// handleToggleQuery flips one topic and persists the result right away;
// "Done" only closes the keyboard.
func (b *Bot) handleToggleQuery(ctx context.Context, topic string, callback Callback) error {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if !b.catalog.Has(topic) {
		b.log.DebugContext(ctx, "Unknown topic in callback",
			"userID", callback.UserID,
			"topic", topic)

		return nil
	}

	topics, err := b.prefs.UpdateTopics(ctx, callback.UserID, func(current []string) []string {
		return domain.ToggleTopic(current, topic)
	})
	if err != nil {
		return fmt.Errorf("update topics: %w", err)
	}

	if err = b.sender.EditKeyboard(ctx, callback.ChatID, callback.MessageID, b.topicKeyboard(topics)); err != nil {
		return fmt.Errorf("edit keyboard: %w", err)
	}

	return nil
}
