package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"newsdigest/internal/digest"
)

const (
	selectedMark   = "✅ "
	unselectedMark = "⬜ "
	doneButtonText = "Done ✅"
)

// topicKeyboard has one row per catalog topic, in catalog order, and a
// final Done row.
func (b *Bot) topicKeyboard(selected []string) Keyboard {
	names := b.catalog.Names()
	keyboard := make(Keyboard, 0, len(names)+1)

	for _, name := range names {
		mark := unselectedMark
		if slices.Contains(selected, name) {
			mark = selectedMark
		}

		keyboard = append(keyboard, []Button{{
			Text: mark + digest.TopicTitle(name),
			Data: toggleCallbackPrefix + name,
		}})
	}

	return append(keyboard, []Button{{Text: doneButtonText, Data: doneCallbackData}})
}

func (b *Bot) reply(ctx context.Context, chatID int64, message Message) error {
	if _, err := b.sender.SendMessage(ctx, chatID, message); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// replyFailed tells the user something went wrong and returns err together
// with any send failure.
func (b *Bot) replyFailed(ctx context.Context, chatID int64, err error) error {
	if sendErr := b.reply(ctx, chatID, Message{Text: failedText}); sendErr != nil {
		return errors.Join(err, sendErr)
	}

	return err
}
