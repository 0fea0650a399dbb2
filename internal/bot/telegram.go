package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// UpdateHandler receives parsed updates from the transport.
type UpdateHandler interface {
	HandleCommand(ctx context.Context, cmd Command) error
	HandleCallback(ctx context.Context, callback Callback) error
}

// Telegram is the Bot API transport. It implements Sender and turns
// incoming updates into Commands and Callbacks.
type Telegram struct {
	api     *tgbot.Bot
	handler UpdateHandler
	log     *slog.Logger
}

func NewTelegram(token string, log *slog.Logger) (*Telegram, error) {
	t := &Telegram{log: log}

	api, err := tgbot.New(
		strings.TrimSpace(token),
		tgbot.WithDefaultHandler(t.handleUpdate),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Failed to poll updates",
				"error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	t.api = api

	return t, nil
}

// Run registers the command menu and polls updates until ctx is done.
func (t *Telegram) Run(ctx context.Context, handler UpdateHandler) {
	t.handler = handler

	commands := make([]models.BotCommand, 0, len(commandList))
	for _, c := range commandList {
		commands = append(commands, models.BotCommand{Command: c.Name, Description: c.Description})
	}

	if _, err := t.api.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{Commands: commands}); err != nil {
		t.log.WarnContext(ctx, "Failed to set bot commands",
			"error", err)
	}

	t.api.Start(ctx)
}

func (t *Telegram) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		name, args, ok := ParseCommand(update.Message.Text)
		if !ok {
			return
		}

		cmd := Command{
			ChatID:    update.Message.Chat.ID,
			UserID:    update.Message.From.ID,
			MessageID: update.Message.ID,
			Name:      name,
			Args:      args,
		}

		if err := t.handler.HandleCommand(ctx, cmd); err != nil {
			t.log.ErrorContext(ctx, "Failed to handle command",
				"error", err,
				"chatID", cmd.ChatID,
				"userID", cmd.UserID,
				"chatType", update.Message.Chat.Type,
				"command", cmd.Name,
				"messageID", cmd.MessageID)
		}

	case update.CallbackQuery != nil:
		chatID, messageID := callbackMessage(update.CallbackQuery)

		callback := Callback{
			ID:        update.CallbackQuery.ID,
			ChatID:    chatID,
			UserID:    update.CallbackQuery.From.ID,
			MessageID: messageID,
			Data:      update.CallbackQuery.Data,
		}

		if err := t.handler.HandleCallback(ctx, callback); err != nil {
			t.log.ErrorContext(ctx, "Failed to handle callback query",
				"error", err,
				"chatID", callback.ChatID,
				"userID", callback.UserID,
				"data", callback.Data,
				"messageID", callback.MessageID)
		}
	}
}

func callbackMessage(cb *models.CallbackQuery) (int64, int) {
	switch {
	case cb.Message.Message != nil:
		return cb.Message.Message.Chat.ID, cb.Message.Message.ID
	case cb.Message.InaccessibleMessage != nil:
		return cb.Message.InaccessibleMessage.Chat.ID, cb.Message.InaccessibleMessage.MessageID
	default:
		return cb.From.ID, 0
	}
}

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, message Message) (int, error) {
	params := &tgbot.SendMessageParams{
		ChatID:             chatID,
		Text:               t.validText(chatID, message.Text),
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
	}
	if message.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if len(message.Keyboard) > 0 {
		params.ReplyMarkup = inlineKeyboard(message.Keyboard)
	}

	sent, err := t.api.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}

	return sent.ID, nil
}

func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, message Message) error {
	params := &tgbot.EditMessageTextParams{
		ChatID:             chatID,
		MessageID:          messageID,
		Text:               t.validText(chatID, message.Text),
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
	}
	if message.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if len(message.Keyboard) > 0 {
		params.ReplyMarkup = inlineKeyboard(message.Keyboard)
	}

	if _, err := t.api.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("edit message text: %w", err)
	}

	return nil
}

func (t *Telegram) EditKeyboard(ctx context.Context, chatID int64, messageID int, keyboard Keyboard) error {
	if _, err := t.api.EditMessageReplyMarkup(ctx, &tgbot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: inlineKeyboard(keyboard),
	}); err != nil {
		return fmt.Errorf("edit message reply markup: %w", err)
	}

	return nil
}

func (t *Telegram) AnswerCallback(ctx context.Context, callbackID string) error {
	if _, err := t.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}

func (t *Telegram) SendTyping(ctx context.Context, chatID int64) error {
	if _, err := t.api.SendChatAction(ctx, &tgbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	}); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}

	return nil
}

func (t *Telegram) validText(chatID int64, text string) string {
	normalized := strings.ToValidUTF8(text, "?")
	if normalized != text {
		t.log.Warn("Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalized))
	}

	return normalized
}

func inlineKeyboard(keyboard Keyboard) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: button.Text, CallbackData: button.Data})
		}

		rows = append(rows, buttons)
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
