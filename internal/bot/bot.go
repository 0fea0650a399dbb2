// Package bot is the conversational layer: it turns chat commands and
// button presses into preference changes, digests and scheduled jobs.
package bot

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"newsdigest/internal/domain"
)

const updateProcessingTimeout = 2 * time.Minute

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

type Keyboard [][]Button

// Message is an outbound chat message. HTML selects Telegram's HTML parse
// mode; otherwise Text is sent as is.
type Message struct {
	Text     string
	HTML     bool
	Keyboard Keyboard
}

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, message Message) (int, error)
	// EditMessage replaces the text and keyboard of a sent message. A nil
	// keyboard removes it.
	EditMessage(ctx context.Context, chatID int64, messageID int, message Message) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, keyboard Keyboard) error
	AnswerCallback(ctx context.Context, callbackID string) error
	SendTyping(ctx context.Context, chatID int64) error
}

type Preferences interface {
	GetTopics(ctx context.Context, userID int64) ([]string, error)
	UpdateTopics(ctx context.Context, userID int64, fn func([]string) []string) ([]string, error)
	GetSettings(ctx context.Context, userID int64) (domain.Settings, error)
	UpdateSettings(ctx context.Context, userID int64, patch domain.SettingsPatch) (domain.Settings, error)
}

type DigestBuilder interface {
	Build(ctx context.Context, userID int64, key domain.CountKey) ([]domain.Section, error)
}

type Scheduler interface {
	ScheduleDailyJob(userID int64, slot domain.Slot) error
	CancelDailyJob(userID int64)
}

type TopicCatalog interface {
	Names() []string
	Has(topic string) bool
}

// Command is a slash command received in a chat.
type Command struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Name      string
	Args      []string
}

// Callback is an inline keyboard button press.
type Callback struct {
	ID        string
	ChatID    int64
	UserID    int64
	MessageID int
	Data      string
}

type Options struct {
	// AllowedUsers restricts the bot to these users. Empty allows everybody.
	AllowedUsers []int64
	// Location is the zone daily digests are scheduled in, shown by /settings.
	Location *time.Location
}

type Bot struct {
	sender       Sender
	prefs        Preferences
	digests      DigestBuilder
	scheduler    Scheduler
	catalog      TopicCatalog
	allowedUsers []int64
	location     *time.Location
	commands     map[string]commandHandler
	log          *slog.Logger
}

func New(
	sender Sender,
	prefs Preferences,
	digests DigestBuilder,
	scheduler Scheduler,
	catalog TopicCatalog,
	opts Options,
	log *slog.Logger,
) *Bot {
	if opts.Location == nil {
		opts.Location = time.Local
	}

	b := &Bot{
		sender:       sender,
		prefs:        prefs,
		digests:      digests,
		scheduler:    scheduler,
		catalog:      catalog,
		allowedUsers: opts.AllowedUsers,
		location:     opts.Location,
		log:          log,
	}
	b.commands = b.commandHandlers()

	return b
}

// HandleCommand runs the handler registered for cmd.Name. Unknown commands
// and users outside the allow-list are ignored.
func (b *Bot) HandleCommand(ctx context.Context, cmd Command) error {
	if !b.userAllowed(cmd.UserID) {
		b.log.DebugContext(ctx, "User is not allowed",
			"userID", cmd.UserID,
			"chatID", cmd.ChatID,
			"command", cmd.Name)

		return nil
	}

	handler, ok := b.commands[cmd.Name]
	if !ok {
		b.log.DebugContext(ctx, "Unknown command",
			"userID", cmd.UserID,
			"command", cmd.Name)

		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	return handler(ctx, cmd)
}

// HandleCallback handles a keyboard button press.
func (b *Bot) HandleCallback(ctx context.Context, callback Callback) error {
	if !b.userAllowed(callback.UserID) {
		b.log.DebugContext(ctx, "User is not allowed",
			"userID", callback.UserID,
			"chatID", callback.ChatID,
			"data", callback.Data)

		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	return b.handleCallbackQuery(ctx, callback)
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}
