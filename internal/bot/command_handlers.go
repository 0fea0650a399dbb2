package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"newsdigest/internal/domain"
)

// ErrUsage reports a command called without its required argument.
var ErrUsage = errors.New("missing command argument")

const (
	welcomeText = "Welcome! Choose your topics to get summarized news. " +
		"You can change these anytime with /topics.\nUse /help to see all commands."
	selectTopicsText   = "Select topics:"
	noTopicsText       = "No topics selected. Use /topics to choose."
	fetchingText       = "Fetching and summarizing articles… This may take a few seconds."
	noArticlesText     = "No recent articles found right now. Please try later."
	failedText         = "Something went wrong. Please try later."
	countNumberText    = "Please provide a number between 1 and 10."
	scheduleUsageText  = "Usage: /schedule <morning|evening|night>"
	alreadySubscribed  = "You are already subscribed to daily digests."
	subscribedText     = "Subscribed. You will receive a daily digest at your scheduled time."
	notSubscribedText  = "You are not subscribed."
	unsubscribedText   = "Unsubscribed from daily digests."
	scheduleSetText    = "Daily digest time set to %s."
	latestCountSetText = "Set articles per topic for /latest to %d."
	dailyCountSetText  = "Set articles per topic in daily digest to %d."
)

type commandHandler func(ctx context.Context, cmd Command) error

// CommandInfo describes a command for /help and the client command menu.
type CommandInfo struct {
	Name        string
	Usage       string
	Description string
}

//nolint:gochecknoglobals // Immutable command list.
var commandList = []CommandInfo{
	{Name: "start", Usage: "/start", Description: "Begin and choose your topics"},
	{Name: "topics", Usage: "/topics", Description: "Update your topic preferences"},
	{Name: "latest", Usage: "/latest", Description: "Get summarized news now"},
	{Name: "setlatestcount", Usage: "/setlatestcount <n>", Description: "Articles per topic for /latest"},
	{Name: "setdailycount", Usage: "/setdailycount <n>", Description: "Articles per topic in daily digest"},
	{Name: "schedule", Usage: "/schedule <morning|evening|night>", Description: "Set daily digest time"},
	{Name: "subscribe", Usage: "/subscribe", Description: "Receive daily digest automatically"},
	{Name: "unsubscribe", Usage: "/unsubscribe", Description: "Stop daily digest"},
	{Name: "settings", Usage: "/settings", Description: "Show your current settings"},
	{Name: "help", Usage: "/help", Description: "Show this help"},
}

func Commands() []CommandInfo {
	return commandList
}

func (b *Bot) commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		"start":  b.handleStartCommand,
		"topics": b.handleTopicsCommand,
		"latest": b.handleLatestCommand,
		"setlatestcount": func(ctx context.Context, cmd Command) error {
			return b.handleCountCommand(ctx, cmd, domain.CountLatest)
		},
		"setdailycount": func(ctx context.Context, cmd Command) error {
			return b.handleCountCommand(ctx, cmd, domain.CountDaily)
		},
		"schedule":    b.handleScheduleCommand,
		"subscribe":   b.handleSubscribeCommand,
		"unsubscribe": b.handleUnsubscribeCommand,
		"settings":    b.handleSettingsCommand,
		"help":        b.handleHelpCommand,
	}
}

func (b *Bot) handleStartCommand(ctx context.Context, cmd Command) error {
	topics, err := b.prefs.GetTopics(ctx, cmd.UserID)
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("get topics: %w", err))
	}

	return b.reply(ctx, cmd.ChatID, Message{Text: welcomeText, Keyboard: b.topicKeyboard(topics)})
}

func (b *Bot) handleTopicsCommand(ctx context.Context, cmd Command) error {
	topics, err := b.prefs.GetTopics(ctx, cmd.UserID)
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("get topics: %w", err))
	}

	return b.reply(ctx, cmd.ChatID, Message{Text: selectTopicsText, Keyboard: b.topicKeyboard(topics)})
}

func (b *Bot) handleLatestCommand(ctx context.Context, cmd Command) error {
	topics, err := b.prefs.GetTopics(ctx, cmd.UserID)
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("get topics: %w", err))
	}

	if len(topics) == 0 {
		return b.reply(ctx, cmd.ChatID, Message{Text: noTopicsText})
	}

	if err = b.reply(ctx, cmd.ChatID, Message{Text: fetchingText}); err != nil {
		return err
	}

	var sections []domain.Section

	err = b.withSpinner(ctx, cmd.ChatID, func() error {
		var buildErr error
		sections, buildErr = b.digests.Build(ctx, cmd.UserID, domain.CountLatest)

		return buildErr
	})
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("build digest: %w", err))
	}

	if len(sections) == 0 {
		return b.reply(ctx, cmd.ChatID, Message{Text: noArticlesText})
	}

	return b.SendDigest(ctx, cmd.ChatID, sections)
}

func (b *Bot) handleCountCommand(ctx context.Context, cmd Command, key domain.CountKey) error {
	n, err := parseCount(cmd.Args)
	switch {
	case errors.Is(err, ErrUsage):
		return b.reply(ctx, cmd.ChatID, Message{Text: fmt.Sprintf("Usage: /%s <number>", cmd.Name)})
	case err != nil:
		return b.reply(ctx, cmd.ChatID, Message{Text: countNumberText})
	}

	patch := domain.SettingsPatch{LatestCount: &n}
	text := latestCountSetText
	if key == domain.CountDaily {
		patch = domain.SettingsPatch{DailyCount: &n}
		text = dailyCountSetText
	}

	if _, err = b.prefs.UpdateSettings(ctx, cmd.UserID, patch); err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("update settings: %w", err))
	}

	return b.reply(ctx, cmd.ChatID, Message{Text: fmt.Sprintf(text, n)})
}

func (b *Bot) handleScheduleCommand(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return b.reply(ctx, cmd.ChatID, Message{Text: scheduleUsageText})
	}

	slot, ok := domain.ParseSlot(cmd.Args[0])
	if !ok {
		return b.reply(ctx, cmd.ChatID, Message{Text: scheduleUsageText})
	}

	settings, err := b.prefs.UpdateSettings(ctx, cmd.UserID, domain.SettingsPatch{Schedule: &slot})
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("update settings: %w", err))
	}

	var errs []error
	if settings.Subscribed {
		if err = b.scheduler.ScheduleDailyJob(cmd.UserID, slot); err != nil {
			errs = append(errs, fmt.Errorf("schedule daily job: %w", err))
		}
	}

	if err = b.reply(ctx, cmd.ChatID, Message{Text: fmt.Sprintf(scheduleSetText, slot)}); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bot) handleSubscribeCommand(ctx context.Context, cmd Command) error {
	settings, err := b.prefs.GetSettings(ctx, cmd.UserID)
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("get settings: %w", err))
	}

	// The job is registered before the flag is stored, so a failure leaves
	// the user unsubscribed. An already subscribed user gets the job
	// registered again so that a lost job comes back; scheduling replaces.
	if err = b.scheduler.ScheduleDailyJob(cmd.UserID, settings.Schedule); err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("schedule daily job: %w", err))
	}

	text := alreadySubscribed
	if !settings.Subscribed {
		subscribed := true

		if _, err = b.prefs.UpdateSettings(ctx, cmd.UserID, domain.SettingsPatch{Subscribed: &subscribed}); err != nil {
			b.scheduler.CancelDailyJob(cmd.UserID)

			return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("update settings: %w", err))
		}

		text = subscribedText
	}

	return b.reply(ctx, cmd.ChatID, Message{Text: text})
}

func (b *Bot) handleUnsubscribeCommand(ctx context.Context, cmd Command) error {
	settings, err := b.prefs.GetSettings(ctx, cmd.UserID)
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("get settings: %w", err))
	}

	if !settings.Subscribed {
		return b.reply(ctx, cmd.ChatID, Message{Text: notSubscribedText})
	}

	subscribed := false
	if _, err = b.prefs.UpdateSettings(ctx, cmd.UserID, domain.SettingsPatch{Subscribed: &subscribed}); err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("update settings: %w", err))
	}

	b.scheduler.CancelDailyJob(cmd.UserID)

	return b.reply(ctx, cmd.ChatID, Message{Text: unsubscribedText})
}

func (b *Bot) handleSettingsCommand(ctx context.Context, cmd Command) error {
	topics, err := b.prefs.GetTopics(ctx, cmd.UserID)
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("get topics: %w", err))
	}

	settings, err := b.prefs.GetSettings(ctx, cmd.UserID)
	if err != nil {
		return b.replyFailed(ctx, cmd.ChatID, fmt.Errorf("get settings: %w", err))
	}

	return b.reply(ctx, cmd.ChatID, Message{Text: b.settingsText(topics, settings)})
}

func (b *Bot) settingsText(topics []string, settings domain.Settings) string {
	topicList := "none"
	if len(topics) > 0 {
		topicList = strings.Join(topics, ", ")
	}

	subscribed := "no"
	if settings.Subscribed {
		subscribed = "yes"
	}

	var s strings.Builder
	s.WriteString("Your settings:\n\n")
	fmt.Fprintf(&s, "Topics: %s\n", topicList)
	fmt.Fprintf(&s, "Articles per topic for /latest: %d\n", settings.LatestCount)
	fmt.Fprintf(&s, "Articles per topic in daily digest: %d\n", settings.DailyCount)
	fmt.Fprintf(&s, "Daily digest time: %s (%02d:00 %s)\n", settings.Schedule, settings.Schedule.Hour(), b.location)
	fmt.Fprintf(&s, "Subscribed: %s", subscribed)

	return s.String()
}

func (b *Bot) handleHelpCommand(ctx context.Context, cmd Command) error {
	var s strings.Builder
	for i, c := range commandList {
		if i > 0 {
			s.WriteString("\n")
		}
		fmt.Fprintf(&s, "%s - %s", c.Usage, c.Description)
	}

	return b.reply(ctx, cmd.ChatID, Message{Text: s.String()})
}

// parseCount reads the first argument as an article count clamped to the
// allowed range.
func parseCount(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrUsage
	}

	// Out of range input still carries its sign in n.
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("parse count: %w", err)
	}

	return domain.ClampCount(n), nil
}
