// Package ratelimiter paces outbound chat messages per chat so that the bot
// stays within Telegram's flood limits.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsdigest/internal/bot"

	"golang.org/x/time/rate"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
)

// RateLimiter wraps a bot.Sender. Messages and edits wait for their chat's
// limiter; callback answers and chat actions go straight through.
type RateLimiter struct {
	next     bot.Sender
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	log      *slog.Logger
}

func New(next bot.Sender, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		next:     next,
		limiters: make(map[int64]*rate.Limiter),
		log:      log,
	}
}

func (rl *RateLimiter) SendMessage(ctx context.Context, chatID int64, message bot.Message) (int, error) {
	if err := rl.wait(ctx, chatID); err != nil {
		return 0, err
	}

	return rl.next.SendMessage(ctx, chatID, message)
}

func (rl *RateLimiter) EditMessage(ctx context.Context, chatID int64, messageID int, message bot.Message) error {
	if err := rl.wait(ctx, chatID); err != nil {
		return err
	}

	return rl.next.EditMessage(ctx, chatID, messageID, message)
}

func (rl *RateLimiter) EditKeyboard(ctx context.Context, chatID int64, messageID int, keyboard bot.Keyboard) error {
	if err := rl.wait(ctx, chatID); err != nil {
		return err
	}

	return rl.next.EditKeyboard(ctx, chatID, messageID, keyboard)
}

func (rl *RateLimiter) AnswerCallback(ctx context.Context, callbackID string) error {
	return rl.next.AnswerCallback(ctx, callbackID)
}

func (rl *RateLimiter) SendTyping(ctx context.Context, chatID int64) error {
	return rl.next.SendTyping(ctx, chatID)
}

func (rl *RateLimiter) wait(ctx context.Context, chatID int64) error {
	limiter := rl.limiter(chatID)

	if limiter.Tokens() < 1 {
		rl.log.DebugContext(ctx, "Rate limiting message",
			"chatID", chatID,
			"rate", getRate(chatID))
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	return nil
}

func (rl *RateLimiter) limiter(chatID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(getRate(chatID)), 1)
		rl.limiters[chatID] = limiter
	}

	return limiter
}

// getRate returns the minimal interval between messages. Group chats have
// negative IDs.
func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
