// Package notify delivers streak nudges and daily digests through the
// Telegram Bot API.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DigestLine is one practice surface's row in the daily digest.
type DigestLine struct {
	Kind    string
	Entries int
	Current int
	Longest int
}

// Digest summarizes one day of activity.
type Digest struct {
	Date         string
	Lines        []DigestLine
	ChecksPassed int
	ChecksFailed int
	EarnedLight  float64
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates
// and handles bot commands. It returns immediately; the goroutine stops
// when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendStreakRisk nudges about a streak that lapses at midnight.
func (c *Client) SendStreakRisk(kind string, current int) error {
	return c.sendMarkdownV2(formatStreakRisk(kind, current))
}

// SendDailyDigest sends the end-of-day summary.
func (c *Client) SendDailyDigest(d Digest) error {
	return c.sendMarkdownV2(formatDigest(d))
}

// SendError reports a reminder-loop error.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(loopErr error) error {
	text := fmt.Sprintf("⚠️ *Reminder loop error*\n`%s`", escapeMarkdownV2(loopErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery reports recovery after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Reminder loop recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// formatStreakRisk formats the at-risk nudge.
func formatStreakRisk(kind string, current int) string {
	day := "days"
	if current == 1 {
		day = "day"
	}
	return fmt.Sprintf("🔥 *Streak at risk*\nYour _%s_ streak of %d %s ends at midnight without an entry today\\.",
		escapeMarkdownV2(kind), current, day)
}

// formatDigest formats the daily digest into MarkdownV2.
func formatDigest(d Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌙 *Daily digest for %s*\n\n", escapeMarkdownV2(d.Date))

	if len(d.Lines) == 0 {
		b.WriteString("No entries recorded today\\.\n")
	}
	for _, line := range d.Lines {
		flame := ""
		if line.Current > 0 {
			flame = fmt.Sprintf(" 🔥%d", line.Current)
		}
		fmt.Fprintf(&b, "• _%s_: %d today%s \\(best %d\\)\n",
			escapeMarkdownV2(line.Kind), line.Entries, flame, line.Longest)
	}

	fmt.Fprintf(&b, "\n🛡 Aura checks: %d passed, %d failed\n", d.ChecksPassed, d.ChecksFailed)
	fmt.Fprintf(&b, "✨ Earned light: %s", escapeMarkdownV2(fmt.Sprintf("%.2f", d.EarnedLight)))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
