package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"alertcore/internal/config"
	"alertcore/internal/domain"

	tgbot "github.com/go-telegram/bot"
)

// TelegramChannel sends alert notifications to the Telegram Bot API.
// Params: bot client and destination chat id.
// Returns: telegram notification channel.
type TelegramChannel struct {
	client *tgbot.Bot
	chatID any
}

// NewTelegramChannel creates a Telegram channel from config.
// Params: telegram notify config with token and chat id.
// Returns: initialized channel or bot init error.
func NewTelegramChannel(cfg config.TelegramNotifyConfig) (*TelegramChannel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram chat_id is required")
	}
	client, err := tgbot.New(cfg.Token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramChannel{
		client: client,
		chatID: normalizeChatID(cfg.ChatID),
	}, nil
}

// Name returns the channel name.
// Params: none.
// Returns: static channel key.
func (c *TelegramChannel) Name() string {
	return "telegram"
}

// Send posts one alert message to the configured chat.
// Params: context and alert payload.
// Returns: transport or API error.
func (c *TelegramChannel) Send(ctx context.Context, alert domain.Alert) error {
	sent, err := c.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: c.chatID,
		Text:   formatAlertText(alert),
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// formatAlertText renders one compact alert line for chat delivery.
// Params: alert payload.
// Returns: human-readable message text.
func formatAlertText(alert domain.Alert) string {
	var builder strings.Builder
	builder.WriteString("[")
	builder.WriteString(strings.ToUpper(string(alert.Severity)))
	builder.WriteString("] ")
	builder.WriteString(alert.Title)
	if alert.Message != "" {
		builder.WriteString("\n")
		builder.WriteString(alert.Message)
	}
	builder.WriteString("\nrule: ")
	builder.WriteString(alert.RuleType)
	builder.WriteString(" id: ")
	builder.WriteString(alert.ID)
	return builder.String()
}

// normalizeChatID converts numeric chat ids to int64 and keeps others as string.
// Params: configured chat id value.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
