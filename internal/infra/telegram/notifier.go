package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-subscription-payments/internal/domain/ports/adapter"
)

var _ adapter.UserNotifier = (*BotNotifier)(nil)

// BotNotifier delivers payment outcomes to the user's Telegram chat. The
// mini-app passes the chat id as the userId, so no lookup is needed.
type BotNotifier struct {
	bot *tgbotapi.BotAPI
	log *zerolog.Logger
}

func NewBotNotifier(token string, logger *zerolog.Logger) (*BotNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier ready")
	return &BotNotifier{bot: bot, log: logger}, nil
}

func (n *BotNotifier) send(userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q is not a chat id: %w", userID, err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err = n.bot.Send(msg)
	return err
}

func (n *BotNotifier) NotifyActivated(ctx context.Context, userID, planName string, durationDays int) error {
	text := fmt.Sprintf(
		"✅ *Subscription activated!*\n\nPlan: *%s*\nValid for: *%d days*\n\nYou can now use all bot features.",
		planName, durationDays,
	)
	return n.send(userID, text)
}

func (n *BotNotifier) NotifyActivationFailed(ctx context.Context, userID string) error {
	text := "⚠️ Your payment was received but activating the subscription failed. " +
		"Tap \"I already paid\" in the app to retry, or contact support."
	return n.send(userID, text)
}

func (n *BotNotifier) PromptManualConfirm(ctx context.Context, userID, orderID string) error {
	text := "⏳ We could not determine the status of your payment. " +
		"If you are sure it went through, open the app and tap \"I already paid\" to activate your subscription."
	return n.send(userID, text)
}

var _ adapter.UserNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of messaging; used in dev mode or when no bot
// token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) NotifyActivated(ctx context.Context, userID, planName string, durationDays int) error {
	n.log.Info().Str("user_id", userID).Str("plan", planName).Int("days", durationDays).Msg("noop notifier: activated")
	return nil
}

func (n *NoopNotifier) NotifyActivationFailed(ctx context.Context, userID string) error {
	n.log.Info().Str("user_id", userID).Msg("noop notifier: activation failed")
	return nil
}

func (n *NoopNotifier) PromptManualConfirm(ctx context.Context, userID, orderID string) error {
	n.log.Info().Str("user_id", userID).Str("order_id", orderID).Msg("noop notifier: manual confirm prompt")
	return nil
}
