package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain/ports/adapter"
)

var _ adapter.AdminNotifier = (*BotNotifier)(nil)

// sender is the slice of tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotNotifier posts HTML alerts to the admin chat through the Bot API.
type BotNotifier struct {
	bot    sender
	chatID int64
	log    zerolog.Logger
}

func NewBotNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*BotNotifier, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	if cfg.AdminChatID == 0 {
		return nil, errors.New("telegram admin chat id is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	return newBotNotifier(bot, cfg.AdminChatID, logger), nil
}

func newBotNotifier(bot sender, chatID int64, logger *zerolog.Logger) *BotNotifier {
	return &BotNotifier{
		bot:    bot,
		chatID: chatID,
		log:    logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

func (n *BotNotifier) SendAdminAlert(ctx context.Context, text string) bool {
	if err := ctx.Err(); err != nil {
		n.log.Warn().Err(err).Msg("admin alert skipped: context done")
		return false
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error().Err(err).Int64("chat_id", n.chatID).Msg("admin alert failed")
		return false
	}
	return true
}
