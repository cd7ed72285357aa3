package adapters

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/whalewatch/whalewatch/pkg/logger"
)

// TelegramService delivers alert messages to a user's chat.
type TelegramService struct {
	bot    *bot.Bot
	logger *logger.Logger
}

func NewTelegramService(token string, logger *logger.Logger) (*TelegramService, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &TelegramService{bot: b, logger: logger}, nil
}

// SendAlertMessage delivers one transfer alert to a chat. Link previews are
// disabled so explorer URLs do not expand into cards.
func (t *TelegramService) SendAlertMessage(ctx context.Context, chatID int64, text string) error {
	disablePreview := true
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	}

	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		t.logger.Error("failed to send telegram alert",
			"chat_id", chatID,
			"error", err)
		return fmt.Errorf("telegram send failed: %w", err)
	}

	return nil
}
