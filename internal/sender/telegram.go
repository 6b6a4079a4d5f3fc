package sender

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/postelma/inbox-platform/internal/model"
)

// TelegramAdapter sends replies through the Telegram Bot API.
type TelegramAdapter struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramAdapter creates an adapter from a bot token. The Bot API client
// verifies the token with a getMe call.
func NewTelegramAdapter(token string) (*TelegramAdapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramAdapter{bot: bot}, nil
}

// NewTelegramAdapterWithBot wraps an existing bot client. Used by tests.
func NewTelegramAdapterWithBot(bot *tgbotapi.BotAPI) *TelegramAdapter {
	return &TelegramAdapter{bot: bot}
}

// Platform returns the platform this adapter serves.
func (a *TelegramAdapter) Platform() model.Platform {
	return model.PlatformTelegram
}

// Send delivers a text or photo reply to the conversation's chat.
func (a *TelegramAdapter) Send(ctx context.Context, req *Request) (*Result, error) {
	chatID, err := chatIDFromConversation(req.Conversation)
	if err != nil {
		return nil, err
	}

	var payload tgbotapi.Chattable
	msgType := model.TypeText
	if req.MediaURL != "" && strings.HasPrefix(req.MediaType, "image") {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(req.MediaURL))
		photo.Caption = req.Text
		payload = photo
		msgType = model.TypeImage
	} else {
		payload = tgbotapi.NewMessage(chatID, req.Text)
	}

	sent, err := a.bot.Send(payload)
	if err != nil {
		return nil, &SendError{
			Platform: model.PlatformTelegram,
			Message:  err.Error(),
		}
	}

	return &Result{
		ProviderMessageID: strconv.Itoa(sent.MessageID),
		Type:              msgType,
	}, nil
}

// chatIDFromConversation recovers the numeric chat id from the stored
// telegram_<id> conversation key.
func chatIDFromConversation(conv *model.Conversation) (int64, error) {
	raw := strings.TrimPrefix(conv.PlatformConversationID, "telegram_")
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram conversation id %q: %w", conv.PlatformConversationID, err)
	}
	return chatID, nil
}
