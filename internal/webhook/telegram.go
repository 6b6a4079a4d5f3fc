// Package webhook normalizes provider payloads into the common inbound shape.
// Parsers are tolerant of malformed input: a shape the provider cannot have
// produced on purpose yields (nil, nil), never an error, so receivers can
// answer 200 without retry storms.
package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/postelma/inbox-platform/internal/model"
)

// ParseTelegram extracts the normalized inbound tuple from a Telegram Update.
// An update without a message field is a no-op, not an error. Media is not
// fetched inline: the Bot API requires an authenticated getFile round trip, so
// only a tg://file reference is recorded for a later resolve with the bot token.
func ParseTelegram(body []byte, userID string) (*model.InboundMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("failed to decode telegram update: %w", err)
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil, nil
	}

	in := &model.InboundMessage{
		UserID:                 userID,
		Platform:               model.PlatformTelegram,
		PlatformConversationID: fmt.Sprintf("telegram_%d", msg.Chat.ID),
		PlatformMessageID:      strconv.Itoa(msg.MessageID),
		Type:                   model.TypeText,
		TextContent:            msg.Text,
		SentAt:                 time.Unix(int64(msg.Date), 0).UTC(),
	}

	if from := msg.From; from != nil {
		in.ParticipantID = strconv.FormatInt(from.ID, 10)
		in.ParticipantUsername = from.UserName
		in.ParticipantName = strings.TrimSpace(from.FirstName + " " + from.LastName)
	}

	switch {
	case len(msg.Photo) > 0:
		in.Type = model.TypeImage
		in.MediaType = "image"
		in.MediaURL = fileRef(largestPhoto(msg.Photo).FileID)
		in.TextContent = msg.Caption
	case msg.Document != nil:
		in.Type = model.TypeDocument
		in.MediaType = "document"
		in.MediaURL = fileRef(msg.Document.FileID)
		in.TextContent = msg.Caption
	case msg.Video != nil:
		in.Type = model.TypeVideo
		in.MediaType = "video"
		in.MediaURL = fileRef(msg.Video.FileID)
		in.TextContent = msg.Caption
	case msg.Voice != nil:
		in.Type = model.TypeAudio
		in.MediaType = "audio"
		in.MediaURL = fileRef(msg.Voice.FileID)
	}

	return in, nil
}

// largestPhoto picks the biggest variant of a Telegram photo size list.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func fileRef(fileID string) string {
	return "tg://file/" + fileID
}
