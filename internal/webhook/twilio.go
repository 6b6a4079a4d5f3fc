package webhook

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/postelma/inbox-platform/internal/model"
)

// ParseTwilio extracts the normalized inbound tuple from a Twilio webhook
// form body. Twilio posts application/x-www-form-urlencoded, not JSON.
// A body without a MessageSid is a no-op. Phone numbers lose their
// "whatsapp:" scheme prefix before storage.
func ParseTwilio(form url.Values, userID string) (*model.InboundMessage, error) {
	sid := form.Get("MessageSid")
	if sid == "" {
		return nil, nil
	}

	from := stripWhatsAppPrefix(form.Get("From"))

	in := &model.InboundMessage{
		UserID:                 userID,
		Platform:               model.PlatformWhatsApp,
		PlatformConversationID: "whatsapp_" + from,
		PlatformMessageID:      sid,
		ParticipantID:          from,
		ParticipantName:        form.Get("ProfileName"),
		Type:                   model.TypeText,
		TextContent:            form.Get("Body"),
		SentAt:                 time.Now().UTC(),
	}

	if n, err := strconv.Atoi(form.Get("NumMedia")); err == nil && n > 0 {
		in.MediaURL = form.Get("MediaUrl0")
		contentType := form.Get("MediaContentType0")
		in.MediaType = contentType
		in.Type = mediaTypeFromContentType(contentType)
	}

	return in, nil
}

func stripWhatsAppPrefix(number string) string {
	return strings.TrimPrefix(number, "whatsapp:")
}

func mediaTypeFromContentType(contentType string) model.MessageType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return model.TypeImage
	case strings.HasPrefix(contentType, "video/"):
		return model.TypeVideo
	case strings.HasPrefix(contentType, "audio/"):
		return model.TypeAudio
	case contentType != "":
		return model.TypeDocument
	}
	return model.TypeText
}
