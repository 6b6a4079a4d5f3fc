package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/postelma/inbox-platform/internal/model"
)

// metaPayload is the webhook envelope Meta posts for both Instagram and
// Facebook. Each entry carries either messaging events (direct messages) or
// changes (comments and mentions); the two sub-shapes are dispatched
// separately.
type metaPayload struct {
	Object string      `json:"object"`
	Entry  []metaEntry `json:"entry"`
}

type metaEntry struct {
	ID        string          `json:"id"`
	Time      int64           `json:"time"`
	Messaging []metaMessaging `json:"messaging,omitempty"`
	Changes   []metaChange    `json:"changes,omitempty"`
}

type metaMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		MID         string `json:"mid"`
		Text        string `json:"text"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments,omitempty"`
		ReplyTo *struct {
			Story *struct {
				URL string `json:"url"`
				ID  string `json:"id"`
			} `json:"story,omitempty"`
		} `json:"reply_to,omitempty"`
	} `json:"message,omitempty"`
}

type metaChange struct {
	Field string `json:"field"`
	Value struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CommentID string `json:"comment_id"`
		MediaID   string `json:"media_id"`
		From      struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"from"`
		CreatedTime int64 `json:"created_time"`
	} `json:"value"`
}

// ParseMeta extracts every inbound tuple carried by one Meta webhook delivery.
// One delivery batches many entries and each entry many events, so the result
// is a slice. Entries that carry neither messaging nor recognizable changes
// contribute nothing.
func ParseMeta(body []byte, userID string) ([]*model.InboundMessage, error) {
	var payload metaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode meta payload: %w", err)
	}

	platform := model.PlatformFacebook
	if payload.Object == "instagram" {
		platform = model.PlatformInstagram
	}

	var out []*model.InboundMessage
	for _, entry := range payload.Entry {
		for _, ev := range entry.Messaging {
			if in := normalizeMetaMessaging(ev, platform, userID); in != nil {
				out = append(out, in)
			}
		}
		for _, ch := range entry.Changes {
			if in := normalizeMetaChange(ch, platform, userID); in != nil {
				out = append(out, in)
			}
		}
	}

	return out, nil
}

func normalizeMetaMessaging(ev metaMessaging, platform model.Platform, userID string) *model.InboundMessage {
	if ev.Message == nil || ev.Message.MID == "" {
		return nil
	}

	in := &model.InboundMessage{
		UserID:                 userID,
		Platform:               platform,
		PlatformConversationID: fmt.Sprintf("%s_%s", platform, ev.Sender.ID),
		PlatformMessageID:      ev.Message.MID,
		ParticipantID:          ev.Sender.ID,
		Type:                   model.TypeText,
		TextContent:            ev.Message.Text,
		SentAt:                 time.UnixMilli(ev.Timestamp).UTC(),
	}

	if ev.Message.ReplyTo != nil && ev.Message.ReplyTo.Story != nil {
		in.Type = model.TypeStoryReply
		in.MediaURL = ev.Message.ReplyTo.Story.URL
		return in
	}

	for _, att := range ev.Message.Attachments {
		switch att.Type {
		case "story_mention":
			in.Type = model.TypeStoryMention
		case "image":
			in.Type = model.TypeImage
		case "video":
			in.Type = model.TypeVideo
		case "audio":
			in.Type = model.TypeAudio
		case "file":
			in.Type = model.TypeDocument
		default:
			continue
		}
		in.MediaURL = att.Payload.URL
		in.MediaType = att.Type
		break
	}

	return in
}

func normalizeMetaChange(ch metaChange, platform model.Platform, userID string) *model.InboundMessage {
	if ch.Field != "comments" && ch.Field != "mentions" {
		return nil
	}
	if ch.Value.CommentID == "" && ch.Value.ID == "" {
		return nil
	}

	commentID := ch.Value.CommentID
	if commentID == "" {
		commentID = ch.Value.ID
	}

	name := ch.Value.From.Name
	if name == "" {
		name = ch.Value.From.Username
	}

	return &model.InboundMessage{
		UserID:                 userID,
		Platform:               platform,
		PlatformConversationID: fmt.Sprintf("%s_comment_%s", platform, ch.Value.MediaID),
		PlatformMessageID:      commentID,
		ParticipantID:          ch.Value.From.ID,
		ParticipantUsername:    ch.Value.From.Username,
		ParticipantName:        name,
		Type:                   model.TypeText,
		TextContent:            ch.Value.Text,
		SentAt:                 time.Unix(ch.Value.CreatedTime, 0).UTC(),
	}
}
