package sender

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/postelma/inbox-platform/internal/model"
)

const graphBaseURL = "https://graph.facebook.com/v19.0"

// MetaAdapter sends Instagram and Facebook replies through the Graph API.
// Direct messages go through /me/messages; comment threads through
// /{comment_id}/replies.
type MetaAdapter struct {
	http        *resty.Client
	accessToken string
	platform    model.Platform
}

// NewMetaAdapter creates an adapter for one Meta platform.
func NewMetaAdapter(accessToken string, platform model.Platform) *MetaAdapter {
	return &MetaAdapter{
		http:        resty.New().SetBaseURL(graphBaseURL),
		accessToken: accessToken,
		platform:    platform,
	}
}

// SetBaseURL points the adapter at a different API host. Used by tests.
func (a *MetaAdapter) SetBaseURL(url string) {
	a.http.SetBaseURL(url)
}

// Platform returns the platform this adapter serves.
func (a *MetaAdapter) Platform() model.Platform {
	return a.platform
}

type graphSendResponse struct {
	MessageID string `json:"message_id"`
	ID        string `json:"id"`
}

// Send delivers the reply. Conversations keyed <platform>_comment_<media> are
// comment threads and get a comment reply; everything else is a DM.
func (a *MetaAdapter) Send(ctx context.Context, req *Request) (*Result, error) {
	if strings.Contains(req.Conversation.PlatformConversationID, "_comment_") {
		return a.replyToComment(ctx, req)
	}
	return a.sendDirectMessage(ctx, req)
}

func (a *MetaAdapter) sendDirectMessage(ctx context.Context, req *Request) (*Result, error) {
	message := map[string]interface{}{"text": req.Text}
	if req.MediaURL != "" {
		message = map[string]interface{}{
			"attachment": map[string]interface{}{
				"type":    attachmentType(req.MediaType),
				"payload": map[string]interface{}{"url": req.MediaURL},
			},
		}
	}

	var out graphSendResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", a.accessToken).
		SetBody(map[string]interface{}{
			"recipient": map[string]string{"id": req.Conversation.ParticipantID},
			"message":   message,
		}).
		SetResult(&out).
		Post("/me/messages")
	if err != nil {
		return nil, &SendError{Platform: a.platform, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, &SendError{
			Platform:   a.platform,
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
	}

	return &Result{ProviderMessageID: out.MessageID, Type: replyType(req)}, nil
}

func (a *MetaAdapter) replyToComment(ctx context.Context, req *Request) (*Result, error) {
	// The last inbound comment id is the participant-side thread anchor.
	commentID := req.To
	if commentID == "" {
		return nil, &SendError{
			Platform: a.platform,
			Message:  "comment reply requires the comment id in the to field",
		}
	}

	var out graphSendResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", a.accessToken).
		SetFormData(map[string]string{"message": req.Text}).
		SetResult(&out).
		Post("/" + commentID + "/replies")
	if err != nil {
		return nil, &SendError{Platform: a.platform, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, &SendError{
			Platform:   a.platform,
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
	}

	return &Result{ProviderMessageID: out.ID, Type: model.TypeText}, nil
}

func attachmentType(mediaType string) string {
	switch {
	case strings.HasPrefix(mediaType, "video"):
		return "video"
	case strings.HasPrefix(mediaType, "audio"):
		return "audio"
	}
	return "image"
}

func replyType(req *Request) model.MessageType {
	if req.MediaURL == "" {
		return model.TypeText
	}
	return mediaMessageType(req.MediaType)
}
