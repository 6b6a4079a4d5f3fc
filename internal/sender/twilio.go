package sender

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/postelma/inbox-platform/internal/model"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioAdapter sends WhatsApp replies through the Twilio Messages API.
type TwilioAdapter struct {
	http       *resty.Client
	accountSID string
	fromNumber string
}

// NewTwilioAdapter creates an adapter for the given account.
func NewTwilioAdapter(accountSID, authToken, fromNumber string) *TwilioAdapter {
	client := resty.New().
		SetBaseURL(twilioBaseURL).
		SetBasicAuth(accountSID, authToken)
	return &TwilioAdapter{
		http:       client,
		accountSID: accountSID,
		fromNumber: fromNumber,
	}
}

// SetBaseURL points the adapter at a different API host. Used by tests.
func (a *TwilioAdapter) SetBaseURL(url string) {
	a.http.SetBaseURL(url)
}

// Platform returns the platform this adapter serves.
func (a *TwilioAdapter) Platform() model.Platform {
	return model.PlatformWhatsApp
}

type twilioMessageResponse struct {
	SID string `json:"sid"`
}

// Send creates a Twilio message to the conversation's participant number.
// The "whatsapp:" scheme stripped at ingestion is restored on the way out.
func (a *TwilioAdapter) Send(ctx context.Context, req *Request) (*Result, error) {
	form := map[string]string{
		"To":   "whatsapp:" + req.Conversation.ParticipantID,
		"From": "whatsapp:" + a.fromNumber,
		"Body": req.Text,
	}
	msgType := model.TypeText
	if req.MediaURL != "" {
		form["MediaUrl"] = req.MediaURL
		msgType = mediaMessageType(req.MediaType)
	}

	var out twilioMessageResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", a.accountSID))
	if err != nil {
		return nil, &SendError{Platform: model.PlatformWhatsApp, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, &SendError{
			Platform:   model.PlatformWhatsApp,
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
	}

	return &Result{ProviderMessageID: out.SID, Type: msgType}, nil
}

func mediaMessageType(mediaType string) model.MessageType {
	switch {
	case mediaType == "":
		return model.TypeText
	case len(mediaType) >= 5 && mediaType[:5] == "image":
		return model.TypeImage
	case len(mediaType) >= 5 && mediaType[:5] == "video":
		return model.TypeVideo
	case len(mediaType) >= 5 && mediaType[:5] == "audio":
		return model.TypeAudio
	}
	return model.TypeDocument
}
