package sender

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/postelma/inbox-platform/internal/model"
)

const graphMailBaseURL = "https://graph.microsoft.com"

// OutlookAdapter sends email replies through the Microsoft Graph sendMail
// endpoint.
type OutlookAdapter struct {
	http *resty.Client
}

// NewOutlookAdapter creates an adapter using the account's OAuth access token.
func NewOutlookAdapter(accessToken string) *OutlookAdapter {
	client := resty.New().
		SetBaseURL(graphMailBaseURL).
		SetAuthToken(accessToken)
	return &OutlookAdapter{http: client}
}

// SetBaseURL points the adapter at a different API host. Used by tests.
func (a *OutlookAdapter) SetBaseURL(url string) {
	a.http.SetBaseURL(url)
}

// Platform returns the platform this adapter serves.
func (a *OutlookAdapter) Platform() model.Platform {
	return model.PlatformOutlook
}

type graphMailMessage struct {
	Subject      string           `json:"subject"`
	Body         graphMailBody    `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
}

type graphMailBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

// Send submits the reply via sendMail. Graph returns 202 Accepted with an
// empty body, so the stored provider id is generated locally.
func (a *OutlookAdapter) Send(ctx context.Context, req *Request) (*Result, error) {
	to := req.To
	if to == "" {
		to = req.Conversation.ParticipantID
	}
	subject := req.Subject
	if subject == "" {
		subject = "Re: your message"
	}

	payload := map[string]any{
		"message": graphMailMessage{
			Subject: subject,
			Body: graphMailBody{
				ContentType: "Text",
				Content:     req.Text,
			},
			ToRecipients: []graphRecipient{
				{EmailAddress: graphEmailAddress{Address: to}},
			},
		},
		"saveToSentItems": true,
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/v1.0/me/sendMail")
	if err != nil {
		return nil, &SendError{Platform: model.PlatformOutlook, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, &SendError{
			Platform:   model.PlatformOutlook,
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
	}

	return &Result{
		ProviderMessageID: fmt.Sprintf("outlook_%s", uuid.Must(uuid.NewV7()).String()),
		Type:              model.TypeText,
	}, nil
}
