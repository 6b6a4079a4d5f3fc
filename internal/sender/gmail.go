package sender

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/postelma/inbox-platform/internal/model"
)

const gmailBaseURL = "https://gmail.googleapis.com"

// GmailAdapter composes and sends email replies through the Gmail REST API.
type GmailAdapter struct {
	http *resty.Client
}

// NewGmailAdapter creates an adapter using the account's OAuth access token.
func NewGmailAdapter(accessToken string) *GmailAdapter {
	client := resty.New().
		SetBaseURL(gmailBaseURL).
		SetAuthToken(accessToken)
	return &GmailAdapter{http: client}
}

// SetBaseURL points the adapter at a different API host. Used by tests.
func (a *GmailAdapter) SetBaseURL(url string) {
	a.http.SetBaseURL(url)
}

// Platform returns the platform this adapter serves.
func (a *GmailAdapter) Platform() model.Platform {
	return model.PlatformGmail
}

type gmailSendResponse struct {
	ID string `json:"id"`
}

// sanitizeHeader strips CR and LF so request-supplied values cannot smuggle
// extra headers (Bcc, additional recipients) into the composed message.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// Send composes an RFC 822 message and submits it base64url-encoded, the
// shape users.messages.send expects.
func (a *GmailAdapter) Send(ctx context.Context, req *Request) (*Result, error) {
	to := sanitizeHeader(req.To)
	if to == "" {
		to = sanitizeHeader(req.Conversation.ParticipantID)
	}
	subject := sanitizeHeader(req.Subject)
	if subject == "" {
		subject = "Re: your message"
	}

	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		to, subject, req.Text)

	var out gmailSendResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
		}).
		SetResult(&out).
		Post("/gmail/v1/users/me/messages/send")
	if err != nil {
		return nil, &SendError{Platform: model.PlatformGmail, Message: err.Error()}
	}
	if resp.IsError() {
		return nil, &SendError{
			Platform:   model.PlatformGmail,
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
	}

	return &Result{ProviderMessageID: out.ID, Type: model.TypeText}, nil
}
