package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postelma/inbox-platform/internal/model"
)

func TestMetaSendDirectMessage(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"recipient_id": "ig-user-9", "message_id": "mid.out1"}`))
	}))
	defer srv.Close()

	a := NewMetaAdapter("tok", model.PlatformInstagram)
	a.SetBaseURL(srv.URL)

	result, err := a.Send(context.Background(), &Request{
		Conversation: &model.Conversation{
			PlatformConversationID: "instagram_ig-user-9",
			ParticipantID:          "ig-user-9",
		},
		Text: "yes, still available",
	})
	require.NoError(t, err)

	assert.Equal(t, "mid.out1", result.ProviderMessageID)
	assert.Equal(t, model.TypeText, result.Type)

	recipient := gotBody["recipient"].(map[string]interface{})
	assert.Equal(t, "ig-user-9", recipient["id"])
	message := gotBody["message"].(map[string]interface{})
	assert.Equal(t, "yes, still available", message["text"])
}

func TestMetaCommentReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comment-77/replies", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "thanks!", r.PostForm.Get("message"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "reply-1"}`))
	}))
	defer srv.Close()

	a := NewMetaAdapter("tok", model.PlatformInstagram)
	a.SetBaseURL(srv.URL)

	result, err := a.Send(context.Background(), &Request{
		Conversation: &model.Conversation{
			PlatformConversationID: "instagram_comment_media-12",
		},
		Text: "thanks!",
		To:   "comment-77",
	})
	require.NoError(t, err)
	assert.Equal(t, "reply-1", result.ProviderMessageID)
}

func TestMetaCommentReplyMissingCommentID(t *testing.T) {
	a := NewMetaAdapter("tok", model.PlatformInstagram)

	_, err := a.Send(context.Background(), &Request{
		Conversation: &model.Conversation{
			PlatformConversationID: "instagram_comment_media-12",
		},
		Text: "thanks!",
	})

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Contains(t, sendErr.Message, "comment id")
}

func TestMetaSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "outside the 24h window", "code": 10}}`))
	}))
	defer srv.Close()

	a := NewMetaAdapter("tok", model.PlatformFacebook)
	a.SetBaseURL(srv.URL)

	_, err := a.Send(context.Background(), &Request{
		Conversation: &model.Conversation{
			PlatformConversationID: "facebook_fb-1",
			ParticipantID:          "fb-1",
		},
		Text: "hi",
	})

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, model.PlatformFacebook, sendErr.Platform)
	assert.Equal(t, http.StatusForbidden, sendErr.StatusCode)
}
