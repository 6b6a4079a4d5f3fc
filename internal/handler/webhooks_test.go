package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/postelma/inbox-platform/internal/service"
	"github.com/postelma/inbox-platform/internal/store"
	"github.com/postelma/inbox-platform/internal/webhook"
	"github.com/postelma/inbox-platform/pkg/logger"
)

func newWebhookHandler(t *testing.T) (*WebhookHandler, *store.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	st := store.New(db, logger.NewNop())
	require.NoError(t, st.Migrate())

	ingest := service.NewIngestService(st, webhook.NewDeduper(nil, time.Hour), nil, logger.NewNop())
	h := NewWebhookHandler(ingest, logger.NewNop(), "user-1", "tg-secret", "verify-me")
	return h, st
}

func TestTelegramWebhookStoresMessage(t *testing.T) {
	h, st := newWebhookHandler(t)

	body := `{"update_id": 1, "message": {"message_id": 42, "date": 1714000000,
		"chat": {"id": 555, "type": "private"},
		"from": {"id": 555, "first_name": "Alice", "username": "alice"},
		"text": "hello"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "tg-secret")
	rec := httptest.NewRecorder()
	h.Telegram(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	resp, err := st.ListConversations(req.Context(), "user-1", "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.Total)
	assert.Equal(t, "telegram_555", resp.Conversations[0].PlatformConversationID)
}

func TestTelegramWebhookBadSecret(t *testing.T) {
	h, st := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(`{}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()
	h.Telegram(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	resp, err := st.ListConversations(req.Context(), "user-1", "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
}

func TestTelegramWebhookMalformedStillAcks(t *testing.T) {
	h, st := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(`{not json`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "tg-secret")
	rec := httptest.NewRecorder()
	h.Telegram(rec, req)

	// 200 so Telegram stops retrying a payload that can never parse.
	assert.Equal(t, http.StatusOK, rec.Code)

	resp, err := st.ListConversations(req.Context(), "user-1", "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
}

func TestTwilioWebhookRepliesEmptyTwiML(t *testing.T) {
	h, st := newWebhookHandler(t)

	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", "whatsapp:+15551234567")
	form.Set("Body", "hi")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Twilio(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Response></Response>")

	resp, err := st.ListConversations(req.Context(), "user-1", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
}

func TestTwilioWebhookUnparseableFormStillAcks(t *testing.T) {
	h, st := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader("Body=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Twilio(rec, req)

	// A 4xx would put the webhook into Twilio's failure state; ack with the
	// same empty TwiML as a good delivery.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Response></Response>")

	resp, err := st.ListConversations(req.Context(), "user-1", "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
}

func TestMetaWebhookBatch(t *testing.T) {
	h, st := newWebhookHandler(t)

	body := `{"object": "instagram", "entry": [
		{"messaging": [{"sender": {"id": "ig-1"}, "timestamp": 1714000000000, "message": {"mid": "m1", "text": "a"}}]},
		{"messaging": [{"sender": {"id": "ig-2"}, "timestamp": 1714000000000, "message": {"mid": "m2", "text": "b"}}]}
	]}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/meta", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Meta(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	resp, err := st.ListConversations(req.Context(), "user-1", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
}

func TestMetaVerifyHandshake(t *testing.T) {
	h, _ := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/meta?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.MetaVerify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestMetaVerifyWrongToken(t *testing.T) {
	h, _ := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/meta?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.MetaVerify(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTelegramWebhookDuplicateDelivery(t *testing.T) {
	h, st := newWebhookHandler(t)

	body := `{"update_id": 1, "message": {"message_id": 42, "date": 1714000000,
		"chat": {"id": 555, "type": "private"}, "text": "hello"}}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "tg-secret")
		rec := httptest.NewRecorder()
		h.Telegram(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	conv, err := st.ListConversations(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "user-1", "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), conv.Total)

	msgs, err := st.ListMessages(httptest.NewRequest(http.MethodGet, "/", nil).Context(), conv.Conversations[0].ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msgs.Total)
	assert.Equal(t, 1, conv.Conversations[0].MessageCount)
}
