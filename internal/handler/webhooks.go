package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/internal/service"
	"github.com/postelma/inbox-platform/internal/webhook"
	"github.com/postelma/inbox-platform/pkg/logger"
	"github.com/postelma/inbox-platform/pkg/metrics"
)

const maxWebhookBody = 1 << 20 // 1MB

// WebhookHandler receives platform webhook deliveries and hands normalized
// messages to ingestion. Receivers always acknowledge with 200 once the
// payload has been read; platforms retry on anything else and the dedup
// layer absorbs the retries we do want.
type WebhookHandler struct {
	ingest *service.IngestService
	logger *logger.Logger

	ownerUserID         string
	telegramSecretToken string
	metaVerifyToken     string
}

// NewWebhookHandler creates a new webhook handler. ownerUserID is the account
// all webhook channels are bound to.
func NewWebhookHandler(ingest *service.IngestService, log *logger.Logger, ownerUserID, telegramSecretToken, metaVerifyToken string) *WebhookHandler {
	return &WebhookHandler{
		ingest:              ingest,
		logger:              log,
		ownerUserID:         ownerUserID,
		telegramSecretToken: telegramSecretToken,
		metaVerifyToken:     metaVerifyToken,
	}
}

// Telegram handles POST /webhooks/telegram
func (h *WebhookHandler) Telegram(w http.ResponseWriter, r *http.Request) {
	if h.telegramSecretToken != "" &&
		r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != h.telegramSecretToken {
		writeError(w, http.StatusUnauthorized, "invalid secret token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	in, err := webhook.ParseTelegram(body, h.ownerUserID)
	if err != nil {
		h.logger.Warn("malformed telegram update", zap.Error(err))
		metrics.RecordWebhook(string(model.PlatformTelegram), "malformed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if in == nil {
		// Update types we don't ingest, e.g. edited messages or callbacks.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	h.ingestOne(r, in)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Twilio handles POST /webhooks/twilio
func (h *WebhookHandler) Twilio(w http.ResponseWriter, r *http.Request) {
	// A 4xx would make Twilio retry and flag the webhook as failing, so even
	// an unparseable body gets the empty TwiML ack.
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("malformed twilio webhook", zap.Error(err))
		metrics.RecordWebhook(string(model.PlatformWhatsApp), "malformed")
	} else {
		in, err := webhook.ParseTwilio(r.PostForm, h.ownerUserID)
		if err != nil {
			h.logger.Warn("malformed twilio webhook", zap.Error(err))
			metrics.RecordWebhook(string(model.PlatformWhatsApp), "malformed")
		} else if in != nil {
			h.ingestOne(r, in)
		}
	}

	// Twilio expects TwiML; an empty response means no auto-reply.
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

// Meta handles POST /webhooks/meta for both Instagram and Facebook Page
// subscriptions. One delivery can carry multiple entries and events.
func (h *WebhookHandler) Meta(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	msgs, err := webhook.ParseMeta(body, h.ownerUserID)
	if err != nil {
		h.logger.Warn("malformed meta webhook", zap.Error(err))
		metrics.RecordWebhook(string(model.PlatformInstagram), "malformed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	for _, in := range msgs {
		h.ingestOne(r, in)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MetaVerify handles GET /webhooks/meta, the subscription handshake.
func (h *WebhookHandler) MetaVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.metaVerifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	writeError(w, http.StatusForbidden, "verification failed")
}

// ingestOne stores a normalized message. Storage errors are logged but never
// surfaced to the platform: a 5xx would trigger redelivery of a payload that
// will fail the same way.
func (h *WebhookHandler) ingestOne(r *http.Request, in *model.InboundMessage) {
	if _, err := h.ingest.Ingest(r.Context(), in); err != nil {
		h.logger.Error("webhook ingestion failed",
			zap.String("platform", string(in.Platform)),
			zap.String("platform_message_id", in.PlatformMessageID),
			zap.Error(err))
	}
}
