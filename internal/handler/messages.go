package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/middleware"
	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/internal/sender"
	"github.com/postelma/inbox-platform/internal/service"
	"github.com/postelma/inbox-platform/internal/store"
	"github.com/postelma/inbox-platform/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	store    *store.Store
	outbound *service.OutboundService
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(st *store.Store, outbound *service.OutboundService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		store:    st,
		outbound: outbound,
		logger:   log,
	}
}

// List handles GET /api/v1/conversations/{conversationID}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "conversationID")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Ownership check before exposing messages.
	if _, err := h.store.GetConversation(ctx, userID, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	resp, err := h.store.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/conversations/{conversationID}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "conversationID")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TextContent == "" && req.MediaURL == "" {
		writeError(w, http.StatusBadRequest, "text_content or media_url required")
		return
	}
	if req.TextContent != "" {
		if err := middleware.ValidateMessageContent(req.TextContent); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	msg, err := h.outbound.SendReply(ctx, userID, conversationID, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		if errors.Is(err, sender.ErrNoAdapter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var sendErr *sender.SendError
		if errors.As(err, &sendErr) {
			h.logger.Warn("provider rejected outbound message",
				zap.String("platform", string(sendErr.Platform)),
				zap.Int("provider_status", sendErr.StatusCode))
			writeError(w, http.StatusBadGateway, sendErr.Error())
			return
		}
		h.logger.Error("failed to send message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
