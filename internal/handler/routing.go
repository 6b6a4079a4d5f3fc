package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/middleware"
	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/internal/service"
	"github.com/postelma/inbox-platform/internal/store"
	"github.com/postelma/inbox-platform/pkg/logger"
)

// RoutingHandler exposes the routing analyzer for on-demand invocation.
type RoutingHandler struct {
	routing *service.RoutingService
	store   *store.Store
	logger  *logger.Logger
}

// NewRoutingHandler creates a new routing handler. routing may be nil when no
// LLM provider is configured.
func NewRoutingHandler(routing *service.RoutingService, st *store.Store, log *logger.Logger) *RoutingHandler {
	return &RoutingHandler{
		routing: routing,
		store:   st,
		logger:  log,
	}
}

// Analyze handles POST /api/v1/routing/analyze
func (h *RoutingHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if h.routing == nil {
		writeError(w, http.StatusServiceUnavailable, "routing is not configured")
		return
	}

	var req model.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Scope check: the conversation must belong to the caller.
	if _, err := h.store.GetConversation(ctx, userID, req.ConversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	if req.MessageID == "" {
		// Default to the newest customer message.
		latest, err := h.store.LatestInbound(ctx, req.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "conversation has no inbound messages")
			return
		}
		req.MessageID = latest.ID
	}

	result, err := h.routing.Analyze(ctx, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		h.logger.Error("routing analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "routing analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Analyses handles GET /api/v1/conversations/{conversationID}/analyses
func (h *RoutingHandler) Analyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "conversationID")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.store.GetConversation(ctx, userID, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	analyses, err := h.store.ListAnalyses(ctx, conversationID)
	if err != nil {
		h.logger.Error("failed to list analyses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": analyses})
}
