package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/middleware"
	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/internal/store"
	"github.com/postelma/inbox-platform/pkg/logger"
)

// TeamHandler handles team endpoints and manual conversation assignment.
type TeamHandler struct {
	store  *store.Store
	logger *logger.Logger
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(st *store.Store, log *logger.Logger) *TeamHandler {
	return &TeamHandler{
		store:  st,
		logger: log,
	}
}

// Create handles POST /api/v1/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTeamName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	team, err := h.store.CreateTeam(ctx, userID, &req)
	if err != nil {
		h.logger.Error("failed to create team", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create team")
		return
	}

	writeJSON(w, http.StatusCreated, team)
}

// List handles GET /api/v1/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	teams, err := h.store.ListTeams(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list teams", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// Get handles GET /api/v1/teams/{teamID}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	teamID := chi.URLParam(r, "teamID")

	if err := middleware.ValidateTeamID(teamID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	team, err := h.store.GetTeam(ctx, userID, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
		h.logger.Error("failed to get team", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get team")
		return
	}

	writeJSON(w, http.StatusOK, team)
}

// Update handles PATCH /api/v1/teams/{teamID}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	teamID := chi.URLParam(r, "teamID")

	if err := middleware.ValidateTeamID(teamID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != "" {
		if err := middleware.ValidateTeamName(req.Name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	team, err := h.store.UpdateTeam(ctx, userID, teamID, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
		h.logger.Error("failed to update team", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update team")
		return
	}

	writeJSON(w, http.StatusOK, team)
}

// Delete handles DELETE /api/v1/teams/{teamID}
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	teamID := chi.URLParam(r, "teamID")

	if err := middleware.ValidateTeamID(teamID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.DeleteTeam(ctx, userID, teamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
		h.logger.Error("failed to delete team", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete team")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Assign handles POST /api/v1/conversations/{conversationID}/teams, the
// manual assignment path. Assigning an already-assigned pair updates the
// existing link rather than creating a second one.
func (h *TeamHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "conversationID")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.AssignTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTeamID(req.TeamID); err != nil {
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
	if _, err := h.store.GetTeam(ctx, userID, req.TeamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
		h.logger.Error("failed to load team", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}

	assignment := &model.ConversationTeam{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		TeamID:         req.TeamID,
		AutoAssigned:   false,
		AssignedBy:     &userID,
		AssignedAt:     time.Now().UTC(),
	}
	out, err := h.store.AssignTeam(ctx, assignment)
	if err != nil {
		h.logger.Error("failed to assign team", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to assign team")
		return
	}

	writeJSON(w, http.StatusCreated, out)
}

// ListAssignments handles GET /api/v1/conversations/{conversationID}/teams
func (h *TeamHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
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

	assignments, err := h.store.ListAssignments(ctx, conversationID)
	if err != nil {
		h.logger.Error("failed to list assignments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list assignments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}
