package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postelma/inbox-platform/internal/model"
)

// CreateTeam creates a routing destination owned by userID.
func (s *Store) CreateTeam(ctx context.Context, userID string, req *model.CreateTeamRequest) (*model.Team, error) {
	now := time.Now().UTC()
	team := &model.Team{
		ID:          uuid.Must(uuid.NewV7()).String(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(team).Error; err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

// GetTeam returns a team owned by userID.
func (s *Store) GetTeam(ctx context.Context, userID, teamID string) (*model.Team, error) {
	var team model.Team
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", teamID, userID).
		First(&team).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &team, nil
}

// ListTeams returns all teams owned by userID.
func (s *Store) ListTeams(ctx context.Context, userID string) ([]model.Team, error) {
	var teams []model.Team
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// UpdateTeam updates a team's display fields.
func (s *Store) UpdateTeam(ctx context.Context, userID, teamID string, req *model.UpdateTeamRequest) (*model.Team, error) {
	team, err := s.GetTeam(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		team.Name = req.Name
	}
	if req.Description != "" {
		team.Description = req.Description
	}
	if req.Color != "" {
		team.Color = req.Color
	}
	team.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(team).Error; err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	return team, nil
}

// DeleteTeam removes a team and its assignments.
func (s *Store) DeleteTeam(ctx context.Context, userID, teamID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", teamID, userID).
		Delete(&model.Team{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete team: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Delete(&model.ConversationTeam{}).Error; err != nil {
		return fmt.Errorf("failed to delete team assignments: %w", err)
	}
	return nil
}

// AssignTeam links a conversation to a team, upserting on
// (conversation_id, team_id) so neither the auto nor the manual path can
// accumulate duplicate rows. The team's conversation counter moves only when
// a new link was created.
func (s *Store) AssignTeam(ctx context.Context, assignment *model.ConversationTeam) (*model.ConversationTeam, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.Must(uuid.NewV7()).String()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "conversation_id"},
			{Name: "team_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"auto_assigned":    assignment.AutoAssigned,
			"confidence_score": assignment.ConfidenceScore,
			"ai_reasoning":     assignment.AIReasoning,
			"assigned_by":      assignment.AssignedBy,
			"assigned_at":      assignment.AssignedAt,
		}),
	}).Create(assignment)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to assign team: %w", res.Error)
	}

	var out model.ConversationTeam
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND team_id = ?", assignment.ConversationID, assignment.TeamID).
		First(&out).Error
	if err != nil {
		return nil, notFound(err)
	}

	if out.ID == assignment.ID {
		// Fresh link, not a refresh of an earlier one.
		if err := s.db.WithContext(ctx).Model(&model.Team{}).
			Where("id = ?", assignment.TeamID).
			Update("conversation_count", gorm.Expr("conversation_count + 1")).Error; err != nil {
			return nil, fmt.Errorf("failed to bump team conversation count: %w", err)
		}
	}

	return &out, nil
}

// ListAssignments returns all team assignments of a conversation.
func (s *Store) ListAssignments(ctx context.Context, conversationID string) ([]model.ConversationTeam, error) {
	var out []model.ConversationTeam
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("assigned_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return out, nil
}
