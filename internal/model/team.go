package model

import (
	"time"
)

// Team is a user-defined routing destination for conversations, such as
// "Support" or "Sales".
type Team struct {
	ID          string `gorm:"primaryKey" json:"id"`
	UserID      string `gorm:"index;not null" json:"user_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`

	MemberCount       int `json:"member_count"`
	ConversationCount int `json:"conversation_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationTeam links a conversation to a team. A row is created either by
// the routing analyzer (auto) or by a manager (manual); both paths upsert on
// (conversation_id, team_id) so repeated assignment never accumulates
// duplicates. ConfidenceScore is set iff auto-assigned; AssignedBy iff manual.
type ConversationTeam struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ConversationID string `gorm:"uniqueIndex:idx_conversation_teams_pair;not null" json:"conversation_id"`
	TeamID         string `gorm:"uniqueIndex:idx_conversation_teams_pair;not null" json:"team_id"`

	AutoAssigned    bool     `json:"auto_assigned"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	AIReasoning     string   `json:"ai_reasoning,omitempty"`
	AssignedBy      *string  `json:"assigned_by,omitempty"`

	AssignedAt time.Time `json:"assigned_at"`
}

// CreateTeamRequest is the request to create a team.
type CreateTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`
}

// UpdateTeamRequest is the request to update a team.
type UpdateTeamRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// AssignTeamRequest is the request for a manual team assignment.
type AssignTeamRequest struct {
	TeamID string `json:"team_id"`
}
