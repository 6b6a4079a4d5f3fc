package model

import (
	"time"
)

// MessageAIAnalysis records one invocation of the routing analyzer. Rows are
// historical and never updated, including when no team was suggested.
type MessageAIAnalysis struct {
	ID             string `gorm:"primaryKey" json:"id"`
	MessageID      string `gorm:"index;not null" json:"message_id"`
	ConversationID string `gorm:"index;not null" json:"conversation_id"`

	DetectedIntent   string   `json:"detected_intent,omitempty"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
	SuggestedTeamID  *string  `json:"suggested_team_id,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	Reasoning        string   `json:"reasoning,omitempty"`

	Model     string `json:"model,omitempty"`
	TokensIn  int    `json:"tokens_in,omitempty"`
	TokensOut int    `json:"tokens_out,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RoutingTask is the queue payload published after an inbound message commits.
// The consumer invokes the routing analyzer with it; its failure never affects
// the ingestion that produced it.
type RoutingTask struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// RoutingResult is the outcome of one routing analyzer invocation.
type RoutingResult struct {
	Success    bool     `json:"success"`
	Routed     bool     `json:"routed"`
	TeamID     string   `json:"team_id,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// AnalyzeRequest is the internal invocation payload for the routing analyzer.
type AnalyzeRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}
