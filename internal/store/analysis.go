package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postelma/inbox-platform/internal/model"
)

// CreateAnalysis persists one routing analyzer invocation. Called
// unconditionally, including when no team was suggested.
func (s *Store) CreateAnalysis(ctx context.Context, analysis *model.MessageAIAnalysis) error {
	if analysis.ID == "" {
		analysis.ID = uuid.Must(uuid.NewV7()).String()
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// ListAnalyses returns the routing history of a conversation, newest first.
func (s *Store) ListAnalyses(ctx context.Context, conversationID string) ([]model.MessageAIAnalysis, error) {
	var out []model.MessageAIAnalysis
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return out, nil
}
