package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/postelma/inbox-platform/internal/model"
)

// UpsertConversation resolves the conversation for an inbound message, creating
// it on first contact. It is an upsert on the natural key, not read-then-write,
// so two near-simultaneous messages from the same chat cannot create two rows.
// On existing conversations participant display fields refresh and
// last_message_at only ever moves forward. Status is untouched here; the
// unread flip happens in InsertInbound, and only for messages actually new,
// so a redelivered webhook cannot un-archive a conversation.
func (s *Store) UpsertConversation(ctx context.Context, in *model.InboundMessage) (*model.Conversation, error) {
	now := time.Now().UTC()
	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = now
	}

	conv := &model.Conversation{
		ID:                     uuid.Must(uuid.NewV7()).String(),
		UserID:                 in.UserID,
		Platform:               in.Platform,
		PlatformConversationID: in.PlatformConversationID,
		ParticipantID:          in.ParticipantID,
		ParticipantUsername:    in.ParticipantUsername,
		ParticipantName:        in.ParticipantName,
		Status:                 model.StatusUnread,
		LastMessageAt:          sentAt,
		LastCustomerMessageAt:  &sentAt,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "platform"},
			{Name: "platform_conversation_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"participant_username": in.ParticipantUsername,
			"participant_name":     in.ParticipantName,
			"updated_at":           now,
		}),
	}).Create(conv).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert conversation: %w", err)
	}

	// The insert id is discarded when the conflict branch fired; reload the
	// canonical row by natural key.
	var out model.Conversation
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND platform_conversation_id = ?",
			in.UserID, in.Platform, in.PlatformConversationID).
		First(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	// Guarded update keeps last_message_at monotone under concurrent deliveries.
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND last_message_at < ?", out.ID, sentAt).
		Updates(map[string]interface{}{
			"last_message_at":          sentAt,
			"last_customer_message_at": sentAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to advance conversation timestamps: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		out.LastMessageAt = sentAt
		out.LastCustomerMessageAt = &sentAt
	}

	return &out, nil
}

// GetConversation returns a conversation owned by userID.
func (s *Store) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// GetConversationByID returns a conversation regardless of owner. Used by the
// routing consumer, which acts on behalf of the owner recorded in the task.
func (s *Store) GetConversationByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ?", conversationID).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// ListConversations returns a page of conversations for a user, most recent
// activity first, optionally filtered by status.
func (s *Store) ListConversations(ctx context.Context, userID string, status model.ConversationStatus, limit, offset int) (*model.ListConversationsResponse, error) {
	q := s.db.WithContext(ctx).Model(&model.Conversation{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	var convs []model.Conversation
	err := q.Order("last_message_at DESC").Limit(limit).Offset(offset).Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       int64(offset+len(convs)) < total,
	}, nil
}

// UpdateConversationStatus sets the status of a conversation (read, archived,
// snoozed). Archiving never deletes the row.
func (s *Store) UpdateConversationStatus(ctx context.Context, userID, conversationID string, status model.ConversationStatus) (*model.Conversation, error) {
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update conversation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetConversation(ctx, userID, conversationID)
}

// UpdateConversationTags replaces the tag set of a conversation.
func (s *Store) UpdateConversationTags(ctx context.Context, userID, conversationID string, tags []string) (*model.Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Tags = datatypes.JSONSlice[string](tags)
	conv.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to update conversation tags: %w", err)
	}
	return conv, nil
}
