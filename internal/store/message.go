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

// InsertInbound appends an inbound message to a conversation. Webhook delivery
// is at-least-once, so the insert is a do-nothing upsert on
// (conversation_id, platform_message_id); created reports whether this call
// actually stored a new row. Counters only move when it did.
func (s *Store) InsertInbound(ctx context.Context, conversationID string, in *model.InboundMessage) (*model.Message, bool, error) {
	now := time.Now().UTC()
	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = now
	}

	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		ConversationID:    conversationID,
		PlatformMessageID: in.PlatformMessageID,
		Direction:         model.DirectionInbound,
		Type:              in.Type,
		TextContent:       in.TextContent,
		MediaURL:          in.MediaURL,
		MediaType:         in.MediaType,
		SenderID:          in.ParticipantID,
		SenderUsername:    in.ParticipantUsername,
		SenderName:        in.ParticipantName,
		SentAt:            sentAt,
		CreatedAt:         now,
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "conversation_id"},
			{Name: "platform_message_id"},
		},
		DoNothing: true,
	}).Create(msg)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to insert inbound message: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// Duplicate delivery; return the row stored by the first one.
		var existing model.Message
		err := s.db.WithContext(ctx).
			Where("conversation_id = ? AND platform_message_id = ?", conversationID, in.PlatformMessageID).
			First(&existing).Error
		if err != nil {
			return nil, false, notFound(err)
		}
		return &existing, false, nil
	}

	if err := s.markNewInbound(ctx, conversationID, now); err != nil {
		return nil, false, err
	}

	return msg, true, nil
}

// InsertOutbound records a successfully delivered reply. Called only after the
// provider accepted the send; a failed send leaves no Message row. The parent
// conversation moves to replied and its reply timestamp advances.
func (s *Store) InsertOutbound(ctx context.Context, conv *model.Conversation, msg *model.Message) (*model.Message, error) {
	now := time.Now().UTC()
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	msg.ConversationID = conv.ID
	msg.Direction = model.DirectionOutbound
	msg.IsRead = true
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	msg.CreatedAt = now

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to insert outbound message: %w", err)
	}

	err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"status":              model.StatusReplied,
			"last_brand_reply_at": msg.SentAt,
			"message_count":       gorm.Expr("message_count + 1"),
			"updated_at":          now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation after send: %w", err)
	}

	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND last_message_at < ?", conv.ID, msg.SentAt).
		Update("last_message_at", msg.SentAt)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to advance last_message_at: %w", res.Error)
	}

	return msg, nil
}

// GetMessage returns one message by id.
func (s *Store) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// ListMessages returns a page of a conversation's messages in send order.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit, offset int) (*model.ListMessagesResponse, error) {
	q := s.db.WithContext(ctx).Model(&model.Message{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	var msgs []model.Message
	err := q.Order("sent_at ASC").Limit(limit).Offset(offset).Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return &model.ListMessagesResponse{
		Messages: msgs,
		Total:    total,
		HasMore:  int64(offset+len(msgs)) < total,
	}, nil
}

// LatestInbound returns the newest customer message in a conversation.
func (s *Store) LatestInbound(ctx context.Context, conversationID string) (*model.Message, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND direction = ?", conversationID, model.DirectionInbound).
		Order("sent_at DESC").First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// CountMessages returns the number of stored messages for a conversation.
func (s *Store) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).Count(&n).Error
	return n, err
}

// markNewInbound records that a genuinely new inbound message landed: the
// count moves and the conversation flips back to unread. Duplicate deliveries
// never reach here, so an archived conversation stays archived through them.
func (s *Store) markNewInbound(ctx context.Context, conversationID string, now time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"message_count": gorm.Expr("message_count + 1"),
			"status":        model.StatusUnread,
			"updated_at":    now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record new inbound message: %w", err)
	}
	return nil
}
