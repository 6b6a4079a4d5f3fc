package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/internal/sender"
	"github.com/postelma/inbox-platform/pkg/logger"
	"github.com/postelma/inbox-platform/pkg/metrics"
)

// OutboundStore is the subset of the store outbound sending needs.
type OutboundStore interface {
	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
	InsertOutbound(ctx context.Context, conv *model.Conversation, msg *model.Message) (*model.Message, error)
}

// OutboundService delivers brand replies through the platform adapters. A
// message row is only written after the provider accepted the send.
type OutboundService struct {
	store    OutboundStore
	registry *sender.Registry
	logger   *logger.Logger
}

// NewOutboundService creates an outbound service.
func NewOutboundService(store OutboundStore, registry *sender.Registry, log *logger.Logger) *OutboundService {
	return &OutboundService{
		store:    store,
		registry: registry,
		logger:   log,
	}
}

// SendReply sends one reply on the conversation's platform and records it.
// Provider failures surface as *sender.SendError with nothing persisted.
func (o *OutboundService) SendReply(ctx context.Context, userID, conversationID string, req *model.SendReplyRequest) (*model.Message, error) {
	conv, err := o.store.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	adapter, err := o.registry.For(conv.Platform)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := adapter.Send(ctx, &sender.Request{
		Conversation: conv,
		Text:         req.TextContent,
		MediaURL:     req.MediaURL,
		MediaType:    req.MediaType,
		Subject:      req.Subject,
		To:           req.To,
	})
	if err != nil {
		metrics.RecordSend(string(conv.Platform), "error", time.Since(start).Seconds())
		o.logger.WithConversation(userID, string(conv.Platform), conv.ID).
			Error("outbound send failed", zap.Error(err))
		return nil, err
	}
	metrics.RecordSend(string(conv.Platform), "ok", time.Since(start).Seconds())

	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		ConversationID:    conv.ID,
		PlatformMessageID: result.ProviderMessageID,
		Direction:         model.DirectionOutbound,
		Type:              result.Type,
		TextContent:       req.TextContent,
		MediaURL:          req.MediaURL,
		MediaType:         req.MediaType,
		SentAt:            time.Now().UTC(),
	}
	stored, err := o.store.InsertOutbound(ctx, conv, msg)
	if err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(conv.Platform), string(model.DirectionOutbound)).Inc()
	return stored, nil
}
