// Package service holds the business logic between handlers and the store:
// webhook ingestion, message routing, and outbound sends.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/pkg/logger"
	"github.com/postelma/inbox-platform/pkg/metrics"
)

// TaskPublisher enqueues a routing task for the analyzer worker. Publish
// failures are logged, never propagated: the message is already committed.
type TaskPublisher interface {
	PublishTask(ctx context.Context, task *model.RoutingTask) error
}

// DedupCache reports whether a platform message id was already delivered.
// It is advisory only; the database unique index remains the source of truth.
type DedupCache interface {
	Seen(ctx context.Context, platform model.Platform, platformMessageID string) bool
}

// IngestStore is the subset of the store ingestion needs.
type IngestStore interface {
	UpsertConversation(ctx context.Context, in *model.InboundMessage) (*model.Conversation, error)
	InsertInbound(ctx context.Context, conversationID string, in *model.InboundMessage) (*model.Message, bool, error)
}

// IngestService turns a normalized inbound message into conversation and
// message rows and enqueues routing for new messages.
type IngestService struct {
	store     IngestStore
	deduper   DedupCache
	publisher TaskPublisher
	logger    *logger.Logger
}

// NewIngestService creates an ingest service. publisher may be nil, in which
// case routing is disabled and messages are only stored.
func NewIngestService(store IngestStore, deduper DedupCache, publisher TaskPublisher, log *logger.Logger) *IngestService {
	return &IngestService{
		store:     store,
		deduper:   deduper,
		publisher: publisher,
		logger:    log,
	}
}

// IngestResult reports what one Ingest call did.
type IngestResult struct {
	Conversation *model.Conversation
	Message      *model.Message
	Created      bool
}

// Ingest stores one inbound message. Redelivered messages return Created=false
// with the existing row. The cache is consulted only to record the duplicate;
// whether a routing task is published follows the insert outcome alone, since
// under concurrent duplicate delivery the cache can report seen for the very
// call whose insert lands first.
func (s *IngestService) Ingest(ctx context.Context, in *model.InboundMessage) (*IngestResult, error) {
	log := s.logger.WithConversation(in.UserID, string(in.Platform), in.PlatformConversationID)

	if s.deduper.Seen(ctx, in.Platform, in.PlatformMessageID) {
		log.Debug("webhook delivery already marked in cache",
			zap.String("platform_message_id", in.PlatformMessageID))
	}

	conv, err := s.store.UpsertConversation(ctx, in)
	if err != nil {
		metrics.RecordWebhook(string(in.Platform), "store_error")
		return nil, err
	}

	msg, created, err := s.store.InsertInbound(ctx, conv.ID, in)
	if err != nil {
		metrics.RecordWebhook(string(in.Platform), "store_error")
		return nil, err
	}

	if !created {
		metrics.RecordWebhook(string(in.Platform), "duplicate")
		return &IngestResult{Conversation: conv, Message: msg, Created: false}, nil
	}

	metrics.RecordWebhook(string(in.Platform), "stored")
	metrics.MessagesTotal.WithLabelValues(string(in.Platform), string(model.DirectionInbound)).Inc()
	log.Info("inbound message stored",
		zap.String("message_id", msg.ID),
		zap.String("type", string(msg.Type)))

	if s.publisher != nil {
		task := &model.RoutingTask{
			UserID:         in.UserID,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			EnqueuedAt:     time.Now().UTC(),
		}
		if err := s.publisher.PublishTask(ctx, task); err != nil {
			log.Error("failed to enqueue routing task", zap.Error(err))
		}
	}

	return &IngestResult{Conversation: conv, Message: msg, Created: true}, nil
}
