package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/internal/webhook"
	"github.com/postelma/inbox-platform/pkg/logger"
)

type fakePublisher struct {
	tasks []*model.RoutingTask
	err   error
}

func (f *fakePublisher) PublishTask(ctx context.Context, task *model.RoutingTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeDeduper struct {
	seen bool
}

func (f *fakeDeduper) Seen(ctx context.Context, platform model.Platform, platformMessageID string) bool {
	return f.seen
}

func inboundFixture(msgID string) *model.InboundMessage {
	return &model.InboundMessage{
		UserID:                 "user-1",
		Platform:               model.PlatformWhatsApp,
		PlatformConversationID: "whatsapp_+15551234567",
		PlatformMessageID:      msgID,
		ParticipantID:          "+15551234567",
		ParticipantName:        "Bob",
		Type:                   model.TypeText,
		TextContent:            "hi",
		SentAt:                 time.Now().UTC(),
	}
}

func TestIngestStoresAndEnqueues(t *testing.T) {
	s := newServiceStore(t)
	pub := &fakePublisher{}
	svc := NewIngestService(s, webhook.NewDeduper(nil, time.Hour), pub, logger.NewNop())

	res, err := svc.Ingest(context.Background(), inboundFixture("SM1"))
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.NotEmpty(t, res.Conversation.ID)
	assert.Equal(t, model.DirectionInbound, res.Message.Direction)

	require.Len(t, pub.tasks, 1)
	assert.Equal(t, res.Conversation.ID, pub.tasks[0].ConversationID)
	assert.Equal(t, res.Message.ID, pub.tasks[0].MessageID)
	assert.Equal(t, "user-1", pub.tasks[0].UserID)
}

func TestIngestDuplicateDoesNotReenqueue(t *testing.T) {
	s := newServiceStore(t)
	pub := &fakePublisher{}
	svc := NewIngestService(s, webhook.NewDeduper(nil, time.Hour), pub, logger.NewNop())
	ctx := context.Background()

	first, err := svc.Ingest(ctx, inboundFixture("SM1"))
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, inboundFixture("SM1"))
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Message.ID, second.Message.ID)
	assert.Len(t, pub.tasks, 1)
}

// A cache hit racing with the first successful insert must not swallow the
// routing task: only the insert outcome decides whether routing is enqueued.
func TestIngestCacheHitStillRoutesNewMessage(t *testing.T) {
	s := newServiceStore(t)
	pub := &fakePublisher{}
	svc := NewIngestService(s, &fakeDeduper{seen: true}, pub, logger.NewNop())

	res, err := svc.Ingest(context.Background(), inboundFixture("SM1"))
	require.NoError(t, err)

	assert.True(t, res.Created)
	require.Len(t, pub.tasks, 1)
	assert.Equal(t, res.Message.ID, pub.tasks[0].MessageID)
}

func TestIngestCacheHitOnStoredDuplicate(t *testing.T) {
	s := newServiceStore(t)
	pub := &fakePublisher{}
	cache := &fakeDeduper{}
	svc := NewIngestService(s, cache, pub, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, inboundFixture("SM1"))
	require.NoError(t, err)

	cache.seen = true
	res, err := svc.Ingest(ctx, inboundFixture("SM1"))
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Len(t, pub.tasks, 1)
}

func TestIngestPublishFailureDoesNotFailIngestion(t *testing.T) {
	s := newServiceStore(t)
	pub := &fakePublisher{err: assert.AnError}
	svc := NewIngestService(s, webhook.NewDeduper(nil, time.Hour), pub, logger.NewNop())

	res, err := svc.Ingest(context.Background(), inboundFixture("SM1"))
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestIngestWithoutPublisher(t *testing.T) {
	s := newServiceStore(t)
	svc := NewIngestService(s, webhook.NewDeduper(nil, time.Hour), nil, logger.NewNop())

	res, err := svc.Ingest(context.Background(), inboundFixture("SM1"))
	require.NoError(t, err)
	assert.True(t, res.Created)
}
