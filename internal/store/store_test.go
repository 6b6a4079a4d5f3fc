package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := New(db, logger.NewNop())
	require.NoError(t, s.Migrate())
	return s
}

func telegramInbound(msgID string, sentAt time.Time) *model.InboundMessage {
	return &model.InboundMessage{
		UserID:                 "user-1",
		Platform:               model.PlatformTelegram,
		PlatformConversationID: "telegram_555",
		PlatformMessageID:      msgID,
		ParticipantID:          "555",
		ParticipantUsername:    "alice",
		ParticipantName:        "Alice",
		Type:                   model.TypeText,
		TextContent:            "hello",
		SentAt:                 sentAt,
	}
}

func TestUpsertConversationCreatesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertConversation(ctx, telegramInbound("1", time.Now().UTC()))
	require.NoError(t, err)

	second, err := s.UpsertConversation(ctx, telegramInbound("2", time.Now().UTC()))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, s.db.Model(&model.Conversation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertConversationRefreshesParticipant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertConversation(ctx, telegramInbound("1", time.Now().UTC()))
	require.NoError(t, err)

	in := telegramInbound("2", time.Now().UTC())
	in.ParticipantName = "Alice Renamed"
	conv, err := s.UpsertConversation(ctx, in)
	require.NoError(t, err)

	reloaded, err := s.GetConversation(ctx, "user-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", reloaded.ParticipantName)
	assert.Equal(t, model.StatusUnread, reloaded.Status)
}

func TestDuplicateDeliveryKeepsArchivedStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := telegramInbound("42", time.Now().UTC())
	conv, err := s.UpsertConversation(ctx, in)
	require.NoError(t, err)
	_, created, err := s.InsertInbound(ctx, conv.ID, in)
	require.NoError(t, err)
	require.True(t, created)

	_, err = s.UpdateConversationStatus(ctx, "user-1", conv.ID, model.StatusArchived)
	require.NoError(t, err)

	// Platform redelivers the same message; nothing new arrived.
	_, err = s.UpsertConversation(ctx, in)
	require.NoError(t, err)
	_, created, err = s.InsertInbound(ctx, conv.ID, in)
	require.NoError(t, err)
	require.False(t, created)

	reloaded, err := s.GetConversation(ctx, "user-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, reloaded.Status)

	// A genuinely new message does surface the conversation again.
	_, err = s.UpsertConversation(ctx, telegramInbound("43", time.Now().UTC()))
	require.NoError(t, err)
	_, created, err = s.InsertInbound(ctx, conv.ID, telegramInbound("43", time.Now().UTC()))
	require.NoError(t, err)
	require.True(t, created)

	reloaded, err = s.GetConversation(ctx, "user-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnread, reloaded.Status)
}

func TestUpsertConversationTimestampNeverRegresses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	newer := time.Now().UTC().Truncate(time.Second)
	older := newer.Add(-time.Hour)

	conv, err := s.UpsertConversation(ctx, telegramInbound("1", newer))
	require.NoError(t, err)

	// Out-of-order redelivery of an older message.
	conv2, err := s.UpsertConversation(ctx, telegramInbound("0", older))
	require.NoError(t, err)
	require.Equal(t, conv.ID, conv2.ID)

	reloaded, err := s.GetConversation(ctx, "user-1", conv.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.LastMessageAt.Before(newer),
		"last_message_at moved backwards: %v < %v", reloaded.LastMessageAt, newer)
}

func TestInsertInboundIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := telegramInbound("42", time.Now().UTC())
	conv, err := s.UpsertConversation(ctx, in)
	require.NoError(t, err)

	first, created, err := s.InsertInbound(ctx, conv.ID, in)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.InsertInbound(ctx, conv.ID, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, s.db.Model(&model.Message{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	reloaded, err := s.GetConversation(ctx, "user-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.MessageCount)
}

func TestInsertInboundSamePlatformIDAcrossConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := telegramInbound("7", time.Now().UTC())
	convA, err := s.UpsertConversation(ctx, a)
	require.NoError(t, err)

	b := telegramInbound("7", time.Now().UTC())
	b.PlatformConversationID = "telegram_556"
	convB, err := s.UpsertConversation(ctx, b)
	require.NoError(t, err)
	require.NotEqual(t, convA.ID, convB.ID)

	_, created, err := s.InsertInbound(ctx, convA.ID, a)
	require.NoError(t, err)
	assert.True(t, created)

	// Uniqueness is scoped per conversation, so the same platform message id
	// in another chat still stores.
	_, created, err = s.InsertInbound(ctx, convB.ID, b)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestInsertOutboundMarksReplied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := telegramInbound("1", time.Now().UTC().Add(-time.Minute))
	conv, err := s.UpsertConversation(ctx, in)
	require.NoError(t, err)
	_, _, err = s.InsertInbound(ctx, conv.ID, in)
	require.NoError(t, err)

	msg, err := s.InsertOutbound(ctx, conv, &model.Message{
		PlatformMessageID: "900",
		Type:              model.TypeText,
		TextContent:       "hi Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DirectionOutbound, msg.Direction)
	assert.True(t, msg.IsRead)

	reloaded, err := s.GetConversation(ctx, "user-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReplied, reloaded.Status)
	assert.Equal(t, 2, reloaded.MessageCount)
	require.NotNil(t, reloaded.LastBrandReplyAt)
	assert.False(t, reloaded.LastMessageAt.Before(msg.SentAt))
}

func TestLatestInboundSkipsOutbound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := telegramInbound("1", time.Now().UTC().Add(-time.Minute))
	conv, err := s.UpsertConversation(ctx, in)
	require.NoError(t, err)
	stored, _, err := s.InsertInbound(ctx, conv.ID, in)
	require.NoError(t, err)

	_, err = s.InsertOutbound(ctx, conv, &model.Message{
		PlatformMessageID: "900",
		Type:              model.TypeText,
		TextContent:       "reply",
	})
	require.NoError(t, err)

	latest, err := s.LatestInbound(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, latest.ID)
}

func TestAssignTeamUpsertsOnPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.UpsertConversation(ctx, telegramInbound("1", time.Now().UTC()))
	require.NoError(t, err)
	team, err := s.CreateTeam(ctx, "user-1", &model.CreateTeamRequest{Name: "Support"})
	require.NoError(t, err)

	conf := 0.85
	auto, err := s.AssignTeam(ctx, &model.ConversationTeam{
		ConversationID:  conv.ID,
		TeamID:          team.ID,
		AutoAssigned:    true,
		ConfidenceScore: &conf,
		AIReasoning:     "billing question",
	})
	require.NoError(t, err)
	assert.True(t, auto.AutoAssigned)

	operator := "user-1"
	manual, err := s.AssignTeam(ctx, &model.ConversationTeam{
		ConversationID: conv.ID,
		TeamID:         team.ID,
		AutoAssigned:   false,
		AssignedBy:     &operator,
	})
	require.NoError(t, err)
	assert.Equal(t, auto.ID, manual.ID)
	assert.False(t, manual.AutoAssigned)

	var count int64
	require.NoError(t, s.db.Model(&model.ConversationTeam{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	reloadedTeam, err := s.GetTeam(ctx, "user-1", team.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloadedTeam.ConversationCount)
}

func TestUpdateConversationStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateConversationStatus(ctx, "user-1", "019205aa-0000-7000-8000-000000000000", model.StatusRead)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetConversationScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.UpsertConversation(ctx, telegramInbound("1", time.Now().UTC()))
	require.NoError(t, err)

	_, err = s.GetConversation(ctx, "someone-else", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTeamRemovesAssignments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.UpsertConversation(ctx, telegramInbound("1", time.Now().UTC()))
	require.NoError(t, err)
	team, err := s.CreateTeam(ctx, "user-1", &model.CreateTeamRequest{Name: "Sales"})
	require.NoError(t, err)
	_, err = s.AssignTeam(ctx, &model.ConversationTeam{ConversationID: conv.ID, TeamID: team.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTeam(ctx, "user-1", team.ID))

	assignments, err := s.ListAssignments(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestCreateAnalysisPersistsNullSuggestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.UpsertConversation(ctx, telegramInbound("1", time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, s.CreateAnalysis(ctx, &model.MessageAIAnalysis{
		ID:             "a-1",
		MessageID:      "m-1",
		ConversationID: conv.ID,
		Reasoning:      "no team fits",
	}))

	analyses, err := s.ListAnalyses(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.Nil(t, analyses[0].SuggestedTeamID)
	assert.Nil(t, analyses[0].Confidence)
}
