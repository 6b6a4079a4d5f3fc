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

// Exercises the full inbound path: webhook payload → ingest → routing task →
// analyzer → auto-assignment.
func TestInboundPipelineEndToEnd(t *testing.T) {
	s := newServiceStore(t)
	ctx := context.Background()

	support, err := s.CreateTeam(ctx, "user-1", &model.CreateTeamRequest{
		Name: "Support", Description: "order issues and product help",
	})
	require.NoError(t, err)
	_, err = s.CreateTeam(ctx, "user-1", &model.CreateTeamRequest{
		Name: "Sales", Description: "new business and pricing",
	})
	require.NoError(t, err)

	body := []byte(`{"update_id": 1, "message": {"message_id": 42, "date": 1714000000,
		"chat": {"id": 555, "type": "private"},
		"from": {"id": 555, "first_name": "Alice", "username": "alice"},
		"text": "my order arrived damaged"}}`)
	in, err := webhook.ParseTelegram(body, "user-1")
	require.NoError(t, err)
	require.NotNil(t, in)

	pub := &fakePublisher{}
	ingest := NewIngestService(s, webhook.NewDeduper(nil, time.Hour), pub, logger.NewNop())
	res, err := ingest.Ingest(ctx, in)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Len(t, pub.tasks, 1)

	client := &fakeLLM{response: `{"team_id": "` + support.ID + `", "confidence": 0.85, "reasoning": "damaged order is a support issue", "detected_intent": "complaint", "detected_language": "en"}`}
	routing := newRouting(s, client)

	// The consumer invokes the analyzer with the published task.
	require.NoError(t, routing.HandleTask(ctx, pub.tasks[0]))

	assignments, err := s.ListAssignments(ctx, res.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, support.ID, assignments[0].TeamID)
	assert.True(t, assignments[0].AutoAssigned)

	analyses, err := s.ListAnalyses(ctx, res.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.Equal(t, res.Message.ID, analyses[0].MessageID)
	assert.Equal(t, "fake-model", analyses[0].Model)

	// Redelivery of the same webhook changes nothing.
	res2, err := ingest.Ingest(ctx, in)
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Len(t, pub.tasks, 1)
}
