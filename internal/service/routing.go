package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/llm"
	"github.com/postelma/inbox-platform/internal/model"
	"github.com/postelma/inbox-platform/pkg/logger"
	"github.com/postelma/inbox-platform/pkg/metrics"
)

// RoutingStore is the subset of the store the analyzer needs.
type RoutingStore interface {
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	GetConversationByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	ListTeams(ctx context.Context, userID string) ([]model.Team, error)
	CreateAnalysis(ctx context.Context, analysis *model.MessageAIAnalysis) error
	AssignTeam(ctx context.Context, assignment *model.ConversationTeam) (*model.ConversationTeam, error)
}

// RoutingService asks an LLM which team a conversation belongs to and
// assigns it when the suggestion clears the confidence threshold.
type RoutingService struct {
	store     RoutingStore
	llm       llm.Client
	model     string
	threshold float64
	timeout   time.Duration
	logger    *logger.Logger
}

// NewRoutingService creates the analyzer. model may be empty, in which case
// the provider's default is used.
func NewRoutingService(store RoutingStore, client llm.Client, model string, threshold float64, timeout time.Duration, log *logger.Logger) *RoutingService {
	return &RoutingService{
		store:     store,
		llm:       client,
		model:     model,
		threshold: threshold,
		timeout:   timeout,
		logger:    log,
	}
}

// routingSuggestion is the JSON object the LLM is instructed to return.
type routingSuggestion struct {
	TeamID           *string  `json:"team_id"`
	Confidence       *float64 `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	DetectedIntent   string   `json:"detected_intent"`
	DetectedLanguage string   `json:"detected_language"`
}

const routingSystemPrompt = `You are a routing assistant for a customer conversation inbox.
Given a list of teams and a customer message, pick the team best suited to
handle the conversation. Respond with ONLY a JSON object, no prose and no
markdown, in this exact shape:
{"team_id": "<id or null>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>", "detected_intent": "<short label>", "detected_language": "<ISO 639-1>"}
Use null for team_id if no team fits.`

// Analyze runs one routing pass for a stored message. It always persists an
// analysis row when the LLM answered, whether or not a team was assigned.
// An unparseable LLM answer is an error so the caller can retry.
func (r *RoutingService) Analyze(ctx context.Context, req *model.AnalyzeRequest) (*model.RoutingResult, error) {
	start := time.Now()

	msg, err := r.store.GetMessage(ctx, req.MessageID)
	if err != nil {
		metrics.RecordRouting("error", time.Since(start).Seconds(), r.model, 0, 0)
		return nil, fmt.Errorf("load message: %w", err)
	}
	conv, err := r.store.GetConversationByID(ctx, req.ConversationID)
	if err != nil {
		metrics.RecordRouting("error", time.Since(start).Seconds(), r.model, 0, 0)
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	teams, err := r.store.ListTeams(ctx, conv.UserID)
	if err != nil {
		metrics.RecordRouting("error", time.Since(start).Seconds(), r.model, 0, 0)
		return nil, fmt.Errorf("list teams: %w", err)
	}
	if len(teams) == 0 {
		metrics.RecordRouting("no_teams", time.Since(start).Seconds(), r.model, 0, 0)
		return &model.RoutingResult{Success: true, Routed: false}, nil
	}

	llmCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.Complete(llmCtx, &llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: routingSystemPrompt},
			{Role: "user", Content: r.buildPrompt(conv, msg, teams)},
		},
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		metrics.RecordRouting("error", time.Since(start).Seconds(), r.model, 0, 0)
		return nil, fmt.Errorf("llm completion: %w", err)
	}

	suggestion, err := parseSuggestion(resp.Content)
	if err != nil {
		metrics.RecordRouting("error", time.Since(start).Seconds(), resp.Model, resp.TokensIn, resp.TokensOut)
		return nil, fmt.Errorf("parse llm response: %w", err)
	}

	analysis := &model.MessageAIAnalysis{
		ID:               uuid.Must(uuid.NewV7()).String(),
		MessageID:        msg.ID,
		ConversationID:   conv.ID,
		DetectedIntent:   suggestion.DetectedIntent,
		DetectedLanguage: suggestion.DetectedLanguage,
		SuggestedTeamID:  suggestion.TeamID,
		Confidence:       suggestion.Confidence,
		Reasoning:        suggestion.Reasoning,
		Model:            resp.Model,
		TokensIn:         resp.TokensIn,
		TokensOut:        resp.TokensOut,
		LatencyMs:        resp.LatencyMs,
		CreatedAt:        time.Now().UTC(),
	}
	if err := r.store.CreateAnalysis(ctx, analysis); err != nil {
		metrics.RecordRouting("error", time.Since(start).Seconds(), resp.Model, resp.TokensIn, resp.TokensOut)
		return nil, fmt.Errorf("persist analysis: %w", err)
	}

	log := r.logger.WithConversation(conv.UserID, string(conv.Platform), conv.ID)

	if suggestion.TeamID == nil {
		metrics.RecordRouting("no_suggestion", time.Since(start).Seconds(), resp.Model, resp.TokensIn, resp.TokensOut)
		log.Info("routing analyzer suggested no team")
		return &model.RoutingResult{Success: true, Routed: false, Confidence: suggestion.Confidence}, nil
	}
	if suggestion.Confidence == nil || *suggestion.Confidence < r.threshold {
		metrics.RecordRouting("below_threshold", time.Since(start).Seconds(), resp.Model, resp.TokensIn, resp.TokensOut)
		log.Info("routing suggestion below threshold",
			zap.String("team_id", *suggestion.TeamID),
			zap.Float64p("confidence", suggestion.Confidence))
		return &model.RoutingResult{Success: true, Routed: false, Confidence: suggestion.Confidence}, nil
	}

	if !teamExists(teams, *suggestion.TeamID) {
		metrics.RecordRouting("no_suggestion", time.Since(start).Seconds(), resp.Model, resp.TokensIn, resp.TokensOut)
		log.Warn("routing analyzer suggested unknown team", zap.String("team_id", *suggestion.TeamID))
		return &model.RoutingResult{Success: true, Routed: false, Confidence: suggestion.Confidence}, nil
	}

	assignment := &model.ConversationTeam{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ConversationID:  conv.ID,
		TeamID:          *suggestion.TeamID,
		AutoAssigned:    true,
		ConfidenceScore: suggestion.Confidence,
		AIReasoning:     suggestion.Reasoning,
		AssignedAt:      time.Now().UTC(),
	}
	if _, err := r.store.AssignTeam(ctx, assignment); err != nil {
		metrics.RecordRouting("error", time.Since(start).Seconds(), resp.Model, resp.TokensIn, resp.TokensOut)
		return nil, fmt.Errorf("assign team: %w", err)
	}

	metrics.RecordRouting("assigned", time.Since(start).Seconds(), resp.Model, resp.TokensIn, resp.TokensOut)
	log.Info("conversation auto-assigned",
		zap.String("team_id", *suggestion.TeamID),
		zap.Float64p("confidence", suggestion.Confidence))

	return &model.RoutingResult{
		Success:    true,
		Routed:     true,
		TeamID:     *suggestion.TeamID,
		Confidence: suggestion.Confidence,
	}, nil
}

// HandleTask adapts Analyze to the queue consumer signature.
func (r *RoutingService) HandleTask(ctx context.Context, task *model.RoutingTask) error {
	_, err := r.Analyze(ctx, &model.AnalyzeRequest{
		ConversationID: task.ConversationID,
		MessageID:      task.MessageID,
	})
	return err
}

func (r *RoutingService) buildPrompt(conv *model.Conversation, msg *model.Message, teams []model.Team) string {
	var b strings.Builder
	b.WriteString("Teams:\n")
	for _, t := range teams {
		fmt.Fprintf(&b, "- %s: %s (id: %s)\n", t.Name, t.Description, t.ID)
	}
	fmt.Fprintf(&b, "\nPlatform: %s\n", conv.Platform)
	if conv.ParticipantName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", conv.ParticipantName)
	}
	content := msg.TextContent
	if content == "" {
		content = fmt.Sprintf("[%s message]", msg.Type)
	}
	fmt.Fprintf(&b, "Message: %s\n", content)
	return b.String()
}

// parseSuggestion decodes the analyzer's JSON answer, tolerating the common
// case of models wrapping it in a markdown code fence.
func parseSuggestion(content string) (*routingSuggestion, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var suggestion routingSuggestion
	if err := json.Unmarshal([]byte(trimmed), &suggestion); err != nil {
		return nil, fmt.Errorf("invalid JSON from model: %w", err)
	}
	return &suggestion, nil
}

func teamExists(teams []model.Team, id string) bool {
	for _, t := range teams {
		if t.ID == id {
			return true
		}
	}
	return false
}
