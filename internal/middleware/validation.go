package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/postelma/inbox-platform/internal/model"
)

// ValidateMessageContent validates outbound message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateTeamID validates a team ID.
func ValidateTeamID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid team ID format")
	}
	return nil
}

// ValidateStatus validates a conversation status value.
func ValidateStatus(status string) error {
	if !model.ValidStatus(model.ConversationStatus(status)) {
		return errors.New("invalid status value")
	}
	return nil
}

// ValidateTeamName validates a team name.
func ValidateTeamName(name string) error {
	if len(name) == 0 {
		return errors.New("team name cannot be empty")
	}
	if len(name) > 128 {
		return errors.New("team name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("team name must be valid UTF-8")
	}
	return nil
}
