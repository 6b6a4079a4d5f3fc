// Package model defines data structures for the unified inbox platform.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// Platform identifies the messaging channel a conversation lives on.
type Platform string

const (
	PlatformTelegram  Platform = "telegram"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformGmail     Platform = "gmail"
	PlatformOutlook   Platform = "outlook"
)

// ConversationStatus is the lifecycle status of a conversation.
// Archiving is a status value, never a deletion.
type ConversationStatus string

const (
	StatusUnread   ConversationStatus = "unread"
	StatusRead     ConversationStatus = "read"
	StatusReplied  ConversationStatus = "replied"
	StatusArchived ConversationStatus = "archived"
	StatusSnoozed  ConversationStatus = "snoozed"
)

// ValidStatus reports whether s is a known conversation status.
func ValidStatus(s ConversationStatus) bool {
	switch s {
	case StatusUnread, StatusRead, StatusReplied, StatusArchived, StatusSnoozed:
		return true
	}
	return false
}

// Conversation is the thread of messages between a connected account and one
// external participant on one platform. The (user_id, platform,
// platform_conversation_id) triple is the natural key used for upsert idempotency.
type Conversation struct {
	ID                     string   `gorm:"primaryKey" json:"id"`
	UserID                 string   `gorm:"uniqueIndex:idx_conversations_natural;not null" json:"user_id"`
	Platform               Platform `gorm:"uniqueIndex:idx_conversations_natural;not null" json:"platform"`
	PlatformConversationID string   `gorm:"uniqueIndex:idx_conversations_natural;not null" json:"platform_conversation_id"`

	ParticipantID        string `json:"participant_id"`
	ParticipantUsername  string `json:"participant_username"`
	ParticipantName      string `json:"participant_name"`
	ParticipantAvatarURL string `json:"participant_avatar_url,omitempty"`

	Status     ConversationStatus          `gorm:"index;not null" json:"status"`
	Priority   string                      `json:"priority,omitempty"`
	Sentiment  *string                     `json:"sentiment,omitempty"`
	AssignedTo *string                     `json:"assigned_to,omitempty"`
	Tags       datatypes.JSONSlice[string] `json:"tags,omitempty"`

	MessageCount          int        `json:"message_count"`
	LastMessageAt         time.Time  `gorm:"index" json:"last_message_at"`
	LastCustomerMessageAt *time.Time `json:"last_customer_message_at,omitempty"`
	LastBrandReplyAt      *time.Time `json:"last_brand_reply_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateConversationRequest is the request to change conversation state.
type UpdateConversationRequest struct {
	Status ConversationStatus `json:"status,omitempty"`
	Tags   []string           `json:"tags,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int64          `json:"total"`
	HasMore       bool           `json:"has_more"`
}
