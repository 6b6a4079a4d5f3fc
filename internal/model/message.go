package model

import (
	"time"
)

// Direction tells whether a message came from the customer or from the brand.
// One legacy write path spelled these incoming/outgoing; inbound/outbound is
// canonical and legacy values are mapped at the boundary.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageType classifies the payload of a message.
type MessageType string

const (
	TypeText         MessageType = "text"
	TypeImage        MessageType = "image"
	TypeVideo        MessageType = "video"
	TypeAudio        MessageType = "audio"
	TypeDocument     MessageType = "document"
	TypeStoryReply   MessageType = "story_reply"
	TypeStoryMention MessageType = "story_mention"
)

// Message is a single communication unit within a conversation. Rows are
// append-only: created once per inbound webhook event or outbound send, never
// mutated afterward. (conversation_id, platform_message_id) is unique so that
// at-least-once webhook delivery cannot produce duplicates.
type Message struct {
	ID                string `gorm:"primaryKey" json:"id"`
	ConversationID    string `gorm:"uniqueIndex:idx_messages_platform;not null" json:"conversation_id"`
	PlatformMessageID string `gorm:"uniqueIndex:idx_messages_platform;not null" json:"platform_message_id"`

	Direction Direction   `gorm:"not null" json:"direction"`
	Type      MessageType `gorm:"not null" json:"type"`

	TextContent string `json:"text_content"`
	MediaURL    string `json:"media_url,omitempty"`
	MediaType   string `json:"media_type,omitempty"`

	SenderID       string `json:"sender_id"`
	SenderUsername string `json:"sender_username,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`

	IsRead    bool      `json:"is_read"`
	SentAt    time.Time `gorm:"index" json:"sent_at"`
	CreatedAt time.Time `json:"created_at"`
}

// InboundMessage is the normalized tuple a webhook receiver extracts from a
// provider payload before it touches storage.
type InboundMessage struct {
	UserID                 string
	Platform               Platform
	PlatformConversationID string
	PlatformMessageID      string

	ParticipantID       string
	ParticipantUsername string
	ParticipantName     string

	Type        MessageType
	TextContent string
	MediaURL    string
	MediaType   string

	SentAt time.Time
}

// SendReplyRequest is the request to deliver a reply through a platform adapter.
// Subject and To only apply to the email platforms.
type SendReplyRequest struct {
	TextContent string `json:"text_content"`
	MediaURL    string `json:"media_url,omitempty"`
	MediaType   string `json:"media_type,omitempty"`
	Subject     string `json:"subject,omitempty"`
	To          string `json:"to,omitempty"`
}

// ListMessagesResponse is the response for listing a conversation's messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int64     `json:"total"`
	HasMore  bool      `json:"has_more"`
}
