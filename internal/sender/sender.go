// Package sender delivers replies through platform-specific adapters.
package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/postelma/inbox-platform/internal/model"
)

// ErrNoAdapter means no adapter is configured for the conversation's platform.
var ErrNoAdapter = errors.New("no sender configured for platform")

// Request carries one outbound reply to an adapter. Subject and To are only
// meaningful to the email adapters.
type Request struct {
	Conversation *model.Conversation
	Text         string
	MediaURL     string
	MediaType    string
	Subject      string
	To           string
}

// Result is what an adapter reports after the provider accepted the send.
type Result struct {
	ProviderMessageID string
	Type              model.MessageType
}

// Adapter is a platform-specific send primitive.
type Adapter interface {
	// Platform returns the platform this adapter serves.
	Platform() model.Platform

	// Send delivers the reply. A provider rejection returns a *SendError;
	// nothing is recorded on failure.
	Send(ctx context.Context, req *Request) (*Result, error)
}

// SendError is the typed failure an adapter returns when the provider rejects
// a send. Unlike inbound ingestion failures, these are surfaced to the caller.
type SendError struct {
	Platform   model.Platform
	StatusCode int
	Message    string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

// Registry resolves the adapter for a conversation's platform.
type Registry struct {
	adapters map[model.Platform]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Platform]Adapter)}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// For returns the adapter for a platform.
func (r *Registry) For(platform model.Platform) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoAdapter, platform)
	}
	return a, nil
}
