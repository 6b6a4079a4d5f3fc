package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/postelma/inbox-platform/internal/model"
)

const (
	// StreamName is the name of the routing task stream.
	StreamName = "ROUTING"

	// SubjectPrefix is the prefix for all routing subjects.
	SubjectPrefix = "route"

	// ConsumerName is the durable consumer the routing worker attaches to.
	ConsumerName = "routing-worker"

	// maxDeliver bounds redeliveries of a failing task. Routing is best
	// effort; a task that fails this many times is dropped, never retried
	// into an unbounded loop.
	maxDeliver = 3
)

// StreamManager handles JetStream stream operations for routing tasks.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the routing stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Routing tasks awaiting team analysis",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// TaskSubject returns the subject for a routing task.
func TaskSubject(userID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, userID, conversationID)
}

// PublishTask publishes a routing task. Callers publish only after the inbound
// message insert has committed, so the consumer can always load the message.
func (m *StreamManager) PublishTask(ctx context.Context, task *model.RoutingTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal routing task: %w", err)
	}

	_, err = m.client.JetStream().Publish(ctx, TaskSubject(task.UserID, task.ConversationID), data)
	if err != nil {
		return fmt.Errorf("failed to publish routing task: %w", err)
	}

	return nil
}

// TaskHandler processes one routing task. A returned error triggers a Nak and
// redelivery up to the stream's delivery bound; a nil return acks.
type TaskHandler func(ctx context.Context, task *model.RoutingTask) error

// Consume attaches the durable routing consumer and dispatches tasks to
// handler until ctx is cancelled.
func (m *StreamManager) Consume(ctx context.Context, handler TaskHandler) (jetstream.ConsumeContext, error) {
	js := m.client.JetStream()

	consumer, err := js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: fmt.Sprintf("%s.>", SubjectPrefix),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    maxDeliver,
		AckWait:       2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var task model.RoutingTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			// Not decodable now, not decodable on redelivery either.
			_ = msg.Term()
			return
		}

		if err := handler(ctx, &task); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	return cc, nil
}

// Pending returns the number of tasks waiting in the stream.
func (m *StreamManager) Pending(ctx context.Context) (uint64, error) {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}
