// GCP Pub/Sub-backed event bus, grounded on internal/events/pubsub_bus.go:
// wraps the in-memory Bus and additionally publishes every event to a
// durable Pub/Sub topic for cross-service delivery, with tenant/agent
// ordering keys preserved as per-agent ordering keys here.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/novelang/gateway/internal/audit"
)

// PubSubBus fans out to an in-memory Bus (for in-process subscribers like
// the demo harness) and to a durable GCP Pub/Sub topic.
type PubSubBus struct {
	*Bus

	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubBus creates a Pub/Sub-backed bus, creating topicID under
// projectID if it does not already exist.
func NewPubSubBus(ctx context.Context, projectID, topicID string) (*PubSubBus, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctxTimeout, projectID)
	if err != nil {
		return nil, fmt.Errorf("eventbus: pubsub.NewClient: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctxTimeout)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("eventbus: topic.Exists: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctxTimeout, topicID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("eventbus: CreateTopic: %w", err)
		}
	}
	topic.EnableMessageOrdering = true

	return &PubSubBus{
		Bus:    New(),
		client: client,
		topic:  topic,
	}, nil
}

// Emit publishes e to Pub/Sub (durable, ordered per agent) and fans it out
// to in-memory subscribers.
func (p *PubSubBus) Emit(e audit.Event) {
	p.publishToPubSub(e)
	p.Bus.Emit(e)
}

func (p *PubSubBus) publishToPubSub(e audit.Event) {
	ce := newCloudEvent(e)
	payload, err := ce.JSON()
	if err != nil {
		slog.Error("eventbus: marshal event for pubsub", "event_id", ce.ID, "error", err)
		return
	}

	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"ce-specversion": ce.SpecVersion,
			"ce-type":        ce.Type,
			"ce-source":      ce.Source,
			"ce-id":          ce.ID,
			"ce-time":        ce.Time.Format(time.RFC3339Nano),
		},
		OrderingKey: e.AgentID,
	}

	result := p.topic.Publish(context.Background(), msg)
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			slog.Error("eventbus: pubsub publish failed", "event_id", ce.ID, "error", err)
		}
	}()
}

// Close shuts down the Pub/Sub client.
func (p *PubSubBus) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("eventbus: close pubsub client: %w", err)
	}
	return nil
}

var _ EventEmitter = (*PubSubBus)(nil)
