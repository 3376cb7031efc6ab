// Cloud Tasks-backed webhook dispatcher, grounded on
// internal/webhooks/cloud_dispatcher.go: durable, at-least-once delivery
// via Google Cloud Tasks, with an optional in-memory fallback dispatcher
// for local development when Cloud Tasks is unreachable.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/google/uuid"

	"github.com/novelang/gateway/internal/audit"
)

// CloudDispatcher enqueues one HTTP task per matching subscriber via
// Google Cloud Tasks.
type CloudDispatcher struct {
	registry  *Registry
	client    *cloudtasks.Client
	queuePath string
	fallback  *Dispatcher
}

// NewCloudDispatcher creates a Cloud Tasks-backed dispatcher against the
// queue identified by projectID/locationID/queueID. If fallbackWorkers > 0,
// an in-memory Dispatcher backs delivery when task enqueue fails.
func NewCloudDispatcher(registry *Registry, projectID, locationID, queueID string, fallbackWorkers int) (*CloudDispatcher, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("webhooks: cloudtasks.NewClient: %w", err)
	}

	cd := &CloudDispatcher{
		registry:  registry,
		client:    client,
		queuePath: fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, locationID, queueID),
	}
	if fallbackWorkers > 0 {
		cd.fallback = NewDispatcher(registry, fallbackWorkers)
	}
	return cd, nil
}

// Emit enqueues one Cloud Task per subscriber registered for e.Type.
func (cd *CloudDispatcher) Emit(e audit.Event) {
	subscribers := cd.registry.GetSubscribers(e.Type)
	if len(subscribers) == 0 {
		return
	}

	notif := &Notification{
		ID:        uuid.NewString(),
		Type:      e.Type,
		Source:    "novelang-gateway",
		Timestamp: e.Timestamp,
		AgentID:   e.AgentID,
		Data: map[string]interface{}{
			"reason":  e.Reason,
			"details": e.Details,
		},
	}

	payload, err := json.Marshal(notif)
	if err != nil {
		slog.Error("webhooks: marshal notification for cloud tasks", "error", err)
		return
	}

	for _, sub := range subscribers {
		cd.enqueueTask(sub, notif, payload)
	}
}

func (cd *CloudDispatcher) enqueueTask(sub *Subscription, notif *Notification, payload []byte) {
	headers := map[string]string{
		"Content-Type":               "application/json",
		"X-Gateway-Event-Type":       string(notif.Type),
		"X-Gateway-Event-ID":         notif.ID,
		"X-Gateway-Delivery-Attempt": "1",
	}
	if sub.Secret != "" {
		headers["X-Gateway-Signature"] = "sha256=" + SignPayload(payload, sub.Secret)
	}

	req := &taskspb.CreateTaskRequest{
		Parent: cd.queuePath,
		Task: &taskspb.Task{
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        sub.URL,
					Headers:    headers,
					Body:       payload,
				},
			},
		},
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := cd.client.CreateTask(ctx, req); err != nil {
			slog.Error("webhooks: cloud task enqueue failed", "event_id", notif.ID, "url", sub.URL, "error", err)
			if cd.fallback != nil {
				cd.fallback.Emit(audit.Event{Type: notif.Type, AgentID: notif.AgentID, Timestamp: notif.Timestamp})
			}
		}
	}()
}

// Shutdown closes the Cloud Tasks client and the fallback dispatcher, if any.
func (cd *CloudDispatcher) Shutdown() {
	if cd.fallback != nil {
		cd.fallback.Shutdown()
	}
	if err := cd.client.Close(); err != nil {
		slog.Warn("webhooks: cloud tasks client close error", "error", err)
	}
}

var _ Emitter = (*CloudDispatcher)(nil)
