// In-memory worker-pool webhook dispatcher, grounded on
// internal/webhooks/dispatcher.go: buffered job queue, fixed worker pool,
// HTTP POST with HMAC signature header, retry on transport errors up to
// 3 attempts with a backoff of attempt² seconds (1 s, then 4 s). Header names are renamed from X-OCX-* to X-Gateway-* and
// the event taxonomy narrows to the three escalation types this spec
// defines.
package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novelang/gateway/internal/audit"
)

const maxDeliveryAttempts = 3

// Emitter is the contract every dispatcher backend satisfies.
type Emitter interface {
	Emit(e audit.Event)
	Shutdown()
}

type deliveryJob struct {
	subscriber *Subscription
	event      *Notification
	attempt    int
}

// Dispatcher delivers escalation notifications via a background worker
// pool of HTTP POSTs.
type Dispatcher struct {
	registry   *Registry
	httpClient *http.Client
	queue      chan *deliveryJob
	wg         sync.WaitGroup
}

// NewDispatcher creates a Dispatcher backed by workers background
// goroutines (defaulting to 4 if workers <= 0).
func NewDispatcher(registry *Registry, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	d := &Dispatcher{
		registry:   registry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan *deliveryJob, 1000),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Emit enqueues a delivery job for every subscriber registered against
// e.Type. Only escalation events (agent_throttled/quarantined/disabled)
// are expected callers, but Emit itself is agnostic.
func (d *Dispatcher) Emit(e audit.Event) {
	subscribers := d.registry.GetSubscribers(e.Type)
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

	for _, sub := range subscribers {
		select {
		case d.queue <- &deliveryJob{subscriber: sub, event: notif, attempt: 1}:
		default:
			slog.Warn("webhooks: delivery queue full, dropping notification", "event_id", notif.ID, "subscriber", sub.ID)
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job *deliveryJob) {
	payload, err := json.Marshal(job.event)
	if err != nil {
		slog.Error("webhooks: marshal notification", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, job.subscriber.URL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("webhooks: build request", "url", job.subscriber.URL, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Event-Type", string(job.event.Type))
	req.Header.Set("X-Gateway-Event-ID", job.event.ID)
	req.Header.Set("X-Gateway-Delivery-Attempt", fmt.Sprintf("%d", job.attempt))
	if job.subscriber.Secret != "" {
		req.Header.Set("X-Gateway-Signature", "sha256="+SignPayload(payload, job.subscriber.Secret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.registry.MarkFailed(job.subscriber.ID)
		d.retry(job)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		d.registry.MarkFailed(job.subscriber.ID)
		slog.Warn("webhooks: subscriber returned error", "url", job.subscriber.URL, "status", resp.StatusCode)
	}
}

func (d *Dispatcher) retry(job *deliveryJob) {
	if job.attempt >= maxDeliveryAttempts {
		return
	}
	time.Sleep(time.Duration(job.attempt*job.attempt) * time.Second)
	job.attempt++
	select {
	case d.queue <- job:
	default:
	}
}

// Shutdown drains the queue and waits for in-flight deliveries to finish.
func (d *Dispatcher) Shutdown() {
	close(d.queue)
	d.wg.Wait()
}

var _ Emitter = (*Dispatcher)(nil)
