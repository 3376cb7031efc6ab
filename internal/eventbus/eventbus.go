// Package eventbus republishes gateway audit events on a CloudEvents-style
// bus so dashboards and SIEM-style consumers can subscribe without
// coupling to the audit log's storage (spec.md §9 design notes).
//
// Grounded on internal/events/bus.go: EventEmitter interface, CloudEvent
// envelope, in-memory pub/sub with per-type and catch-all subscriber
// channels. Adapted from the teacher's handler-facing Emit(eventType,
// source, subject, data) shape to accept audit.Event directly, since this
// bus's only producer is gateway.Gateway's publish helper, which emits
// each event right after appending it to the audit log.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novelang/gateway/internal/audit"
)

// CloudEvent is the CloudEvents 1.0 envelope wrapping an audit.Event.
type CloudEvent struct {
	SpecVersion string                 `json:"specversion"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	ID          string                 `json:"id"`
	Time        time.Time              `json:"time"`
	Subject     string                 `json:"subject,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

// JSON serializes the event.
func (ce *CloudEvent) JSON() ([]byte, error) {
	return json.Marshal(ce)
}

func newCloudEvent(e audit.Event) *CloudEvent {
	return &CloudEvent{
		SpecVersion: "1.0",
		Type:        fmt.Sprintf("gateway.%s", e.Type),
		Source:      "novelang-gateway",
		ID:          uuid.NewString(),
		Time:        e.Timestamp,
		Subject:     e.AgentID,
		Data: map[string]interface{}{
			"seq":          e.Seq,
			"agent_id":     e.AgentID,
			"protocol_ref": e.ProtocolRef,
			"reason":       e.Reason,
			"details":      e.Details,
		},
	}
}

// EventEmitter is the contract every bus backend satisfies.
type EventEmitter interface {
	Emit(e audit.Event)
}

const subscriberBufferSize = 100

// Bus is an in-process pub/sub event bus, keyed by audit.EventType.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[audit.EventType][]chan *CloudEvent
	allSubs     []chan *CloudEvent
}

// New creates an empty in-memory Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[audit.EventType][]chan *CloudEvent),
	}
}

// Subscribe returns a channel that receives events of the given types.
// Passing no types subscribes to every event.
func (b *Bus) Subscribe(types ...audit.EventType) chan *CloudEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *CloudEvent, subscriberBufferSize)
	if len(types) == 0 {
		b.allSubs = append(b.allSubs, ch)
		return ch
	}
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}
	return ch
}

// Unsubscribe removes and closes ch.
func (b *Bus) Unsubscribe(ch chan *CloudEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subscribers {
		b.subscribers[t] = removeChan(subs, ch)
	}
	b.allSubs = removeChan(b.allSubs, ch)
	close(ch)
}

func removeChan(subs []chan *CloudEvent, target chan *CloudEvent) []chan *CloudEvent {
	filtered := make([]chan *CloudEvent, 0, len(subs))
	for _, s := range subs {
		if s != target {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Emit builds a CloudEvent from e and delivers it to matching subscribers.
// Delivery is non-blocking: a full subscriber channel drops the event
// rather than stalling the caller (the audit log remains the durable
// record regardless).
func (b *Bus) Emit(e audit.Event) {
	ce := newCloudEvent(e)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[e.Type] {
		select {
		case ch <- ce:
		default:
			slog.Warn("eventbus: subscriber channel full, dropping event", "event_type", e.Type)
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- ce:
		default:
			slog.Warn("eventbus: catch-all subscriber channel full, dropping event", "event_type", e.Type)
		}
	}
}

// SubscriberCount returns the total number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allSubs)
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	return count
}

var _ EventEmitter = (*Bus)(nil)
