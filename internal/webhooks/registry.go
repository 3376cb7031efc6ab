// Package webhooks notifies external subscribers of enforcement
// escalations (agent_throttled, agent_quarantined, agent_disabled) —
// spec.md §4.6 and §9's design note that escalation should be observable
// outside the audit log.
//
// Grounded on internal/webhooks/registry.go: a subscription registry
// keyed by event type, with HMAC signing and a fail-count-based
// auto-disable. Adapted here to the gateway's three escalation event
// types in place of the teacher's nine governance events, and dropping
// tenant scoping (this spec has no tenant concept).
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novelang/gateway/internal/audit"
)

// maxFailuresBeforeDisable mirrors the teacher's MarkFailed threshold.
const maxFailuresBeforeDisable = 10

// Subscription is a registered escalation-notification endpoint.
type Subscription struct {
	ID        string
	URL       string
	Events    []audit.EventType
	Secret    string
	Active    bool
	CreatedAt time.Time
	FailCount int
}

// Notification is the payload POSTed to a subscriber.
type Notification struct {
	ID        string                 `json:"id"`
	Type      audit.EventType        `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	AgentID   string                 `json:"agent_id"`
	Data      map[string]interface{} `json:"data"`
}

// Registry stores and indexes webhook subscriptions.
type Registry struct {
	mu      sync.RWMutex
	hooks   map[string]*Subscription
	byEvent map[audit.EventType][]*Subscription
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks:   make(map[string]*Subscription),
		byEvent: make(map[audit.EventType][]*Subscription),
	}
}

// Register adds a subscription, assigning an ID if absent.
func (r *Registry) Register(sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if len(sub.Events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}

	if sub.ID == "" {
		sub.ID = "wh-" + uuid.NewString()
	}
	sub.Active = true
	sub.CreatedAt = time.Now()
	sub.FailCount = 0

	r.hooks[sub.ID] = sub
	for _, evt := range sub.Events {
		r.byEvent[evt] = append(r.byEvent[evt], sub)
	}
	return nil
}

// Unregister removes a subscription.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.hooks[id]
	if !ok {
		return fmt.Errorf("webhook %s not found", id)
	}
	delete(r.hooks, id)

	for _, evt := range sub.Events {
		filtered := make([]*Subscription, 0, len(r.byEvent[evt]))
		for _, s := range r.byEvent[evt] {
			if s.ID != id {
				filtered = append(filtered, s)
			}
		}
		r.byEvent[evt] = filtered
	}
	return nil
}

// GetSubscribers returns active subscribers for eventType.
func (r *Registry) GetSubscribers(eventType audit.EventType) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Subscription
	for _, sub := range r.byEvent[eventType] {
		if sub.Active {
			active = append(active, sub)
		}
	}
	return active
}

// ListAll returns every registered subscription.
func (r *Registry) ListAll() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Subscription, 0, len(r.hooks))
	for _, sub := range r.hooks {
		out = append(out, sub)
	}
	return out
}

// MarkFailed increments a subscriber's failure count, auto-disabling it
// once it crosses maxFailuresBeforeDisable.
func (r *Registry) MarkFailed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.hooks[id]
	if !ok {
		return
	}
	sub.FailCount++
	if sub.FailCount >= maxFailuresBeforeDisable {
		sub.Active = false
	}
}

// SignPayload returns the hex-encoded HMAC-SHA256 signature of payload
// under secret, for subscriber-side verification.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
