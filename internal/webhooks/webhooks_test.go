package webhooks

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/novelang/gateway/internal/audit"
)

func TestRegisterRequiresURLAndEvents(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Subscription{Events: []audit.EventType{audit.AgentDisabled}}); err == nil {
		t.Fatal("expected error for missing URL")
	}
	if err := r.Register(&Subscription{URL: "http://example.com"}); err == nil {
		t.Fatal("expected error for missing events")
	}
}

func TestDispatcherDeliversToMatchingSubscriber(t *testing.T) {
	var mu sync.Mutex
	var received []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received = append(received, r.Header.Get("X-Gateway-Event-Type"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := NewRegistry()
	if err := registry.Register(&Subscription{URL: srv.URL, Events: []audit.EventType{audit.AgentQuarantined}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 2)
	defer d.Shutdown()

	d.Emit(audit.Event{Type: audit.AgentQuarantined, AgentID: "a1", Timestamp: time.Now()})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != string(audit.AgentQuarantined) {
		t.Fatalf("expected one delivery of agent_quarantined, got %v", received)
	}
}

func TestDispatcherSkipsWhenNoSubscribers(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, 1)
	defer d.Shutdown()

	// Should not panic or block: no subscribers registered at all.
	d.Emit(audit.Event{Type: audit.AgentDisabled, AgentID: "a1"})
}

func TestMarkFailedAutoDisablesAfterThreshold(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&Subscription{ID: "wh-1", URL: "http://example.com", Events: []audit.EventType{audit.AgentDisabled}})

	for i := 0; i < maxFailuresBeforeDisable; i++ {
		r.MarkFailed("wh-1")
	}

	subs := r.GetSubscribers(audit.AgentDisabled)
	if len(subs) != 0 {
		t.Fatalf("expected subscriber to be disabled and excluded, got %d active", len(subs))
	}
}

func TestSignPayloadIsDeterministic(t *testing.T) {
	sig1 := SignPayload([]byte("hello"), "secret")
	sig2 := SignPayload([]byte("hello"), "secret")
	if sig1 != sig2 {
		t.Fatal("expected deterministic HMAC signature")
	}
}
