package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novelang/gateway/internal/audit"
	"github.com/novelang/gateway/internal/classifier"
	"github.com/novelang/gateway/internal/clock"
	"github.com/novelang/gateway/internal/config"
	"github.com/novelang/gateway/internal/evaluator"
	"github.com/novelang/gateway/internal/gateway"
	"github.com/novelang/gateway/internal/metrics"
	"github.com/novelang/gateway/internal/registry"
)

func newTestServer() (*Server, *clock.VirtualClock) {
	cfg := config.Default()
	vc := clock.NewVirtualClock(time.Unix(1_700_000_000, 0))
	gw := &gateway.Gateway{
		Registry:   registry.New(),
		Evaluator:  evaluator.New(cfg),
		Classifier: classifier.New(),
		Audit:      audit.NewMemoryLog(),
		Metrics:    metrics.NewWithRegisterer(prometheus.NewRegistry()),
		Clock:      vc,
		Config:     cfg,
	}
	return New("127.0.0.1:0", gw, 5*time.Second), vc
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body)
	}
}

func TestMetricsEndpointExposesPrometheusFormat(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func post(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestHappyPathScenario exercises spec.md §8 S1 end to end against the
// real HTTP surface: register a protocol, send an English message, send
// a novel message, then submit a covering report.
func TestHappyPathScenario(t *testing.T) {
	srv, _ := newTestServer()
	h := srv.httpServer.Handler

	rec := post(t, h, "/register_protocol_for_agent", map[string]interface{}{
		"agent_id": "a1",
		"protocol": map[string]interface{}{
			"name": "p", "version": "1", "purpose": "x", "scope": "y",
			"risk_tier": "low", "translation_method": "m",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = post(t, h, "/send", map[string]interface{}{
		"from": "a1", "to": "a2", "content": "Hello there friend",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("english send: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = post(t, h, "/send", map[string]interface{}{
		"from": "a1", "to": "a2", "content": "X9|st=17",
		"protocol": map[string]interface{}{"name": "p", "version": "1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("novel send: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var sendResp map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &sendResp)
	messageID, _ := sendResp["message_id"].(string)
	if messageID == "" {
		t.Fatal("expected message_id from novel send")
	}

	rec = post(t, h, "/report", map[string]interface{}{
		"agent_id":         "a1",
		"protocol_name":    "p",
		"protocol_version": "1",
		"window_start_ts":  float64(1_700_000_000),
		"window_end_ts":    float64(1_700_000_000),
		"message_ids":      []string{messageID},
		"coverage":         1.0,
		"self_confidence":  0.9,
		"english_summary":  "Sent one state update: st=17 meaning task seventeen.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestUnregisteredNovelScenario exercises spec.md §8 S2: a fresh agent's
// first novel send without a registered protocol is rejected with 403
// protocol_not_registered.
func TestUnregisteredNovelScenario(t *testing.T) {
	srv, _ := newTestServer()
	h := srv.httpServer.Handler

	rec := post(t, h, "/send", map[string]interface{}{
		"from": "a2", "to": "a3", "content": "X9|k=1",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["reason"] != "protocol_not_registered" {
		t.Fatalf("expected protocol_not_registered, got %v", body["reason"])
	}
}
