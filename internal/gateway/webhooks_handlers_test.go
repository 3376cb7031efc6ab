package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/novelang/gateway/internal/audit"
	"github.com/novelang/gateway/internal/webhooks"
)

func TestRegisterListAndDeleteWebhook(t *testing.T) {
	g, _ := newTestGateway()
	g.WebhookRegistry = webhooks.NewRegistry()

	rec := doJSON(t, g.RegisterWebhookHandler(), map[string]interface{}{
		"URL":    "https://example.com/hook",
		"Events": []audit.EventType{audit.AgentDisabled},
		"Secret": "s3cr3t",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sub webhooks.Subscription
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sub.ID == "" {
		t.Fatal("expected a generated webhook ID")
	}

	listRec := httptest.NewRecorder()
	g.ListWebhooksHandler()(listRec, httptest.NewRequest(http.MethodGet, "/webhooks", nil))
	body := decodeBody(t, listRec)
	if body["count"] != float64(1) {
		t.Fatalf("expected 1 registered webhook, got %v", body["count"])
	}

	delReq := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/webhooks/"+sub.ID, nil), map[string]string{"webhookId": sub.ID})
	delRec := httptest.NewRecorder()
	g.DeleteWebhookHandler()(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", delRec.Code, delRec.Body.String())
	}

	secondDelRec := httptest.NewRecorder()
	g.DeleteWebhookHandler()(secondDelRec, delReq)
	if secondDelRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for already-removed webhook, got %d", secondDelRec.Code)
	}
}

func TestListWebhooksWithoutRegistryConfigured(t *testing.T) {
	g, _ := newTestGateway()

	rec := httptest.NewRecorder()
	g.ListWebhooksHandler()(rec, httptest.NewRequest(http.MethodGet, "/webhooks", nil))
	body := decodeBody(t, rec)
	if body["count"] != float64(0) {
		t.Fatalf("expected 0 webhooks when registry is unconfigured, got %v", body["count"])
	}
}
