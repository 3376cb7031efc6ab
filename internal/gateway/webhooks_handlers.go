package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/novelang/gateway/internal/webhooks"
)

// --- Webhook Subscription Handlers ---
//
// Grounded on internal/handlers/catalog.go's HandleListWebhooks/
// HandleRegisterWebhook/HandleDeleteWebhook, adapted to operate on the
// gateway's *webhooks.Registry in place of the teacher's tenant-scoped
// registry.

// ListWebhooksHandler implements GET /webhooks.
func (g *Gateway) ListWebhooksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.WebhookRegistry == nil {
			writeOK(w, map[string]interface{}{"webhooks": []*webhooks.Subscription{}, "count": 0})
			return
		}
		hooks := g.WebhookRegistry.ListAll()
		writeOK(w, map[string]interface{}{"webhooks": hooks, "count": len(hooks)})
	}
}

// RegisterWebhookHandler implements POST /webhooks.
func (g *Gateway) RegisterWebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.WebhookRegistry == nil {
			writeError(w, internalError("webhook registry is not configured"))
			return
		}

		var sub webhooks.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, badRequest(codeMalformedRequest, "could not parse webhook subscription"))
			return
		}

		if err := g.WebhookRegistry.Register(&sub); err != nil {
			writeError(w, badRequest(codeMalformedRequest, err.Error()))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sub)
	}
}

// DeleteWebhookHandler implements DELETE /webhooks/{webhookId}.
func (g *Gateway) DeleteWebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.WebhookRegistry == nil {
			writeError(w, internalError("webhook registry is not configured"))
			return
		}

		id := mux.Vars(r)["webhookId"]
		if err := g.WebhookRegistry.Unregister(id); err != nil {
			writeError(w, &gatewayError{Status: http.StatusNotFound, Code: "webhook_not_found", Detail: err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
