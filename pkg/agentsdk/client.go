// Package agentsdk is the Go client library AI agents embed to route
// inter-agent messages through the novelang compliance gateway, mirroring
// original_source/observable_agent.py's GatewayClient/ObservableAgent pair.
//
// Grounded on pkg/sdk/client.go: an http.Client wrapper that marshals a
// request struct, posts it with a bearer token header, and unmarshals the
// JSON response — generalized here from the teacher's single ExecuteTool
// call to the gateway's three endpoints.
package agentsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	// GatewayURL is the base URL of the running gateway (required).
	GatewayURL string

	// APIKey is sent as a bearer token, if set. The gateway does not
	// currently verify it (spec.md §1 stubs authentication) — carried
	// here so a future auth layer has a slot to plug into.
	APIKey string

	// Timeout bounds each HTTP call (default 30s).
	Timeout time.Duration
}

// Client is the governance-gateway client.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a Client against cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ProtocolRef identifies a registered (name, version) protocol.
type ProtocolRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ProtocolDescriptor mirrors internal/domain.ProtocolDescriptor's wire
// shape, duplicated here so the SDK has no dependency on gateway internals.
type ProtocolDescriptor struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	Purpose           string `json:"purpose"`
	Scope             string `json:"scope"`
	RiskTier          string `json:"risk_tier"`
	TranslationMethod string `json:"translation_method"`
}

// Report mirrors internal/domain.EnglishReport's wire shape.
type Report struct {
	AgentID         string   `json:"agent_id"`
	ProtocolName    string   `json:"protocol_name"`
	ProtocolVersion string   `json:"protocol_version"`
	WindowStartTs   float64  `json:"window_start_ts"`
	WindowEndTs     float64  `json:"window_end_ts"`
	MessageIDs      []string `json:"message_ids"`
	EnglishSummary  string   `json:"english_summary"`
	Coverage        float64  `json:"coverage"`
	SelfConfidence  float64  `json:"self_confidence"`
	Notes           string   `json:"notes,omitempty"`
}

// Response is the gateway's JSON response body, covering both the 2xx
// {ok:true, ...} and non-2xx {ok:false, reason, detail} shapes.
type Response struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// GatewayError wraps a non-2xx Response so callers can distinguish
// governance rejections (err.Response.Reason) from transport failures.
type GatewayError struct {
	StatusCode int
	Response   Response
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("agentsdk: gateway rejected request (%d): %s: %s", e.StatusCode, e.Response.Reason, e.Response.Detail)
}

// RegisterProtocol registers or re-registers a protocol for agentID.
func (c *Client) RegisterProtocol(ctx context.Context, agentID string, pd ProtocolDescriptor) (Response, error) {
	return c.post(ctx, "/register_protocol_for_agent", map[string]interface{}{
		"agent_id": agentID,
		"protocol": pd,
	})
}

// SubmitReport submits an English compliance report.
func (c *Client) SubmitReport(ctx context.Context, report Report) (Response, error) {
	return c.post(ctx, "/report", report)
}

// SendMessage sends a message from one agent to another, optionally
// declaring the protocol used for novel-language content.
func (c *Client) SendMessage(ctx context.Context, from, to, content string, protocol *ProtocolRef, ts *float64) (Response, error) {
	return c.post(ctx, "/send", map[string]interface{}{
		"from":     from,
		"to":       to,
		"content":  content,
		"protocol": protocol,
		"ts":       ts,
	})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("agentsdk: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL+path, bytes.NewReader(raw))
	if err != nil {
		return Response{}, fmt.Errorf("agentsdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("agentsdk: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("agentsdk: read response: %w", err)
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("agentsdk: parse response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return parsed, &GatewayError{StatusCode: resp.StatusCode, Response: parsed}
	}
	return parsed, nil
}
