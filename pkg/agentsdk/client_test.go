package agentsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newRecordingServer(t *testing.T, responses map[string]Response) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		resp, ok := responses[r.URL.Path]
		if !ok {
			resp = Response{OK: true}
		}
		w.Header().Set("Content-Type", "application/json")
		if !resp.OK {
			w.WriteHeader(http.StatusForbidden)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	return srv, &calls
}

func TestRegisterProtocolPostsExpectedPath(t *testing.T) {
	srv, calls := newRecordingServer(t, nil)
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	_, err := c.RegisterProtocol(context.Background(), "a1", ProtocolDescriptor{Name: "p", Version: "1", RiskTier: "low"})
	if err != nil {
		t.Fatalf("RegisterProtocol: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0] != "/register_protocol_for_agent" {
		t.Fatalf("expected one call to /register_protocol_for_agent, got %v", *calls)
	}
}

func TestSendMessageReturnsGatewayErrorOnRejection(t *testing.T) {
	srv, _ := newRecordingServer(t, map[string]Response{
		"/send": {OK: false, Reason: "protocol_not_registered", Detail: "no protocol"},
	})
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	_, err := c.SendMessage(context.Background(), "a1", "a2", "X9|k=1", nil, nil)
	if err == nil {
		t.Fatal("expected an error for a rejected send")
	}
	gerr, ok := err.(*GatewayError)
	if !ok {
		t.Fatalf("expected *GatewayError, got %T", err)
	}
	if gerr.Response.Reason != "protocol_not_registered" {
		t.Fatalf("expected reason protocol_not_registered, got %s", gerr.Response.Reason)
	}
}

func TestAgentSendEnglishPassesThroughWithoutProtocol(t *testing.T) {
	srv, calls := newRecordingServer(t, nil)
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	agent := NewAgent("a1", c, time.Minute, 25)

	if _, err := agent.Send(context.Background(), "a2", "hello there friend", true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0] != "/send" {
		t.Fatalf("expected one /send call, got %v", *calls)
	}
}

func TestAgentSendNovelWithoutProtocolFails(t *testing.T) {
	srv, _ := newRecordingServer(t, nil)
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	agent := NewAgent("a1", c, time.Minute, 25)

	if _, err := agent.Send(context.Background(), "a2", "X9|k=1", false); err == nil {
		t.Fatal("expected an error for novel send without a registered protocol")
	}
}

func TestAgentFlushesReportWhenCountThresholdReached(t *testing.T) {
	responses := map[string]Response{
		"/send": {OK: true, MessageID: "deadbeef"},
	}
	srv, calls := newRecordingServer(t, responses)
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	agent := NewAgent("a1", c, time.Hour, 2)

	if err := agent.RegisterProtocol(context.Background(), ProtocolDescriptor{Name: "p", Version: "1", RiskTier: "low"}); err != nil {
		t.Fatalf("RegisterProtocol: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := agent.Send(context.Background(), "a2", "X9|k=1", false); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	var reportCalls int
	for _, p := range *calls {
		if p == "/report" {
			reportCalls++
		}
	}
	if reportCalls == 0 {
		t.Fatal("expected at least one proactive /report call once the count threshold was reached")
	}
}
