package agentsdk

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// pendingMessage is a buffered novel-language send awaiting coverage by a
// submitted report.
type pendingMessage struct {
	ts int64
	id string
}

// Agent wraps a Client with the client-side bookkeeping an AI agent needs
// to stay compliant: buffering novel-message ids, tracking window age,
// and proactively submitting a report before the next novel send would
// be rejected as overdue.
//
// Grounded on original_source/observable_agent.py's ObservableAgent: the
// same buffer-then-report-before-next-send control flow, translated from
// Python's mutable-object style into a Go struct with an explicit mutex
// (the Python original was single-threaded; this SDK may be embedded in
// a concurrent agent, so access is serialized here).
type Agent struct {
	AgentID string

	client *Client

	reportInterval time.Duration
	reportEveryN   int

	mu                  sync.Mutex
	protocol            *ProtocolDescriptor
	windowStartTs       int64
	lastReportTs        int64
	novelBuffer         []pendingMessage
	novelCountSinceRept int

	// Translate builds the English summary for a pending report. If nil,
	// a placeholder summary describing the buffered message count is
	// used — callers integrating a real translation pipeline should set
	// this to decode their protocol's actual content.
	Translate func(protocol ProtocolDescriptor, buffered []string) string
}

// NewAgent builds an Agent identified by agentID, talking to the gateway
// through client, using the risk-tier-appropriate thresholds the caller
// already knows apply (mirroring the server's own config so the agent
// reports before, not after, the server would reject it).
func NewAgent(agentID string, client *Client, reportInterval time.Duration, reportEveryN int) *Agent {
	now := time.Now().Unix()
	return &Agent{
		AgentID:        agentID,
		client:         client,
		reportInterval: reportInterval,
		reportEveryN:   reportEveryN,
		windowStartTs:  now,
		lastReportTs:   now,
	}
}

// RegisterProtocol registers pd for this agent and resets the client-side
// reporting window. The gateway itself does not reset its window on
// registration.
func (a *Agent) RegisterProtocol(ctx context.Context, pd ProtocolDescriptor) error {
	if _, err := a.client.RegisterProtocol(ctx, a.AgentID, pd); err != nil {
		return err
	}

	a.mu.Lock()
	a.protocol = &pd
	now := time.Now().Unix()
	a.windowStartTs = now
	a.lastReportTs = now
	a.mu.Unlock()
	return nil
}

// needsReport reports whether a report must be submitted before the next
// novel send, mirroring spec.md §4.5 step 5's freshness check from the
// client side. Caller must hold a.mu.
func (a *Agent) needsReport() bool {
	if a.novelCountSinceRept == 0 {
		return false
	}
	if time.Since(time.Unix(a.lastReportTs, 0)) >= a.reportInterval {
		return true
	}
	return a.novelCountSinceRept >= a.reportEveryN
}

// Send delivers content to recipient "to". English content passes
// through unconditionally; novel-language content requires a registered
// protocol and proactively submits a report when the client-tracked
// window is due, so the send itself does not race the server's own
// overdue check.
func (a *Agent) Send(ctx context.Context, to, content string, isEnglish bool) (Response, error) {
	if isEnglish {
		return a.client.SendMessage(ctx, a.AgentID, to, content, nil, nil)
	}

	a.mu.Lock()
	if a.protocol == nil {
		a.mu.Unlock()
		return Response{}, fmt.Errorf("agentsdk: novel-language send denied: protocol not registered for agent %s", a.AgentID)
	}
	protocol := *a.protocol
	a.mu.Unlock()

	if err := a.flushIfDue(ctx); err != nil {
		return Response{}, err
	}

	ref := &ProtocolRef{Name: protocol.Name, Version: protocol.Version}
	ts := float64(time.Now().Unix())
	resp, err := a.client.SendMessage(ctx, a.AgentID, to, content, ref, &ts)
	if err != nil {
		return resp, err
	}

	a.mu.Lock()
	a.novelBuffer = append(a.novelBuffer, pendingMessage{ts: int64(ts), id: resp.MessageID})
	a.novelCountSinceRept++
	a.mu.Unlock()

	return resp, nil
}

// flushIfDue submits a report if the client-side window tracking says
// one is due before the next novel send.
func (a *Agent) flushIfDue(ctx context.Context) error {
	a.mu.Lock()
	due := a.needsReport()
	a.mu.Unlock()
	if !due {
		return nil
	}
	return a.FlushReport(ctx)
}

// FlushReport submits a report covering every currently buffered
// message, then resets the window. Call this explicitly to force a
// report (e.g. on shutdown) even if the window isn't yet due.
func (a *Agent) FlushReport(ctx context.Context) error {
	a.mu.Lock()
	if a.protocol == nil {
		a.mu.Unlock()
		return fmt.Errorf("agentsdk: cannot build report: protocol not registered for agent %s", a.AgentID)
	}
	if len(a.novelBuffer) == 0 {
		a.mu.Unlock()
		return nil
	}
	protocol := *a.protocol
	windowStart := a.windowStartTs
	ids := make([]string, 0, len(a.novelBuffer))
	for _, m := range a.novelBuffer {
		ids = append(ids, m.id)
	}
	a.mu.Unlock()

	summary := a.buildSummary(protocol, ids)
	report := Report{
		AgentID:         a.AgentID,
		ProtocolName:    protocol.Name,
		ProtocolVersion: protocol.Version,
		WindowStartTs:   float64(windowStart),
		WindowEndTs:     float64(time.Now().Unix()),
		MessageIDs:      ids,
		EnglishSummary:  summary,
		Coverage:        1.0,
		SelfConfidence:  0.8,
		Notes:           "auto-generated report",
	}

	if _, err := a.client.SubmitReport(ctx, report); err != nil {
		return err
	}

	now := time.Now().Unix()
	a.mu.Lock()
	a.lastReportTs = now
	a.windowStartTs = now
	a.novelBuffer = a.novelBuffer[:0]
	a.novelCountSinceRept = 0
	a.mu.Unlock()
	return nil
}

func (a *Agent) buildSummary(protocol ProtocolDescriptor, ids []string) string {
	if a.Translate != nil {
		return a.Translate(protocol, ids)
	}
	return fmt.Sprintf(
		"English report for protocol %s v%s. Covered %d novel-language messages in this window. "+
			"Translation method: %s. Summary: messages contained compressed task state updates and "+
			"coordination signals; no external actions should be taken without explicit tool authorization.",
		protocol.Name, protocol.Version, len(ids), protocol.TranslationMethod,
	)
}
