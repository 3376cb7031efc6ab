package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/novelang/gateway/internal/audit"
	"github.com/novelang/gateway/internal/classifier"
	"github.com/novelang/gateway/internal/clock"
	"github.com/novelang/gateway/internal/config"
	"github.com/novelang/gateway/internal/domain"
	"github.com/novelang/gateway/internal/enforcement"
	"github.com/novelang/gateway/internal/evaluator"
	"github.com/novelang/gateway/internal/eventbus"
	"github.com/novelang/gateway/internal/fingerprint"
	"github.com/novelang/gateway/internal/metrics"
	"github.com/novelang/gateway/internal/registry"
	"github.com/novelang/gateway/internal/webhooks"
)

// Gateway bundles the collaborators every handler needs: registry,
// evaluator, classifier, audit log, metrics, event/webhook notifiers,
// clock, and configuration. Handlers are thin methods over this struct,
// mirroring the teacher's HandleGovern closure-over-collaborators shape
// but as methods instead of a single giant function.
type Gateway struct {
	Registry        *registry.Registry
	Evaluator       *evaluator.Evaluator
	Classifier      classifier.Classifier
	Audit           audit.Log
	Metrics         *metrics.Metrics
	Events          eventbus.EventEmitter
	Webhooks        webhooks.Emitter
	WebhookRegistry *webhooks.Registry
	Clock           clock.Clock
	Config          *config.Config
}

func (g *Gateway) now() time.Time { return g.Clock.Now() }

// publish appends e to the audit log and fans it out to the event bus;
// enforcement escalations (agent_throttled/quarantined/disabled) also go
// to the webhook notifier. Must be called while the agent's lock is still
// held, per the append-before-response ordering guarantee (spec.md §4.2/§5).
func (g *Gateway) publish(ctx context.Context, e audit.Event) audit.Event {
	stamped, _ := g.Audit.Append(ctx, e)
	if g.Events != nil {
		g.Events.Emit(stamped)
	}
	if g.Webhooks != nil {
		switch stamped.Type {
		case audit.AgentThrottled, audit.AgentQuarantined, audit.AgentDisabled:
			g.Webhooks.Emit(stamped)
		}
	}
	return stamped
}

func (g *Gateway) recordViolation(ctx context.Context, state *registry.AgentState, reason string) enforcement.Transition {
	t := state.Enforcement.RecordViolation(g.now(), g.Config.MaxViolations)
	g.publish(ctx, audit.Event{
		Type:    audit.ViolationRecorded,
		AgentID: state.AgentID,
		Reason:  reason,
		Details: map[string]interface{}{"violation_count": state.Enforcement.ViolationCount},
	})
	if t.Occurred {
		g.Metrics.RecordViolation(state.AgentID, t.To.String())
		g.emitTransitionEvent(ctx, state.AgentID, t)
	}
	return t
}

func (g *Gateway) emitTransitionEvent(ctx context.Context, agentID string, t enforcement.Transition) {
	var eventType audit.EventType
	switch t.To {
	case enforcement.Throttled:
		eventType = audit.AgentThrottled
	case enforcement.Quarantined:
		eventType = audit.AgentQuarantined
	case enforcement.Disabled:
		eventType = audit.AgentDisabled
	default:
		return
	}
	g.publish(ctx, audit.Event{Type: eventType, AgentID: agentID})
}

func (g *Gateway) checkCooldown(ctx context.Context, state *registry.AgentState) {
	t := state.Enforcement.CheckCooldown(g.now(), state.LastReportAcceptedTs, g.Config.ViolationCooldown)
	if t.Occurred {
		g.publish(ctx, audit.Event{
			Type:    audit.ViolationRecorded,
			AgentID: state.AgentID,
			Reason:  "cooldown_recovered",
			Details: map[string]interface{}{"from": t.From.String(), "to": t.To.String()},
		})
	}
}

func (g *Gateway) setComplianceGauge(state *registry.AgentState) {
	var m metrics.EnforcementState
	switch state.Enforcement.State {
	case enforcement.Throttled:
		m = metrics.StateThrottled
	case enforcement.Quarantined:
		m = metrics.StateQuarantined
	case enforcement.Disabled:
		m = metrics.StateDisabled
	default:
		m = metrics.StateActive
	}
	g.Metrics.SetComplianceStatus(state.AgentID, m)
}

// --- Register-Protocol Handler (spec.md §4.3) ---

type registerProtocolRequest struct {
	AgentID  string                 `json:"agent_id"`
	Protocol domain.ProtocolDescriptor `json:"protocol"`
}

// RegisterProtocolHandler implements POST /register_protocol_for_agent.
func (g *Gateway) RegisterProtocolHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerProtocolRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
			writeError(w, badRequest(codeMalformedRequest, "could not parse register_protocol_for_agent request"))
			return
		}
		if req.Protocol.Name == "" || req.Protocol.Version == "" {
			writeError(w, badRequest(codeMalformedRequest, "protocol name and version are required"))
			return
		}
		if !req.Protocol.RiskTier.Valid() {
			writeError(w, badRequest(codeInvalidRiskTier, "risk_tier must be one of low, medium, high, critical"))
			return
		}

		ctx := r.Context()
		var gerr *gatewayError
		_ = g.Registry.WithAgent(req.AgentID, func(state *registry.AgentState) error {
			g.checkCooldown(ctx, state)
			g.setComplianceGauge(state)

			if state.Enforcement.State == enforcement.Disabled {
				gerr = forbidden(codeAgentDisabled, "agent is disabled")
				return nil
			}

			protocol := req.Protocol
			state.Protocol = &protocol

			g.publish(ctx, audit.Event{
				Type:        audit.ProtocolRegistered,
				AgentID:     state.AgentID,
				ProtocolRef: protocol.Key(),
				Details: map[string]interface{}{
					"risk_tier": string(protocol.RiskTier),
				},
			})
			return nil
		})

		if gerr != nil {
			writeError(w, gerr)
			return
		}
		writeOK(w, map[string]interface{}{"ok": true})
	}
}

// --- Submit-Report Handler (spec.md §4.4) ---

// SubmitReportHandler implements POST /report.
func (g *Gateway) SubmitReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.EnglishReport
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
			writeError(w, badRequest(codeMalformedRequest, "could not parse report request"))
			return
		}

		ctx := r.Context()
		var gerr *gatewayError
		_ = g.Registry.WithAgent(req.AgentID, func(state *registry.AgentState) error {
			g.checkCooldown(ctx, state)
			g.setComplianceGauge(state)
			now := g.now()

			if state.Enforcement.State == enforcement.Disabled {
				gerr = forbidden(codeAgentDisabled, "agent is disabled")
				g.publish(ctx, audit.Event{Type: audit.ReportRejected, AgentID: state.AgentID, Reason: codeAgentDisabled})
				return nil
			}

			if state.Protocol == nil || !state.Protocol.Matches(req.ProtocolName, req.ProtocolVersion) {
				gerr = forbidden(codeProtocolMismatch, "report protocol does not match registered protocol")
				g.Metrics.RecordReportRejected(state.AgentID, codeProtocolMismatch)
				g.publish(ctx, audit.Event{Type: audit.ReportRejected, AgentID: state.AgentID, Reason: codeProtocolMismatch})
				return nil
			}

			if reason := g.validateReport(req, now); reason != "" {
				gerr = badRequest(reason, "report failed validation: "+reason)
				g.Metrics.RecordReportRejected(state.AgentID, reason)
				g.publish(ctx, audit.Event{Type: audit.ReportRejected, AgentID: state.AgentID, Reason: reason})
				return nil
			}

			covered := coveredFingerprints(req.MessageIDs, state.NovelPending)
			denom := state.NovelTotalInWindow
			if denom < 1 {
				denom = 1
			}
			if float64(len(covered))/float64(denom) < g.Config.MinCoverage {
				gerr = badRequest(codeCoverageBelowMinimum, "reported message_ids do not cover enough of the pending window")
				g.Metrics.RecordReportRejected(state.AgentID, codeCoverageBelowMinimum)
				g.publish(ctx, audit.Event{Type: audit.ReportRejected, AgentID: state.AgentID, Reason: codeCoverageBelowMinimum})
				return nil
			}

			state.NovelPending = remainingPending(state.NovelPending, covered)
			state.NovelTotalInWindow = len(state.NovelPending)
			state.LastReportAcceptedTs = &now
			state.WindowStartTs = now
			state.MessagesSinceReport = 0

			g.checkCooldown(ctx, state)
			g.setComplianceGauge(state)

			g.Metrics.RecordReportSubmitted(state.AgentID)
			g.publish(ctx, audit.Event{
				Type:        audit.ReportAccepted,
				AgentID:     state.AgentID,
				ProtocolRef: state.Protocol.Key(),
				Details: map[string]interface{}{
					"coverage":        req.Coverage,
					"self_confidence": req.SelfConfidence,
				},
			})
			return nil
		})

		if gerr != nil {
			writeError(w, gerr)
			return
		}
		writeOK(w, map[string]interface{}{"ok": true})
	}
}

func (g *Gateway) validateReport(req domain.EnglishReport, now time.Time) string {
	if len(req.EnglishSummary) < g.Config.MinSummaryLength {
		return codeSummaryTooShort
	}
	if req.Coverage < g.Config.MinCoverage {
		return codeCoverageBelowMinimum
	}
	if req.SelfConfidence < 0 || req.SelfConfidence > 1 {
		return codeSelfConfidenceOutOfRange
	}
	if req.WindowStartTs > req.WindowEndTs {
		return codeInvalidTimestamp
	}
	skew := time.Duration(g.Config.SkewToleranceSec) * time.Second
	endTs := time.Unix(int64(req.WindowEndTs), 0)
	if endTs.After(now.Add(skew)) {
		return codeInvalidTimestamp
	}
	return ""
}

func coveredFingerprints(reported []string, pending []registry.PendingMessage) map[string]bool {
	pendingSet := make(map[string]bool, len(pending))
	for _, p := range pending {
		pendingSet[p.MessageID] = true
	}
	covered := make(map[string]bool)
	for _, id := range reported {
		if pendingSet[id] {
			covered[id] = true
		}
	}
	return covered
}

func remainingPending(pending []registry.PendingMessage, covered map[string]bool) []registry.PendingMessage {
	out := make([]registry.PendingMessage, 0, len(pending))
	for _, p := range pending {
		if !covered[p.MessageID] {
			out = append(out, p)
		}
	}
	return out
}

// --- Send-Message Handler (spec.md §4.5) ---

type protocolRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type sendMessageRequest struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	Content     string       `json:"content"`
	ProtocolRef *protocolRef `json:"protocol,omitempty"`
	Ts          *float64     `json:"ts,omitempty"`
}

// SendMessageHandler implements POST /send.
func (g *Gateway) SendMessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == "" || req.Content == "" {
			writeError(w, badRequest(codeMalformedRequest, "could not parse send request"))
			return
		}

		ctx := r.Context()
		var gerr *gatewayError
		var messageID string

		_ = g.Registry.WithAgent(req.From, func(state *registry.AgentState) error {
			g.checkCooldown(ctx, state)
			g.setComplianceGauge(state)
			now := g.now()
			if req.Ts != nil {
				now = time.Unix(int64(*req.Ts), 0)
			}

			if state.Enforcement.State == enforcement.Disabled {
				gerr = forbidden(codeAgentDisabled, "agent is disabled")
				g.publish(ctx, audit.Event{Type: audit.MsgRejected, AgentID: state.AgentID, Reason: codeAgentDisabled})
				return nil
			}
			quarantined := state.Enforcement.State == enforcement.Quarantined

			if g.Classifier.IsEnglish(req.Content) {
				if quarantined {
					gerr = forbidden(codeAgentQuarantined, "agent is quarantined")
					g.publish(ctx, audit.Event{Type: audit.MsgRejected, AgentID: state.AgentID, Reason: codeAgentQuarantined})
					return nil
				}
				state.MessagesSinceReport++
				g.Metrics.RecordEnglishMessage(state.AgentID)
				g.publish(ctx, audit.Event{Type: audit.MsgAccepted, AgentID: state.AgentID, Details: map[string]interface{}{"language": "english"}})
				return nil
			}

			protocolMismatch := req.ProtocolRef != nil && state.Protocol != nil && !state.Protocol.Matches(req.ProtocolRef.Name, req.ProtocolRef.Version)

			verdict := g.Evaluator.Evaluate(state, now)
			if protocolMismatch {
				// A mismatched declared protocol is equivalent to having
				// none registered at all, ranked with the same precedence
				// as a missing protocol.
				verdict = evaluator.Verdict{Kind: evaluator.ProtocolMissing, Reason: "protocol_not_registered"}
			}

			switch verdict.Kind {
			case evaluator.ProtocolMissing:
				gerr = forbidden(codeProtocolNotRegistered, "no matching protocol registered for novel-language send")
				g.publish(ctx, audit.Event{Type: audit.MsgRejected, AgentID: state.AgentID, Reason: codeProtocolNotRegistered})
				if t := g.recordViolation(ctx, state, codeProtocolNotRegistered); t.Occurred && t.To == enforcement.Disabled {
					gerr = forbidden(codeAgentDisabled, "agent disabled after repeated violations")
				}
				g.setComplianceGauge(state)
				return nil
			case evaluator.ReportRequired:
				gerr = tooManyRequests(codeReportOverdue, "an English report is due before further novel sends")
				g.publish(ctx, audit.Event{Type: audit.MsgRejected, AgentID: state.AgentID, Reason: codeReportOverdue})
				if t := g.recordViolation(ctx, state, codeReportOverdue); t.Occurred && t.To == enforcement.Disabled {
					gerr = forbidden(codeAgentDisabled, "agent disabled after repeated violations")
				}
				g.setComplianceGauge(state)
				return nil
			case evaluator.Quarantined:
				gerr = forbidden(codeAgentQuarantined, "agent is quarantined")
				g.publish(ctx, audit.Event{Type: audit.MsgRejected, AgentID: state.AgentID, Reason: codeAgentQuarantined})
				return nil
			}

			if state.Enforcement.State == enforcement.Throttled {
				if !state.Enforcement.AllowThrottled(now, g.Config.ThrottleRate, time.Duration(g.Config.ThrottleWindowSec)*time.Second) {
					gerr = tooManyRequests(codeThrottled, "throttled-state rate limit exceeded")
					g.publish(ctx, audit.Event{Type: audit.MsgRejected, AgentID: state.AgentID, Reason: codeThrottled})
					return nil
				}
			}

			messageID = fingerprint.New(state.AgentID, now, req.Content)
			state.NovelPending = append(state.NovelPending, registry.PendingMessage{MessageID: messageID, Ts: now})
			state.NovelTotalInWindow++
			state.MessagesSinceReport++
			if state.WindowStartTs.IsZero() {
				state.WindowStartTs = now
			}

			g.Metrics.RecordNovelMessage(state.AgentID)
			g.publish(ctx, audit.Event{
				Type:    audit.MsgAccepted,
				AgentID: state.AgentID,
				Details: map[string]interface{}{"language": "novel", "message_id": messageID},
			})
			return nil
		})

		if gerr != nil {
			writeError(w, gerr)
			return
		}
		resp := map[string]interface{}{"ok": true}
		if messageID != "" {
			resp["message_id"] = messageID
		}
		writeOK(w, resp)
	}
}
