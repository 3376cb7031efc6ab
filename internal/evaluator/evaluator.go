// Package evaluator computes the compliance verdict for a send-message
// attempt (spec.md §2 item 6, §4.5, §4.7) and resolves risk-tier threshold
// overrides.
//
// Grounded on the teacher's internal/security.ContinuousAccessEvaluator:
// that type runs as a background sweep producing a session-level
// allow/revoke decision from drift metrics polled on an interval. This
// adapts the same "inspect state against thresholds, return a decision"
// shape into a synchronous, per-request pure function — no background
// goroutine, no polling — called once per send under the agent's lock.
package evaluator

import (
	"time"

	"github.com/novelang/gateway/internal/config"
	"github.com/novelang/gateway/internal/domain"
	"github.com/novelang/gateway/internal/enforcement"
	"github.com/novelang/gateway/internal/registry"
)

// Kind enumerates the verdicts from spec.md §2 item 6.
type Kind string

const (
	Allowed         Kind = "allowed"
	ReportRequired  Kind = "report_required"
	ProtocolMissing Kind = "protocol_missing"
	Quarantined     Kind = "quarantined"
	Disabled        Kind = "disabled"
)

// Verdict is the evaluator's decision plus the machine reason code to
// surface in an error response, if any.
type Verdict struct {
	Kind   Kind
	Reason string
}

// Evaluator resolves risk-tier thresholds and computes send-message
// verdicts against the base Config.
type Evaluator struct {
	cfg *config.Config
}

// New builds an Evaluator against cfg. cfg is treated as immutable.
func New(cfg *config.Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Thresholds resolves the (report_interval, report_every_n_messages) pair
// in force for protocol (spec.md §4.7). A nil protocol, or one whose risk
// tier is unrecognized, falls back to the base config values.
func (e *Evaluator) Thresholds(protocol *domain.ProtocolDescriptor) (reportInterval time.Duration, reportEveryN int) {
	if protocol == nil {
		return e.cfg.Thresholds("")
	}
	return e.cfg.Thresholds(protocol.RiskTier)
}

// Evaluate computes the verdict for a novel-language send attempt from
// state, as of now (spec.md §4.5 steps 1, 2, 4, 5). English sends never
// reach this function — they are admitted unconditionally by the caller,
// subject to the caller's own quarantine check (quarantine blocks English
// too, per P4, but that has no report-freshness or protocol dimension for
// this function to usefully evaluate).
//
// Quarantined is checked last, not first: a quarantined agent whose
// pending send would anyway be protocol_not_registered or report_overdue
// still accrues that violation (this is how a quarantined agent reaches
// Disabled — spec.md §8 S5). Only a send that would otherwise be Allowed
// is turned into a quarantine rejection, with no violation recorded.
func (e *Evaluator) Evaluate(state *registry.AgentState, now time.Time) Verdict {
	if state.Enforcement.State == enforcement.Disabled {
		return Verdict{Kind: Disabled, Reason: "agent_disabled"}
	}

	if state.Protocol == nil {
		return Verdict{Kind: ProtocolMissing, Reason: "protocol_not_registered"}
	}

	interval, everyN := e.Thresholds(state.Protocol)

	overdue := false
	switch {
	// Pending novel traffic with the window never started tracking is an
	// inconsistent-state safety net (e.g. restored state); this never
	// fires during normal operation, since NovelTotalInWindow and
	// WindowStartTs are always set together (spec.md §4.5 step 7).
	case state.WindowStartTs.IsZero() && state.LastReportAcceptedTs == nil && state.NovelTotalInWindow > 0:
		overdue = true
	case !state.WindowStartTs.IsZero() && now.Sub(state.WindowStartTs) > interval:
		overdue = true
	case state.MessagesSinceReport+1 > everyN:
		overdue = true
	}
	if overdue {
		return Verdict{Kind: ReportRequired, Reason: "report_overdue"}
	}

	if state.Enforcement.State == enforcement.Quarantined {
		return Verdict{Kind: Quarantined, Reason: "agent_quarantined"}
	}

	return Verdict{Kind: Allowed}
}
