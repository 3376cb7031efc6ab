// Package metrics defines the gateway's Prometheus metric set
// (spec.md §6) and the small recording API handlers call into.
//
// Grounded on internal/escrow/metrics.go: a plain struct of
// promauto-registered CounterVec/GaugeVec fields, built once in
// New/NewWithRegisterer and updated by narrow Record*/SetComplianceStatus
// methods rather than exposing the raw vectors to callers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EnforcementState mirrors enforcement.State's ordinal values for the
// agent_compliance_status gauge (0 Active, 1 Throttled, 2 Quarantined,
// 3 Disabled), avoiding an import of internal/enforcement here so metrics
// stays a leaf package.
type EnforcementState int

const (
	StateActive EnforcementState = iota
	StateThrottled
	StateQuarantined
	StateDisabled
)

// Metrics holds every Prometheus metric the gateway exports.
type Metrics struct {
	EnglishMessages        *prometheus.CounterVec
	NovelMessages          *prometheus.CounterVec
	ReportsSubmitted       *prometheus.CounterVec
	ReportsRejected        *prometheus.CounterVec
	ComplianceViolations   *prometheus.CounterVec
	AgentComplianceStatus  *prometheus.GaugeVec
}

// New creates and registers every metric against the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates and registers every metric against reg,
// letting tests use a private prometheus.NewRegistry() instead of the
// global default (which panics on duplicate registration across tests).
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EnglishMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "english_messages_total",
				Help: "Total number of English-language messages admitted.",
			},
			[]string{"agent_id"},
		),
		NovelMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "novel_messages_total",
				Help: "Total number of novel-language messages admitted.",
			},
			[]string{"agent_id"},
		),
		ReportsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_submitted_total",
				Help: "Total number of English reports accepted.",
			},
			[]string{"agent_id"},
		),
		ReportsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_rejected_total",
				Help: "Total number of English reports rejected, by reason.",
			},
			[]string{"agent_id", "reason"},
		),
		ComplianceViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_violations_total",
				Help: "Total number of gating violations recorded, by severity.",
			},
			[]string{"agent_id", "severity"},
		),
		AgentComplianceStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agent_compliance_status",
				Help: "Current enforcement state per agent (0 Active, 1 Throttled, 2 Quarantined, 3 Disabled).",
			},
			[]string{"agent_id"},
		),
	}
}

// RecordEnglishMessage increments the English message counter for agentID.
func (m *Metrics) RecordEnglishMessage(agentID string) {
	m.EnglishMessages.WithLabelValues(agentID).Inc()
}

// RecordNovelMessage increments the novel message counter for agentID.
func (m *Metrics) RecordNovelMessage(agentID string) {
	m.NovelMessages.WithLabelValues(agentID).Inc()
}

// RecordReportSubmitted increments the accepted-report counter for agentID.
func (m *Metrics) RecordReportSubmitted(agentID string) {
	m.ReportsSubmitted.WithLabelValues(agentID).Inc()
}

// RecordReportRejected increments the rejected-report counter for agentID,
// tagged with the machine reason code.
func (m *Metrics) RecordReportRejected(agentID, reason string) {
	m.ReportsRejected.WithLabelValues(agentID, reason).Inc()
}

// RecordViolation increments the violation counter for agentID, tagged
// with the resulting enforcement severity.
func (m *Metrics) RecordViolation(agentID, severity string) {
	m.ComplianceViolations.WithLabelValues(agentID, severity).Inc()
}

// SetComplianceStatus sets the agent_compliance_status gauge for agentID.
func (m *Metrics) SetComplianceStatus(agentID string, state EnforcementState) {
	m.AgentComplianceStatus.WithLabelValues(agentID).Set(float64(state))
}
