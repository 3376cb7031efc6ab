package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() *Metrics {
	return NewWithRegisterer(prometheus.NewRegistry())
}

func TestRecordEnglishMessageIncrements(t *testing.T) {
	m := newTestMetrics()
	m.RecordEnglishMessage("a1")
	m.RecordEnglishMessage("a1")

	got := testutil.ToFloat64(m.EnglishMessages.WithLabelValues("a1"))
	if got != 2 {
		t.Fatalf("expected counter 2, got %v", got)
	}
}

func TestRecordReportRejectedTagsReason(t *testing.T) {
	m := newTestMetrics()
	m.RecordReportRejected("a1", "coverage_below_minimum")

	got := testutil.ToFloat64(m.ReportsRejected.WithLabelValues("a1", "coverage_below_minimum"))
	if got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestSetComplianceStatusReflectsState(t *testing.T) {
	m := newTestMetrics()
	m.SetComplianceStatus("a1", StateQuarantined)

	got := testutil.ToFloat64(m.AgentComplianceStatus.WithLabelValues("a1"))
	if got != 2 {
		t.Fatalf("expected gauge 2 for StateQuarantined, got %v", got)
	}
}
