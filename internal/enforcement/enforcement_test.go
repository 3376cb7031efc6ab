package enforcement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordViolationProgression(t *testing.T) {
	var m Machine
	now := time.Unix(1000, 0)

	tr := m.RecordViolation(now, 3)
	require.True(t, tr.Occurred, "1st violation should transition")
	assert.Equal(t, Throttled, tr.To)

	tr = m.RecordViolation(now.Add(time.Minute), 3)
	require.True(t, tr.Occurred, "2nd violation should transition")
	assert.Equal(t, Quarantined, tr.To)

	tr = m.RecordViolation(now.Add(2*time.Minute), 3)
	require.True(t, tr.Occurred, "3rd violation should transition")
	assert.Equal(t, Disabled, tr.To)

	// P5: once Disabled, further violations are no-ops.
	tr = m.RecordViolation(now.Add(3*time.Minute), 3)
	assert.False(t, tr.Occurred, "expected no further transitions once Disabled")
	assert.Equal(t, Disabled, m.State)
}

func TestCheckCooldownRecoversToActive(t *testing.T) {
	var m Machine
	start := time.Unix(1000, 0)
	m.RecordViolation(start, 3) // -> Throttled, violation_count=1

	cooldown := 24 * time.Hour
	reportTs := start.Add(time.Hour) // accepted after the violation

	// Too early: cooldown not yet elapsed.
	tr := m.CheckCooldown(start.Add(time.Hour), &reportTs, cooldown)
	assert.False(t, tr.Occurred, "expected no cooldown recovery before the cooldown window elapses")

	// Cooldown elapsed, report accepted since the violation.
	later := start.Add(25 * time.Hour)
	tr = m.CheckCooldown(later, &reportTs, cooldown)
	require.True(t, tr.Occurred)
	assert.Equal(t, Active, tr.To)
	assert.Zero(t, m.ViolationCount)
}

func TestCheckCooldownRequiresAcceptedReportSinceViolation(t *testing.T) {
	var m Machine
	start := time.Unix(1000, 0)
	m.RecordViolation(start, 3)

	cooldown := 24 * time.Hour
	staleReportTs := start.Add(-time.Hour) // accepted BEFORE the violation — doesn't count

	tr := m.CheckCooldown(start.Add(25*time.Hour), &staleReportTs, cooldown)
	assert.False(t, tr.Occurred, "expected no recovery: last accepted report predates the violation")
	assert.Equal(t, Throttled, m.State)
}

func TestCheckCooldownNeverRecoversDisabled(t *testing.T) {
	var m Machine
	start := time.Unix(1000, 0)
	m.RecordViolation(start, 1) // maxViolations=1 -> immediately Disabled

	reportTs := start.Add(time.Hour)
	tr := m.CheckCooldown(start.Add(100*time.Hour), &reportTs, time.Hour)
	assert.False(t, tr.Occurred, "Disabled must never recover via cooldown")
}

func TestAllowThrottledRateLimit(t *testing.T) {
	var m Machine
	now := time.Unix(1000, 0)

	assert.True(t, m.AllowThrottled(now, 1, 5*time.Second), "first message in window should be allowed")
	assert.False(t, m.AllowThrottled(now.Add(time.Second), 1, 5*time.Second), "second message in same window should be rejected at rate=1")
	assert.True(t, m.AllowThrottled(now.Add(6*time.Second), 1, 5*time.Second), "message in next window should be allowed")
}
