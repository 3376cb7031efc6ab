// Package enforcement implements the gateway's progressive-enforcement
// state machine (spec.md §4.6): Active -> Throttled -> Quarantined ->
// Disabled, driven by a violation counter with a time-based cooldown.
//
// The shape is adapted from the teacher's circuitbreaker.Breaker: its
// Closed/Open/Half-Open states and Counts-based trip logic map onto
// Active/Throttled/Quarantined/Disabled with a violation counter standing
// in for the breaker's failure ratio. Disabled has no automatic recovery
// transition, unlike the breaker's timeout-driven Open -> Half-Open probe
// — that is the one place this machine intentionally diverges from its
// model, because the policy this machine enforces treats Disabled as
// terminal absent an out-of-band admin action.
package enforcement

import "time"

// State is an agent's current gating level.
type State int

const (
	Active State = iota
	Throttled
	Quarantined
	Disabled
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Throttled:
		return "throttled"
	case Quarantined:
		return "quarantined"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Machine is the per-agent enforcement state. It has no mutex of its own:
// callers hold the owning agent's lock (internal/registry) for the
// duration of any mutation.
type Machine struct {
	State           State
	ViolationCount  int
	LastViolationTs time.Time

	throttleWindowStart time.Time
	throttleCount       int
}

// Transition describes what RecordViolation did, for audit logging.
type Transition struct {
	Occurred bool
	From     State
	To       State
}

// RecordViolation increments the violation counter and applies the
// violation_count -> enforcement table from spec.md §4.6:
//
//	1            -> Throttled
//	2            -> Quarantined
//	>= maxViol   -> Disabled (terminal)
//
// A no-op (zero Transition) is returned if the machine is already
// Disabled, since that state never advances further here.
func (m *Machine) RecordViolation(now time.Time, maxViolations int) Transition {
	if m.State == Disabled {
		return Transition{}
	}

	from := m.State
	m.ViolationCount++
	m.LastViolationTs = now

	switch {
	case m.ViolationCount >= maxViolations:
		m.State = Disabled
	case m.ViolationCount == 2:
		m.State = Quarantined
	case m.ViolationCount == 1:
		m.State = Throttled
	}

	if m.State == from {
		return Transition{}
	}
	return Transition{Occurred: true, From: from, To: m.State}
}

// CheckCooldown lazily evaluates the cooldown rule (spec.md §4.6): if
// cooldown has elapsed since the last violation AND at least one report
// has been accepted since that violation, the violation counter resets
// and enforcement returns to Active. Never recovers a Disabled agent —
// that requires an out-of-band admin action outside this core's scope.
func (m *Machine) CheckCooldown(now time.Time, lastReportAcceptedTs *time.Time, cooldown time.Duration) Transition {
	if m.State == Disabled || m.State == Active {
		return Transition{}
	}
	if m.ViolationCount == 0 || m.LastViolationTs.IsZero() {
		return Transition{}
	}
	if now.Sub(m.LastViolationTs) < cooldown {
		return Transition{}
	}
	if lastReportAcceptedTs == nil || !lastReportAcceptedTs.After(m.LastViolationTs) {
		return Transition{}
	}

	from := m.State
	m.ViolationCount = 0
	m.State = Active
	m.throttleCount = 0
	return Transition{Occurred: true, From: from, To: Active}
}

// AllowThrottled applies the Throttled-state rate limit: at most `rate`
// novel messages per `window`. Call only when State == Throttled; returns
// false if the current window's quota is exhausted.
func (m *Machine) AllowThrottled(now time.Time, rate int, window time.Duration) bool {
	if now.Sub(m.throttleWindowStart) >= window {
		m.throttleWindowStart = now
		m.throttleCount = 0
	}
	if m.throttleCount >= rate {
		return false
	}
	m.throttleCount++
	return true
}
