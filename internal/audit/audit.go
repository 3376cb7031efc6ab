// Package audit implements the gateway's append-only audit trail
// (spec.md §4.2). The in-memory Log is the source of truth for ordering
// guarantees; everything else (Postgres/Supabase/Redis sinks) is an
// optional durable mirror that receives a copy of each event and is never
// consulted for compliance decisions.
//
// Grounded on the teacher's internal/evidence.EvidenceVault: hash-chained,
// append-only record store with per-agent filtering, adapted here from
// escrow evidence types to the gateway's own event taxonomy.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// EventType enumerates the audit event kinds from spec.md §6.
type EventType string

const (
	ProtocolRegistered EventType = "protocol_registered"
	ReportAccepted     EventType = "report_accepted"
	ReportRejected     EventType = "report_rejected"
	MsgAccepted        EventType = "msg_accepted"
	MsgRejected        EventType = "msg_rejected"
	ViolationRecorded  EventType = "violation_recorded"
	AgentThrottled     EventType = "agent_throttled"
	AgentQuarantined   EventType = "agent_quarantined"
	AgentDisabled      EventType = "agent_disabled"
)

// Event is one structured audit record.
type Event struct {
	Seq         uint64                 `json:"seq"`
	Timestamp   time.Time              `json:"timestamp"`
	Type        EventType              `json:"event_type"`
	AgentID     string                 `json:"agent_id"`
	ProtocolRef string                 `json:"protocol_ref,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`

	Hash     string `json:"hash"`
	PrevHash string `json:"previous_hash,omitempty"`
}

// computeHash hashes every field except Hash itself, chaining each event
// to the one before it — the same tamper-evidence technique as the
// teacher's EvidenceRecord.ComputeHash.
func (e Event) computeHash() string {
	cp := e
	cp.Hash = ""
	data, _ := json.Marshal(cp)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sink receives a copy of every appended event for optional durable
// mirroring (Postgres/Supabase/Redis). Sinks never gate or reorder
// events; failures are logged by the caller, not returned to handlers.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Log is the audit log contract: append-ordering must match the
// real-time order of handler decisions for a single agent (spec.md §4.2).
type Log interface {
	Append(ctx context.Context, e Event) (Event, error)
	Query(filter Filter) []Event
}

// Filter selects events for Query.
type Filter struct {
	AgentID string // empty matches all agents
	Limit   int    // 0 means unlimited
}

// MemoryLog is the default in-memory, append-only audit log.
type MemoryLog struct {
	mu       sync.Mutex
	events   []Event
	byAgent  map[string][]int // agent_id -> indices into events
	lastHash string
	seq      uint64
	sinks    []Sink
}

// NewMemoryLog creates an empty in-memory audit log, optionally mirroring
// every append to the given sinks.
func NewMemoryLog(sinks ...Sink) *MemoryLog {
	return &MemoryLog{
		byAgent: make(map[string][]int),
		sinks:   sinks,
	}
}

// Append records e, stamping Seq/Timestamp/Hash/PrevHash, and forwards a
// copy to every configured sink. Never mutates or deletes a prior event.
func (l *MemoryLog) Append(ctx context.Context, e Event) (Event, error) {
	l.mu.Lock()
	e.Seq = l.seq + 1
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.PrevHash = l.lastHash
	e.Hash = e.computeHash()

	l.seq = e.Seq
	l.lastHash = e.Hash
	idx := len(l.events)
	l.events = append(l.events, e)
	l.byAgent[e.AgentID] = append(l.byAgent[e.AgentID], idx)
	l.mu.Unlock()

	for _, sink := range l.sinks {
		// best-effort mirror; source of truth is in-memory
		if err := sink.Write(ctx, e); err != nil {
			slog.Warn("audit: sink write failed", "seq", e.Seq, "error", err)
		}
	}

	return e, nil
}

// Query returns events matching filter in append order.
func (l *MemoryLog) Query(filter Filter) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var indices []int
	if filter.AgentID != "" {
		indices = l.byAgent[filter.AgentID]
	} else {
		indices = make([]int, len(l.events))
		for i := range l.events {
			indices[i] = i
		}
	}

	out := make([]Event, 0, len(indices))
	for _, idx := range indices {
		out = append(out, l.events[idx])
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}
