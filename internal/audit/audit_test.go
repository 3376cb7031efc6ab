package audit

import (
	"context"
	"testing"
)

func TestAppendOrderingMatchesPerAgentSequence(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	first, _ := log.Append(ctx, Event{Type: MsgAccepted, AgentID: "a1"})
	second, _ := log.Append(ctx, Event{Type: ReportAccepted, AgentID: "a1"})

	if second.Seq <= first.Seq {
		t.Fatalf("expected strictly increasing Seq, got %d then %d", first.Seq, second.Seq)
	}
	if second.PrevHash != first.Hash {
		t.Fatal("expected hash chain: second event's PrevHash must equal first event's Hash")
	}

	events := log.Query(Filter{AgentID: "a1"})
	if len(events) != 2 || events[0].Type != MsgAccepted || events[1].Type != ReportAccepted {
		t.Fatalf("expected append-ordered [msg_accepted, report_accepted], got %+v", events)
	}
}

func TestQueryFiltersByAgent(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	_, _ = log.Append(ctx, Event{Type: MsgAccepted, AgentID: "a1"})
	_, _ = log.Append(ctx, Event{Type: MsgAccepted, AgentID: "a2"})

	a1Events := log.Query(Filter{AgentID: "a1"})
	if len(a1Events) != 1 {
		t.Fatalf("expected 1 event for a1, got %d", len(a1Events))
	}

	all := log.Query(Filter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 events total, got %d", len(all))
	}
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Write(ctx context.Context, e Event) error {
	s.events = append(s.events, e)
	return nil
}

func TestAppendMirrorsToSinks(t *testing.T) {
	sink := &recordingSink{}
	log := NewMemoryLog(sink)
	_, _ = log.Append(context.Background(), Event{Type: MsgAccepted, AgentID: "a1"})

	if len(sink.events) != 1 {
		t.Fatalf("expected sink to receive 1 mirrored event, got %d", len(sink.events))
	}
}

func TestQueryRespectsLimit(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = log.Append(ctx, Event{Type: MsgAccepted, AgentID: "a1"})
	}
	limited := log.Query(Filter{AgentID: "a1", Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected 2 events with Limit=2, got %d", len(limited))
	}
}
