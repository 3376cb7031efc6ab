// Supabase durable audit sink, grounded on internal/database/supabase.go's
// use of github.com/supabase-community/supabase-go to insert rows into a
// managed Postgres table via the REST API rather than a raw driver
// connection.
package audit

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseSink mirrors audit events into a Supabase table named
// "audit_events" via the project's REST API.
type SupabaseSink struct {
	client *supabase.Client
}

// NewSupabaseSink builds a sink against projectURL using apiKey (the
// service-role key, since audit writes must bypass row-level security).
func NewSupabaseSink(projectURL, apiKey string) (*SupabaseSink, error) {
	client, err := supabase.NewClient(projectURL, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("audit: create supabase client: %w", err)
	}
	return &SupabaseSink{client: client}, nil
}

// Write implements Sink.
func (s *SupabaseSink) Write(ctx context.Context, e Event) error {
	row := map[string]interface{}{
		"seq":          e.Seq,
		"ts":           e.Timestamp,
		"event_type":   string(e.Type),
		"agent_id":     e.AgentID,
		"protocol_ref": e.ProtocolRef,
		"reason":       e.Reason,
		"details":      e.Details,
		"hash":         e.Hash,
		"prev_hash":    e.PrevHash,
	}

	_, _, err := s.client.From("audit_events").Insert(row, false, "", "", "").ExecuteString()
	if err != nil {
		return fmt.Errorf("audit: supabase insert: %w", err)
	}
	return nil
}
