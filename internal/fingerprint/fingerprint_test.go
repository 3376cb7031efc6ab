package fingerprint

import (
	"testing"
	"time"
)

func TestNewIsWellFormedHex(t *testing.T) {
	id := New("agent-1", time.Unix(1000, 0), "X9|st=17")
	if len(id) != 64 {
		t.Fatalf("expected 64 hex chars (sha256), got %d: %s", len(id), id)
	}
}

func TestNewNeverCollidesOnIdenticalInput(t *testing.T) {
	ts := time.Unix(1000, 0)
	a := New("agent-1", ts, "same content")
	b := New("agent-1", ts, "same content")
	if a == b {
		t.Fatal("expected distinct fingerprints for identical (agent, ts, content) due to random salt")
	}
}
