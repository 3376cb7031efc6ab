// Package domain holds the wire-level data model shared across the
// registry, evaluator, and gateway handlers: ProtocolDescriptor and
// EnglishReport, per spec.md §3.
package domain

import "github.com/novelang/gateway/internal/config"

// ProtocolDescriptor is the identity and metadata of a non-English
// encoding scheme an agent wants to use.
type ProtocolDescriptor struct {
	Name               string         `json:"name"`
	Version            string         `json:"version"`
	Purpose            string         `json:"purpose"`
	Scope              string         `json:"scope"`
	RiskTier           config.RiskTier `json:"risk_tier"`
	TranslationMethod  string         `json:"translation_method"`
}

// Key returns the (name, version) identity tuple as a single string, used
// for matching protocol references on send/report.
func (p ProtocolDescriptor) Key() string {
	return p.Name + ":" + p.Version
}

// Matches reports whether ref (name, version) identifies this protocol.
func (p ProtocolDescriptor) Matches(name, version string) bool {
	return p.Name == name && p.Version == version
}

// EnglishReport is a declaration covering novel-language messages sent by
// an agent during a compliance window.
type EnglishReport struct {
	AgentID         string   `json:"agent_id"`
	ProtocolName    string   `json:"protocol_name"`
	ProtocolVersion string   `json:"protocol_version"`
	WindowStartTs   float64  `json:"window_start_ts"`
	WindowEndTs     float64  `json:"window_end_ts"`
	MessageIDs      []string `json:"message_ids"`
	EnglishSummary  string   `json:"english_summary"`
	Coverage        float64  `json:"coverage"`
	SelfConfidence  float64  `json:"self_confidence"`
	Notes           string   `json:"notes,omitempty"`
}
