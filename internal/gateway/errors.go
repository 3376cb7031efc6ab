// Package gateway implements the three request handlers that form the
// HTTP-surfaced contract of the compliance state machine (spec.md §4.3,
// §4.4, §4.5): register-protocol, submit-report, send-message.
//
// Grounded on internal/handlers/governance.go: handlers built as closures
// over their collaborators (classifier, evaluator, registry, audit log,
// event bus, webhook dispatcher), parsing JSON, honoring a per-request
// timeout, and responding through a single error-writing helper rather
// than scattering http.Error calls.
package gateway

import (
	"encoding/json"
	"net/http"
)

// gatewayError is a machine-readable rejection, carrying the HTTP status
// to respond with, the machine reason code (spec.md §7), and a
// human-readable detail string.
type gatewayError struct {
	Status int
	Code   string
	Detail string
}

func (e *gatewayError) Error() string { return e.Code + ": " + e.Detail }

// Machine error codes, exactly as enumerated in spec.md §7.
const (
	codeMalformedRequest        = "malformed_request"
	codeSummaryTooShort         = "summary_too_short"
	codeCoverageBelowMinimum    = "coverage_below_minimum"
	codeInvalidTimestamp        = "invalid_timestamp"
	codeInvalidRiskTier         = "invalid_risk_tier"
	codeSelfConfidenceOutOfRange = "self_confidence_out_of_range"

	codeProtocolNotRegistered = "protocol_not_registered"
	codeProtocolMismatch      = "protocol_mismatch"
	codeAgentQuarantined      = "agent_quarantined"
	codeAgentDisabled         = "agent_disabled"

	codeReportOverdue = "report_overdue"
	codeThrottled      = "throttled"

	codeInternalError = "internal_error"
)

func badRequest(code, detail string) *gatewayError {
	return &gatewayError{Status: http.StatusBadRequest, Code: code, Detail: detail}
}

func forbidden(code, detail string) *gatewayError {
	return &gatewayError{Status: http.StatusForbidden, Code: code, Detail: detail}
}

func tooManyRequests(code, detail string) *gatewayError {
	return &gatewayError{Status: http.StatusTooManyRequests, Code: code, Detail: detail}
}

func internalError(detail string) *gatewayError {
	return &gatewayError{Status: http.StatusInternalServerError, Code: codeInternalError, Detail: detail}
}

// errorResponse is the JSON body for every non-2xx response (spec.md §6).
type errorResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, gerr *gatewayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gerr.Status)
	json.NewEncoder(w).Encode(errorResponse{OK: false, Reason: gerr.Code, Detail: gerr.Detail})
}

func writeOK(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
