// Command demoagent narrates the gateway's end-to-end scenarios against a
// running gatewayd instance, using pkg/agentsdk the way a real embedding
// agent would.
//
// Grounded on scripts/simulate_agent.go: a narrated fmt.Println walkthrough
// of a single agent's interaction with a trust service, ending in
// log.Fatalf on an unexpected rejection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/novelang/gateway/pkg/agentsdk"
)

func main() {
	gatewayURL := flag.String("gateway", "http://localhost:8080", "base URL of a running gatewayd")
	flag.Parse()

	client := agentsdk.NewClient(agentsdk.Config{GatewayURL: *gatewayURL})
	ctx := context.Background()

	fmt.Println("novelang demo agent starting against", *gatewayURL)

	runHappyPath(ctx, client)
	runUnregisteredNovel(ctx, client)
	runReportOverdueByCount(ctx, client)
	runCoverageFailure(ctx, client)
	runProgressionToDisabled(ctx, client)

	fmt.Println("\nall scenarios complete.")
}

// runHappyPath: register a protocol, send English then novel content, then
// submit a covering report.
func runHappyPath(ctx context.Context, c *agentsdk.Client) {
	fmt.Println("\n== scenario: happy path ==")

	pd := agentsdk.ProtocolDescriptor{Name: "p", Version: "1", Purpose: "x", Scope: "y", RiskTier: "low", TranslationMethod: "m"}
	if _, err := c.RegisterProtocol(ctx, "a1", pd); err != nil {
		log.Fatalf("register_protocol_for_agent: %v", err)
	}
	fmt.Println("protocol registered for a1")

	if _, err := c.SendMessage(ctx, "a1", "a2", "Hello there friend", nil, nil); err != nil {
		log.Fatalf("english send: %v", err)
	}
	fmt.Println("english message accepted")

	ref := &agentsdk.ProtocolRef{Name: "p", Version: "1"}
	resp, err := c.SendMessage(ctx, "a1", "a2", "X9|st=17", ref, nil)
	if err != nil {
		log.Fatalf("novel send: %v", err)
	}
	fmt.Println("novel message accepted, message_id:", resp.MessageID)

	report := agentsdk.Report{
		AgentID:         "a1",
		ProtocolName:    "p",
		ProtocolVersion: "1",
		MessageIDs:      []string{resp.MessageID},
		EnglishSummary:  "Sent one state update: st=17 meaning task seventeen.",
		Coverage:        1.0,
		SelfConfidence:  0.9,
	}
	if _, err := c.SubmitReport(ctx, report); err != nil {
		log.Fatalf("report: %v", err)
	}
	fmt.Println("report accepted, a1 remains Active")
}

// runUnregisteredNovel: a fresh agent's first novel send with no protocol
// registered is rejected and throttled.
func runUnregisteredNovel(ctx context.Context, c *agentsdk.Client) {
	fmt.Println("\n== scenario: unregistered novel ==")

	_, err := c.SendMessage(ctx, "a2", "a3", "X9|k=1", nil, nil)
	gerr, ok := err.(*agentsdk.GatewayError)
	if !ok {
		log.Fatalf("expected a gateway rejection, got: %v", err)
	}
	fmt.Printf("send rejected as expected: %s (%s)\n", gerr.Response.Reason, gerr.Response.Detail)
	fmt.Println("a2 is now Throttled")
}

// runReportOverdueByCount: send up to the per-window novel budget, then one
// more without an intervening report to trigger report_overdue.
func runReportOverdueByCount(ctx context.Context, c *agentsdk.Client) {
	fmt.Println("\n== scenario: report overdue by count ==")

	pd := agentsdk.ProtocolDescriptor{Name: "p", Version: "1", Purpose: "x", Scope: "y", RiskTier: "medium", TranslationMethod: "m"}
	if _, err := c.RegisterProtocol(ctx, "a3", pd); err != nil {
		log.Fatalf("register_protocol_for_agent: %v", err)
	}

	ref := &agentsdk.ProtocolRef{Name: "p", Version: "1"}
	for i := 0; i < 25; i++ {
		if _, err := c.SendMessage(ctx, "a3", "a4", "X9|k=1", ref, nil); err != nil {
			log.Fatalf("novel send %d: %v", i+1, err)
		}
	}
	fmt.Println("25 novel messages accepted for a3")

	_, err := c.SendMessage(ctx, "a3", "a4", "X9|k=1", ref, nil)
	gerr, ok := err.(*agentsdk.GatewayError)
	if !ok {
		log.Fatalf("expected report_overdue rejection, got: %v", err)
	}
	fmt.Printf("26th send rejected as expected: %s\n", gerr.Response.Reason)
	fmt.Println("a3 is now Throttled")
}

// runCoverageFailure: submit a report that omits pending fingerprints and
// under-reports coverage; the gateway rejects it and leaves state unchanged.
func runCoverageFailure(ctx context.Context, c *agentsdk.Client) {
	fmt.Println("\n== scenario: coverage failure ==")

	pd := agentsdk.ProtocolDescriptor{Name: "p", Version: "1", Purpose: "x", Scope: "y", RiskTier: "low", TranslationMethod: "m"}
	if _, err := c.RegisterProtocol(ctx, "a5", pd); err != nil {
		log.Fatalf("register_protocol_for_agent: %v", err)
	}

	ref := &agentsdk.ProtocolRef{Name: "p", Version: "1"}
	var ids []string
	for i := 0; i < 4; i++ {
		resp, err := c.SendMessage(ctx, "a5", "a6", "X9|k=1", ref, nil)
		if err != nil {
			log.Fatalf("novel send %d: %v", i+1, err)
		}
		ids = append(ids, resp.MessageID)
	}
	fmt.Println("4 novel messages accepted for a5")

	report := agentsdk.Report{
		AgentID:         "a5",
		ProtocolName:    "p",
		ProtocolVersion: "1",
		MessageIDs:      ids[:2],
		EnglishSummary:  "Partial summary of two state updates.",
		Coverage:        0.5,
		SelfConfidence:  0.9,
	}
	_, err := c.SubmitReport(ctx, report)
	gerr, ok := err.(*agentsdk.GatewayError)
	if !ok {
		log.Fatalf("expected coverage_below_minimum rejection, got: %v", err)
	}
	fmt.Printf("report rejected as expected: %s\n", gerr.Response.Reason)
}

// runProgressionToDisabled: accumulate three distinct violations for one
// agent within an hour and confirm the terminal Disabled state rejects
// even a subsequent registration attempt.
func runProgressionToDisabled(ctx context.Context, c *agentsdk.Client) {
	fmt.Println("\n== scenario: progression to disabled ==")

	pd := agentsdk.ProtocolDescriptor{Name: "p", Version: "1", Purpose: "x", Scope: "y", RiskTier: "critical", TranslationMethod: "m"}
	if _, err := c.RegisterProtocol(ctx, "a7", pd); err != nil {
		log.Fatalf("register_protocol_for_agent: %v", err)
	}

	ref := &agentsdk.ProtocolRef{Name: "p", Version: "1"}
	var lastReason string
	for violation := 1; violation <= 3; violation++ {
		for i := 0; i < 6; i++ {
			_, err := c.SendMessage(ctx, "a7", "a8", "X9|k=1", ref, nil)
			if err == nil {
				continue
			}
			gerr, ok := err.(*agentsdk.GatewayError)
			if !ok {
				log.Fatalf("unexpected transport error: %v", err)
			}
			lastReason = gerr.Response.Reason
			fmt.Printf("violation %d recorded: %s\n", violation, lastReason)
			break
		}
	}

	if lastReason != "agent_disabled" {
		log.Fatalf("expected the third violation to disable a7, last reason was %s", lastReason)
	}
	fmt.Println("a7 is now Disabled")

	if _, err := c.RegisterProtocol(ctx, "a7", pd); err == nil {
		log.Fatalf("expected registration for a disabled agent to be rejected")
	}
	fmt.Println("registration for a7 correctly rejected: agent is terminally disabled")
}
