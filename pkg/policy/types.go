package policy

import (
	"conductor-hq/tollbooth/pkg/receipt"
)

// Request is one decision request: a subject asking to perform an action.
type Request struct {
	// Subject is who is requesting the action.
	Subject string `json:"subject"`

	// Action is the operation string, e.g. "write:/payments" or
	// "read:/users".
	Action string `json:"action"`

	// PayloadHash is the caller-computed hash of the request payload,
	// recorded on the receipt for later verification.
	PayloadHash string `json:"payload_hash"`

	// ReceiptID optionally pins the receipt id. Callers retrying after a
	// persistence failure reuse the id so the audit trail never gains a
	// duplicate entry.
	ReceiptID string `json:"-"`
}

// Decision is the computed outcome of one evaluation. It is produced fresh
// per call and never mutated.
type Decision struct {
	// Outcome is ALLOW, DENY, or REQUIRE_APPROVAL.
	Outcome receipt.Outcome `json:"outcome"`

	// MatchedRules lists the rule keys that fired, in precedence order.
	// Empty for load-based escalation and for the default allow.
	MatchedRules []RuleKey `json:"matched_rules"`

	// Reason is the human-readable explanation. Its text distinguishes
	// policy-based escalation from load-based escalation.
	Reason string `json:"reason"`
}
