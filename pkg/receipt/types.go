package receipt

import (
	"context"
	"time"
)

// Outcome is the decision recorded on a receipt.
type Outcome string

const (
	// OutcomeAllow permits the action.
	OutcomeAllow Outcome = "ALLOW"

	// OutcomeDeny rejects the action.
	OutcomeDeny Outcome = "DENY"

	// OutcomeRequireApproval defers the action to human approval.
	OutcomeRequireApproval Outcome = "REQUIRE_APPROVAL"

	// OutcomePolicyChange marks an audit receipt for a rule toggle.
	OutcomePolicyChange Outcome = "POLICY_CHANGE"
)

// Valid reports whether the outcome is one of the recognized values.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAllow, OutcomeDeny, OutcomeRequireApproval, OutcomePolicyChange:
		return true
	}
	return false
}

// Receipt is an immutable, signed record of one decision. No field may
// change once the receipt is persisted.
type Receipt struct {
	// ID is a globally unique identifier (UUID v4).
	ID string `json:"id"`

	// Subject is who requested the action (agent id, user id, actor).
	Subject string `json:"subject"`

	// Action is what was requested, e.g. "write:/payments".
	Action string `json:"action"`

	// Decision is the recorded outcome.
	Decision Outcome `json:"decision"`

	// Rules lists the rule keys that fired, in evaluation order.
	Rules []string `json:"rules"`

	// Reason is the human-readable explanation of the decision.
	Reason string `json:"reason"`

	// PayloadHash is the hash of the originating request payload,
	// e.g. "sha256:ab12...".
	PayloadHash string `json:"payload_hash"`

	// Metadata is the numeric snapshot taken at decision time, typically
	// the unit's λ/μ/ρ.
	Metadata map[string]float64 `json:"metadata"`

	// Signature is the signed token binding the receipt fields.
	Signature string `json:"signature"`

	// CreatedAt is when the decision was made.
	CreatedAt time.Time `json:"created_at"`
}

// IsAllowed reports whether the action was allowed.
func (r *Receipt) IsAllowed() bool { return r.Decision == OutcomeAllow }

// IsDenied reports whether the action was denied.
func (r *Receipt) IsDenied() bool { return r.Decision == OutcomeDeny }

// RequiresApproval reports whether the action was deferred to approval.
func (r *Receipt) RequiresApproval() bool { return r.Decision == OutcomeRequireApproval }

// IsPolicyChange reports whether the receipt documents a rule toggle.
func (r *Receipt) IsPolicyChange() bool { return r.Decision == OutcomePolicyChange }

// IsSigned reports whether the receipt carries a signature token.
func (r *Receipt) IsSigned() bool { return r.Signature != "" }

// Query defines filter parameters for receipt lookups. Results are always
// returned newest-first.
type Query struct {
	// Subject filters by the requesting subject.
	Subject string `json:"subject,omitempty"`

	// Decision filters by outcome.
	Decision Outcome `json:"decision,omitempty"`

	// Action filters by action string.
	Action string `json:"action,omitempty"`

	// Since is the inclusive start of the time window.
	Since *time.Time `json:"since,omitempty"`

	// Until is the inclusive end of the time window.
	Until *time.Time `json:"until,omitempty"`

	// Limit caps the number of records returned. Zero applies the
	// storage default.
	Limit int `json:"limit,omitempty"`

	// Offset skips the first N records for pagination.
	Offset int `json:"offset,omitempty"`
}

// Storage is the persistence interface for receipts. Implementations must
// be safe for concurrent use. The interface deliberately exposes no update
// operation: receipts are write-once.
type Storage interface {
	// StoreReceipt persists a receipt. Storing an id that already exists
	// is a no-op, which makes caller-side retries with a fixed id
	// idempotent; the stored record is never overwritten.
	StoreReceipt(ctx context.Context, r *Receipt) error

	// GetReceipt returns the receipt with the given id, or ErrNotFound.
	GetReceipt(ctx context.Context, id string) (*Receipt, error)

	// QueryReceipts returns receipts matching the query, newest first.
	QueryReceipts(ctx context.Context, q *Query) ([]*Receipt, error)

	// CountReceipts returns the number of receipts matching the query.
	CountReceipts(ctx context.Context, q *Query) (int64, error)
}
