package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conductor-hq/tollbooth/pkg/receipt"
)

// RuleKey identifies one of the fixed policy rules.
type RuleKey string

const (
	// RuleWritesRequireApproval gates all writes behind approval.
	RuleWritesRequireApproval RuleKey = "writes_require_approval"

	// RuleReadOnlyForRisky denies writes to units at the read_only
	// protection level.
	RuleReadOnlyForRisky RuleKey = "read_only_for_risky"
)

// RuleKeys lists all recognized rule keys in stable order.
func RuleKeys() []RuleKey {
	return []RuleKey{RuleReadOnlyForRisky, RuleWritesRequireApproval}
}

// Valid reports whether the key is one of the recognized rules.
func (k RuleKey) Valid() bool {
	switch k {
	case RuleWritesRequireApproval, RuleReadOnlyForRisky:
		return true
	}
	return false
}

// Rule is the persisted state of one policy rule. Keys are unique; rules
// are created once at bootstrap and mutated only through Engine.SetRule.
type Rule struct {
	Key       RuleKey   `json:"key"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrRuleNotFound is returned on a strict lookup of an unknown rule key.
var ErrRuleNotFound = errors.New("rule not found")

// ValidationError reports malformed input rejected before any state change.
type ValidationError struct {
	Field string
	Cause error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s]: %v", e.Field, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// RuleStore is the persistence interface for rule state. Implementations
// must be safe for concurrent use.
type RuleStore interface {
	// SeedRules inserts rules that do not yet exist; existing rules are
	// left untouched. Called once at engine construction.
	SeedRules(ctx context.Context, rules []Rule) error

	// GetRule returns the rule with the given key, or ErrRuleNotFound.
	GetRule(ctx context.Context, key RuleKey) (*Rule, error)

	// ListRules returns all rules ordered by key.
	ListRules(ctx context.Context) ([]*Rule, error)

	// UpdateRule sets the rule's enabled state and update timestamp and
	// persists the audit receipt in the same transaction. Either both
	// writes commit or neither does.
	UpdateRule(ctx context.Context, key RuleKey, enabled bool, updatedAt time.Time, audit *receipt.Receipt) error
}
