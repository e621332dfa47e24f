package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"conductor-hq/tollbooth/pkg/load"
	"conductor-hq/tollbooth/pkg/receipt"
)

// Engine evaluates actions against rule state and load-derived protection
// levels. It is safe for concurrent use; toggles of the same rule key are
// serialized so no receipt ever records a stale old-state.
type Engine struct {
	rules     RuleStore
	estimator *load.Estimator
	ledger    *receipt.Ledger
	logger    *slog.Logger
	now       func() time.Time

	// toggleMu holds one mutex per rule key, built at construction.
	toggleMu map[RuleKey]*sync.Mutex
}

// NewEngine creates a policy engine and seeds the default rules (both off)
// into the store. The engine owns no configuration of its own: thresholds
// live in the estimator, the secret in the ledger's signer.
func NewEngine(ctx context.Context, rules RuleStore, estimator *load.Estimator, ledger *receipt.Ledger, logger *slog.Logger) (*Engine, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule store cannot be nil")
	}
	if estimator == nil {
		return nil, fmt.Errorf("load estimator cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("receipt ledger cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		rules:     rules,
		estimator: estimator,
		ledger:    ledger,
		logger:    logger.With("component", "policy.engine"),
		now:       time.Now,
		toggleMu:  make(map[RuleKey]*sync.Mutex, len(RuleKeys())),
	}
	for _, key := range RuleKeys() {
		e.toggleMu[key] = &sync.Mutex{}
	}

	if err := e.seedRules(ctx); err != nil {
		return nil, fmt.Errorf("seeding rules: %w", err)
	}

	return e, nil
}

// seedRules bootstraps the fixed rule set, both disabled. Existing rule
// state survives restarts untouched.
func (e *Engine) seedRules(ctx context.Context) error {
	now := e.now().UTC()
	seeds := make([]Rule, 0, len(RuleKeys()))
	for _, key := range RuleKeys() {
		seeds = append(seeds, Rule{
			Key:       key,
			Enabled:   false,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return e.rules.SeedRules(ctx, seeds)
}

// Evaluate decides one action and records the signed receipt. The decision
// and the receipt are returned together; a rule lookup or persistence
// failure propagates as an error and never degrades into a silent allow.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Decision, *receipt.Receipt, error) {
	if req.Subject == "" {
		return nil, nil, &ValidationError{Field: "subject", Cause: fmt.Errorf("must not be empty")}
	}
	if req.Action == "" {
		return nil, nil, &ValidationError{Field: "action", Cause: fmt.Errorf("must not be empty")}
	}

	unit := UnitFor(req.Action)
	level := e.estimator.Level(unit)

	decision, err := e.decide(ctx, req.Action, level)
	if err != nil {
		return nil, nil, err
	}

	rcpt, err := e.ledger.Record(ctx, receipt.Draft{
		ID:          req.ReceiptID,
		Subject:     req.Subject,
		Action:      req.Action,
		Decision:    decision.Outcome,
		Rules:       ruleKeyStrings(decision.MatchedRules),
		Reason:      decision.Reason,
		PayloadHash: req.PayloadHash,
		Metadata:    e.snapshot(unit),
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("action evaluated",
		"subject", req.Subject,
		"action", req.Action,
		"unit", unit,
		"protection_level", level,
		"outcome", decision.Outcome,
		"receipt_id", rcpt.ID,
	)

	return decision, rcpt, nil
}

// decide applies the precedence chain. First match wins; reads fall
// straight through to allow.
func (e *Engine) decide(ctx context.Context, action string, level load.ProtectionLevel) (*Decision, error) {
	if !IsWrite(action) {
		return &Decision{
			Outcome:      receipt.OutcomeAllow,
			MatchedRules: []RuleKey{},
			Reason:       "reads are not gated",
		}, nil
	}

	readOnlyRisky, err := e.Rule(ctx, RuleReadOnlyForRisky)
	if err != nil {
		return nil, err
	}
	if readOnlyRisky && level == load.LevelReadOnly {
		return &Decision{
			Outcome:      receipt.OutcomeDeny,
			MatchedRules: []RuleKey{RuleReadOnlyForRisky},
			Reason:       "policy: read-only mode active for risky units",
		}, nil
	}

	writesApproval, err := e.Rule(ctx, RuleWritesRequireApproval)
	if err != nil {
		return nil, err
	}
	if writesApproval {
		return &Decision{
			Outcome:      receipt.OutcomeRequireApproval,
			MatchedRules: []RuleKey{RuleWritesRequireApproval},
			Reason:       "policy: approval required for writes",
		}, nil
	}

	// Load-driven escalation bites even with no static rule configured. A
	// read_only level without read_only_for_risky degrades to approval
	// rather than a deny; denying is reserved for explicit policy.
	if level != load.LevelPermissive {
		return &Decision{
			Outcome:      receipt.OutcomeRequireApproval,
			MatchedRules: []RuleKey{},
			Reason:       "load: approval required for writes, unit under elevated load",
		}, nil
	}

	return &Decision{
		Outcome:      receipt.OutcomeAllow,
		MatchedRules: []RuleKey{},
		Reason:       "no restrictive policies active",
	}, nil
}

// Rule returns the enabled state of a rule. Unknown keys fail with
// ErrRuleNotFound rather than defaulting off.
func (e *Engine) Rule(ctx context.Context, key RuleKey) (bool, error) {
	if !key.Valid() {
		return false, fmt.Errorf("%w: %q", ErrRuleNotFound, key)
	}
	rule, err := e.rules.GetRule(ctx, key)
	if err != nil {
		return false, err
	}
	return rule.Enabled, nil
}

// Rules returns all rules ordered by key.
func (e *Engine) Rules(ctx context.Context) ([]*Rule, error) {
	return e.rules.ListRules(ctx)
}

// RuleStates returns the rule set as a key→enabled map.
func (e *Engine) RuleStates(ctx context.Context) (map[RuleKey]bool, error) {
	rules, err := e.rules.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	states := make(map[RuleKey]bool, len(rules))
	for _, r := range rules {
		states[r.Key] = r.Enabled
	}
	return states, nil
}

// SetRule sets a rule's enabled state on behalf of actor. A toggle that
// changes state persists atomically with its POLICY_CHANGE receipt and
// returns the receipt; a no-op toggle returns (nil, nil) and leaves the
// rule's update timestamp unchanged.
func (e *Engine) SetRule(ctx context.Context, key RuleKey, enabled bool, actor string) (*receipt.Receipt, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrRuleNotFound, key)
	}
	if actor == "" {
		return nil, &ValidationError{Field: "actor", Cause: fmt.Errorf("must not be empty")}
	}

	mu := e.toggleMu[key]
	mu.Lock()
	defer mu.Unlock()

	rule, err := e.rules.GetRule(ctx, key)
	if err != nil {
		return nil, err
	}
	if rule.Enabled == enabled {
		return nil, nil
	}

	now := e.now().UTC()
	change := fmt.Sprintf("%s:%t->%t:%s:%s", key, rule.Enabled, enabled, actor, now.Format(time.RFC3339Nano))

	oldState, newState := 0.0, 0.0
	if rule.Enabled {
		oldState = 1.0
	}
	if enabled {
		newState = 1.0
	}

	audit, err := e.ledger.Prepare(receipt.Draft{
		Subject:  actor,
		Action:   "policy_change:" + string(key),
		Decision: receipt.OutcomePolicyChange,
		Rules:    []string{string(key)},
		Reason: fmt.Sprintf("policy changed: %s %s (was %s)",
			key, enabledWord(enabled), enabledWord(rule.Enabled)),
		PayloadHash: hashChange(change),
		Metadata: map[string]float64{
			"old_state": oldState,
			"new_state": newState,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := e.rules.UpdateRule(ctx, key, enabled, now, audit); err != nil {
		return nil, err
	}

	e.logger.Info("rule toggled",
		"rule", key,
		"enabled", enabled,
		"actor", actor,
		"receipt_id", audit.ID,
	)

	return audit, nil
}

// snapshot captures the unit's current load metrics for receipt metadata.
func (e *Engine) snapshot(unit string) map[string]float64 {
	f, ok := e.estimator.Feature(unit)
	if !ok {
		return map[string]float64{}
	}
	return map[string]float64{
		"lambda_est": f.Lambda,
		"mu_est":     f.Mu,
		"rho":        f.Rho,
	}
}

func ruleKeyStrings(keys []RuleKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// hashChange hashes a policy-change descriptor into the payload-hash slot
// so change receipts verify the same way decision receipts do.
func hashChange(change string) string {
	sum := sha256.Sum256([]byte(change))
	return "sha256:" + hex.EncodeToString(sum[:])
}
