package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"conductor-hq/tollbooth/pkg/load"
	"conductor-hq/tollbooth/pkg/policy"
	"conductor-hq/tollbooth/pkg/receipt"
)

var (
	_ receipt.Storage  = (*SQLite)(nil)
	_ policy.RuleStore = (*SQLite)(nil)
	_ load.FeatureSink = (*SQLite)(nil)
)

// createTempDB creates a SQLite backend in a temp directory and registers
// cleanup.
func createTempDB(t *testing.T) *SQLite {
	t.Helper()

	config := DefaultSQLiteConfig()
	config.Path = filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLite(config)
	if err != nil {
		t.Fatalf("NewSQLite() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})

	return s
}

// testReceipt builds a valid decision receipt with the given overrides.
func testReceipt(t *testing.T, decision receipt.Outcome, createdAt time.Time) *receipt.Receipt {
	t.Helper()

	return &receipt.Receipt{
		ID:          uuid.New().String(),
		Subject:     "agent-7",
		Action:      "write:/payments",
		Decision:    decision,
		Rules:       []string{"writes_require_approval"},
		Reason:      "policy: approval required for writes",
		PayloadHash: "sha256:ab12cd34",
		Metadata:    map[string]float64{"lambda_est": 3.4, "mu_est": 10.0, "rho": 0.34},
		Signature:   "eyJhbGciOiJIUzI1NiJ9.test.sig",
		CreatedAt:   createdAt,
	}
}

func TestSQLite_StoreAndGetReceipt(t *testing.T) {
	s := createTempDB(t)
	ctx := context.Background()

	want := testReceipt(t, receipt.OutcomeRequireApproval, time.Now().UTC().Truncate(time.Second))
	if err := s.StoreReceipt(ctx, want); err != nil {
		t.Fatalf("StoreReceipt() failed: %v", err)
	}

	got, err := s.GetReceipt(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetReceipt() failed: %v", err)
	}

	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
	if got.Subject != want.Subject {
		t.Errorf("Subject = %q, want %q", got.Subject, want.Subject)
	}
	if got.Decision != want.Decision {
		t.Errorf("Decision = %q, want %q", got.Decision, want.Decision)
	}
	if len(got.Rules) != 1 || got.Rules[0] != "writes_require_approval" {
		t.Errorf("Rules = %v, want [writes_require_approval]", got.Rules)
	}
	if got.Metadata["rho"] != 0.34 {
		t.Errorf("Metadata[rho] = %v, want 0.34", got.Metadata["rho"])
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestSQLite_GetReceiptNotFound(t *testing.T) {
	s := createTempDB(t)

	_, err := s.GetReceipt(context.Background(), "no-such-id")
	if !errors.Is(err, receipt.ErrNotFound) {
		t.Errorf("GetReceipt() error = %v, want ErrNotFound", err)
	}
}

func TestSQLite_StoreReceiptIdempotent(t *testing.T) {
	s := createTempDB(t)
	ctx := context.Background()

	original := testReceipt(t, receipt.OutcomeAllow, time.Now().UTC())
	if err := s.StoreReceipt(ctx, original); err != nil {
		t.Fatalf("StoreReceipt() failed: %v", err)
	}

	// Retry with the same id but different contents: no-op, never an
	// overwrite.
	retry := *original
	retry.Reason = "mutated on retry"
	if err := s.StoreReceipt(ctx, &retry); err != nil {
		t.Fatalf("StoreReceipt() retry failed: %v", err)
	}

	count, err := s.CountReceipts(ctx, &receipt.Query{})
	if err != nil {
		t.Fatalf("CountReceipts() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	got, err := s.GetReceipt(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetReceipt() failed: %v", err)
	}
	if got.Reason != original.Reason {
		t.Errorf("Reason = %q, want original %q preserved", got.Reason, original.Reason)
	}
}

func TestSQLite_QueryReceipts(t *testing.T) {
	s := createTempDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)

	allow := testReceipt(t, receipt.OutcomeAllow, base.Add(-2*time.Minute))
	deny := testReceipt(t, receipt.OutcomeDeny, base.Add(-1*time.Minute))
	deny.Subject = "agent-9"
	approval := testReceipt(t, receipt.OutcomeRequireApproval, base)

	for _, r := range []*receipt.Receipt{allow, deny, approval} {
		if err := s.StoreReceipt(ctx, r); err != nil {
			t.Fatalf("StoreReceipt() failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		query   *receipt.Query
		wantIDs []string
	}{
		{
			name:    "no filter returns newest first",
			query:   &receipt.Query{},
			wantIDs: []string{approval.ID, deny.ID, allow.ID},
		},
		{
			name:    "filter by subject",
			query:   &receipt.Query{Subject: "agent-9"},
			wantIDs: []string{deny.ID},
		},
		{
			name:    "filter by decision",
			query:   &receipt.Query{Decision: receipt.OutcomeAllow},
			wantIDs: []string{allow.ID},
		},
		{
			name:    "since excludes older",
			query:   &receipt.Query{Since: timePtr(base.Add(-90 * time.Second))},
			wantIDs: []string{approval.ID, deny.ID},
		},
		{
			name:    "limit caps results",
			query:   &receipt.Query{Limit: 2},
			wantIDs: []string{approval.ID, deny.ID},
		},
		{
			name:    "offset skips newest",
			query:   &receipt.Query{Limit: 2, Offset: 1},
			wantIDs: []string{deny.ID, allow.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryReceipts(ctx, tt.query)
			if err != nil {
				t.Fatalf("QueryReceipts() failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d receipts, want %d", len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].ID != want {
					t.Errorf("receipt[%d].ID = %q, want %q", i, got[i].ID, want)
				}
			}
		})
	}
}

func TestSQLite_SeedRulesPreservesState(t *testing.T) {
	s := createTempDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	seed := []policy.Rule{
		{Key: policy.RuleWritesRequireApproval, Enabled: false, CreatedAt: now, UpdatedAt: now},
		{Key: policy.RuleReadOnlyForRisky, Enabled: false, CreatedAt: now, UpdatedAt: now},
	}
	if err := s.SeedRules(ctx, seed); err != nil {
		t.Fatalf("SeedRules() failed: %v", err)
	}

	// Enable one rule, then re-seed: the toggle must survive.
	if err := s.UpdateRule(ctx, policy.RuleWritesRequireApproval, true, now.Add(time.Minute), nil); err != nil {
		t.Fatalf("UpdateRule() failed: %v", err)
	}
	if err := s.SeedRules(ctx, seed); err != nil {
		t.Fatalf("SeedRules() re-seed failed: %v", err)
	}

	rule, err := s.GetRule(ctx, policy.RuleWritesRequireApproval)
	if err != nil {
		t.Fatalf("GetRule() failed: %v", err)
	}
	if !rule.Enabled {
		t.Error("rule disabled after re-seed, want enabled state preserved")
	}

	rules, err := s.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules() failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Key != policy.RuleReadOnlyForRisky {
		t.Errorf("rules[0].Key = %q, want ordering by key", rules[0].Key)
	}
}

func TestSQLite_GetRuleNotFound(t *testing.T) {
	s := createTempDB(t)

	_, err := s.GetRule(context.Background(), policy.RuleKey("unknown_rule"))
	if !errors.Is(err, policy.ErrRuleNotFound) {
		t.Errorf("GetRule() error = %v, want ErrRuleNotFound", err)
	}
}

func TestSQLite_UpdateRuleAtomicWithReceipt(t *testing.T) {
	s := createTempDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	seed := []policy.Rule{
		{Key: policy.RuleWritesRequireApproval, Enabled: false, CreatedAt: now, UpdatedAt: now},
	}
	if err := s.SeedRules(ctx, seed); err != nil {
		t.Fatalf("SeedRules() failed: %v", err)
	}

	audit := testReceipt(t, receipt.OutcomePolicyChange, now.Add(time.Minute))
	audit.Action = "policy_change:writes_require_approval"
	audit.Reason = "policy changed: writes_require_approval enabled (was disabled)"

	if err := s.UpdateRule(ctx, policy.RuleWritesRequireApproval, true, now.Add(time.Minute), audit); err != nil {
		t.Fatalf("UpdateRule() failed: %v", err)
	}

	rule, err := s.GetRule(ctx, policy.RuleWritesRequireApproval)
	if err != nil {
		t.Fatalf("GetRule() failed: %v", err)
	}
	if !rule.Enabled {
		t.Error("rule not enabled after UpdateRule()")
	}

	got, err := s.GetReceipt(ctx, audit.ID)
	if err != nil {
		t.Fatalf("GetReceipt() for audit receipt failed: %v", err)
	}
	if got.Decision != receipt.OutcomePolicyChange {
		t.Errorf("audit Decision = %q, want POLICY_CHANGE", got.Decision)
	}
}

func TestSQLite_UpdateRuleUnknownKey(t *testing.T) {
	s := createTempDB(t)
	ctx := context.Background()

	audit := testReceipt(t, receipt.OutcomePolicyChange, time.Now().UTC())
	err := s.UpdateRule(ctx, policy.RuleKey("unknown_rule"), true, time.Now().UTC(), audit)
	if !errors.Is(err, policy.ErrRuleNotFound) {
		t.Fatalf("UpdateRule() error = %v, want ErrRuleNotFound", err)
	}

	// The failed toggle must not leave a stray audit receipt behind.
	if _, err := s.GetReceipt(ctx, audit.ID); !errors.Is(err, receipt.ErrNotFound) {
		t.Errorf("audit receipt stored despite rolled-back toggle: err = %v", err)
	}
}

func TestSQLite_FeatureHistory(t *testing.T) {
	s := createTempDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		f := load.Feature{
			Unit:       "route:/payments",
			Lambda:     float64(i + 1),
			Mu:         10.0,
			Rho:        float64(i+1) / 10.0,
			ObservedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.RecordFeature(ctx, f); err != nil {
			t.Fatalf("RecordFeature() failed: %v", err)
		}
	}
	other := load.Feature{Unit: "route:/search", Lambda: 1, Mu: 10, Rho: 0.1, ObservedAt: base}
	if err := s.RecordFeature(ctx, other); err != nil {
		t.Fatalf("RecordFeature() failed: %v", err)
	}

	history, err := s.FeatureHistory(ctx, "route:/payments", 2)
	if err != nil {
		t.Fatalf("FeatureHistory() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(history))
	}
	if history[0].Lambda != 3.0 {
		t.Errorf("history[0].Lambda = %v, want newest snapshot first", history[0].Lambda)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
