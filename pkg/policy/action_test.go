package policy

import "testing"

func TestIsWrite(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{"write:/payments", true},
		{"write:", true},
		{"read:/payments", false},
		{"read:", false},
		{"delete:/payments", false},
		{"", false},
		{"WRITE:/payments", false},
	}

	for _, tt := range tests {
		if got := IsWrite(tt.action); got != tt.want {
			t.Errorf("IsWrite(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestUnitFor(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{"write:/payments", "route:/payments"},
		{"read:/payments", "route:/payments"},
		{"write:/payments/refunds", "route:/payments/refunds"},
		{"write:", "route:/"},
		{"read:", "route:/"},
		{"write:payments", "route:/payments"},
	}

	for _, tt := range tests {
		if got := UnitFor(tt.action); got != tt.want {
			t.Errorf("UnitFor(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestRuleKeyValid(t *testing.T) {
	for _, key := range RuleKeys() {
		if !key.Valid() {
			t.Errorf("RuleKey %q reported invalid", key)
		}
	}
	if RuleKey("made_up").Valid() {
		t.Error("unknown rule key reported valid")
	}
}
