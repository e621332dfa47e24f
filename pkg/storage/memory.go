package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"conductor-hq/tollbooth/pkg/load"
	"conductor-hq/tollbooth/pkg/policy"
	"conductor-hq/tollbooth/pkg/receipt"
)

// Memory is an in-memory backend for tests and development. It implements
// the same interfaces as SQLite with the same semantics: write-once
// receipts, idempotent duplicate ids, and rule toggles atomic with their
// audit receipts under one lock.
type Memory struct {
	mu       sync.RWMutex
	receipts map[string]*receipt.Receipt
	rules    map[policy.RuleKey]*policy.Rule
	features []load.Feature
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		receipts: make(map[string]*receipt.Receipt),
		rules:    make(map[policy.RuleKey]*policy.Rule),
	}
}

// Close is a no-op for the memory backend.
func (m *Memory) Close() error { return nil }

// StoreReceipt persists a receipt. Duplicate ids are a no-op.
func (m *Memory) StoreReceipt(ctx context.Context, r *receipt.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.receipts[r.ID]; exists {
		return nil
	}

	stored := *r
	m.receipts[r.ID] = &stored
	return nil
}

// GetReceipt returns the receipt with the given id, or receipt.ErrNotFound.
func (m *Memory) GetReceipt(ctx context.Context, id string) (*receipt.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.receipts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", receipt.ErrNotFound, id)
	}

	copied := *r
	return &copied, nil
}

// QueryReceipts returns receipts matching the query, newest first.
func (m *Memory) QueryReceipts(ctx context.Context, q *receipt.Query) ([]*receipt.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := []*receipt.Receipt{}
	for _, r := range m.receipts {
		if matchesQuery(r, q) {
			copied := *r
			matched = append(matched, &copied)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit := 100
	if q.Limit > 0 {
		limit = q.Limit
	}

	if q.Offset >= len(matched) {
		return []*receipt.Receipt{}, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// CountReceipts returns the number of receipts matching the query.
func (m *Memory) CountReceipts(ctx context.Context, q *receipt.Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.receipts {
		if matchesQuery(r, q) {
			count++
		}
	}
	return count, nil
}

// SeedRules inserts rules that do not yet exist. Existing state survives.
func (m *Memory) SeedRules(ctx context.Context, rules []policy.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rules {
		if _, exists := m.rules[r.Key]; exists {
			continue
		}
		stored := r
		m.rules[r.Key] = &stored
	}
	return nil
}

// GetRule returns the rule with the given key, or policy.ErrRuleNotFound.
func (m *Memory) GetRule(ctx context.Context, key policy.RuleKey) (*policy.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", policy.ErrRuleNotFound, key)
	}

	copied := *r
	return &copied, nil
}

// ListRules returns all rules ordered by key.
func (m *Memory) ListRules(ctx context.Context) ([]*policy.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := []*policy.Rule{}
	for _, r := range m.rules {
		copied := *r
		rules = append(rules, &copied)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Key < rules[j].Key })
	return rules, nil
}

// UpdateRule commits the rule state change and the audit receipt under one
// lock, so a reader never sees one without the other.
func (m *Memory) UpdateRule(ctx context.Context, key policy.RuleKey, enabled bool, updatedAt time.Time, audit *receipt.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[key]
	if !ok {
		return fmt.Errorf("%w: %q", policy.ErrRuleNotFound, key)
	}

	r.Enabled = enabled
	r.UpdatedAt = updatedAt

	if audit != nil {
		stored := *audit
		m.receipts[audit.ID] = &stored
	}

	return nil
}

// RecordFeature appends a feature snapshot to the history.
func (m *Memory) RecordFeature(ctx context.Context, f load.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.features = append(m.features, f)
	return nil
}

// FeatureHistory returns the most recent snapshots for a unit, newest
// first.
func (m *Memory) FeatureHistory(ctx context.Context, unit string, limit int) ([]load.Feature, error) {
	if limit <= 0 {
		limit = 100
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	features := []load.Feature{}
	for i := len(m.features) - 1; i >= 0 && len(features) < limit; i-- {
		if m.features[i].Unit == unit {
			features = append(features, m.features[i])
		}
	}
	return features, nil
}

// matchesQuery reports whether a receipt satisfies every set filter.
func matchesQuery(r *receipt.Receipt, q *receipt.Query) bool {
	if q.Subject != "" && r.Subject != q.Subject {
		return false
	}
	if q.Decision != "" && r.Decision != q.Decision {
		return false
	}
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	if q.Since != nil && r.CreatedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && r.CreatedAt.After(*q.Until) {
		return false
	}
	return true
}
