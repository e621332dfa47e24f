package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"conductor-hq/tollbooth/pkg/policy"
)

// File applies rule states from a YAML file to the policy engine. Every
// state change goes through Engine.SetRule, so file-driven toggles produce
// the same signed audit receipts as API-driven ones.
type File struct {
	path   string
	actor  string
	engine *policy.Engine
	logger *slog.Logger
}

// ruleFile is the on-disk document shape.
type ruleFile struct {
	Rules map[string]bool `yaml:"rules"`
}

// NewFile creates a file-backed rule source. The actor is recorded as the
// subject on receipts for toggles the file triggers.
func NewFile(path, actor string, engine *policy.Engine, logger *slog.Logger) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("rule file path cannot be empty")
	}
	if actor == "" {
		return nil, fmt.Errorf("rule file actor cannot be empty")
	}
	if engine == nil {
		return nil, fmt.Errorf("policy engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &File{
		path:   path,
		actor:  actor,
		engine: engine,
		logger: logger.With("component", "policy.source"),
	}, nil
}

// Sync reads the file and applies its rule states. Toggles that change
// nothing are no-ops and produce no receipts. A file naming an unknown
// rule key fails the whole sync without applying anything.
func (f *File) Sync(ctx context.Context) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read rule file %q: %w", f.path, err)
	}

	states, err := parseRuleFile(data)
	if err != nil {
		return fmt.Errorf("failed to parse rule file %q: %w", f.path, err)
	}

	applied := 0
	for key, enabled := range states {
		rcpt, err := f.engine.SetRule(ctx, key, enabled, f.actor)
		if err != nil {
			return fmt.Errorf("applying rule %q from file: %w", key, err)
		}
		if rcpt != nil {
			applied++
		}
	}

	f.logger.Info("rule file synced",
		"path", f.path,
		"rules", len(states),
		"changes", applied,
	)

	return nil
}

// parseRuleFile decodes the document and validates every rule key before
// anything is applied.
func parseRuleFile(data []byte) (map[policy.RuleKey]bool, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	states := make(map[policy.RuleKey]bool, len(doc.Rules))
	for name, enabled := range doc.Rules {
		key := policy.RuleKey(name)
		if !key.Valid() {
			return nil, fmt.Errorf("unknown rule key %q", name)
		}
		states[key] = enabled
	}
	return states, nil
}
