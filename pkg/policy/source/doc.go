// Package source loads desired rule states from a YAML file and applies
// them through the policy engine, optionally re-syncing on file change.
//
// The file declares rule keys and their enabled state:
//
//	rules:
//	  writes_require_approval: true
//	  read_only_for_risky: false
//
// Applying the file never bypasses the engine: each state change produces
// a signed POLICY_CHANGE receipt attributed to the configured actor.
package source
