// Package policy evaluates agent actions against togglable rules and the
// load-derived protection level, producing a decision and a signed receipt
// for every evaluation.
//
// Two rules exist, both off by default:
//
//   - writes_require_approval: writes need human approval
//   - read_only_for_risky: writes to read-only units are denied
//
// Evaluation precedence is deterministic, first match wins:
//
//  1. write + read_only_for_risky ON + unit read_only  → DENY
//  2. write + writes_require_approval ON               → REQUIRE_APPROVAL
//  3. write + unit level require_approval              → REQUIRE_APPROVAL (load-based)
//  4. otherwise                                        → ALLOW
//
// Explicit deny rules outrank load-based throttling, which outranks the
// default allow: policy intent is never silently overridden by transient
// load, and load-based throttling still bites when no rule is configured.
// Reads are never gated.
//
// Rule toggles are the only mutation of rule state. A toggle that changes
// state persists atomically with its POLICY_CHANGE audit receipt; a no-op
// toggle emits nothing and leaves the rule's update timestamp untouched.
package policy
