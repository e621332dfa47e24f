// Package storage provides persistence backends for receipts, rule state,
// and feature history.
//
// Two backends exist:
//
//   - SQLite: durable single-node storage with WAL mode, busy timeout,
//     and a schema version table
//   - Memory: in-memory backend for testing
//
// Both implement receipt.Storage, policy.RuleStore, and load.FeatureSink
// over a single store, which is what makes rule toggles atomic with their
// audit receipts: UpdateRule commits the rule state change and the receipt
// insert in one transaction.
//
// Receipts are write-once. Neither backend exposes an update path for a
// stored receipt, and storing a duplicate receipt id is a no-op so caller
// retries stay idempotent.
package storage
