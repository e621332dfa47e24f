package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the database schema.
const Schema = `
-- Immutable decision receipts (audit trail)
CREATE TABLE IF NOT EXISTS receipts (
    id TEXT PRIMARY KEY,
    subject TEXT NOT NULL,
    action TEXT NOT NULL,
    decision TEXT NOT NULL,
    rules TEXT NOT NULL DEFAULT '[]',
    reason TEXT NOT NULL,
    payload_hash TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    signature TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_receipts_subject_created ON receipts (subject, created_at);
CREATE INDEX IF NOT EXISTS ix_receipts_decision_created ON receipts (decision, created_at);
CREATE INDEX IF NOT EXISTS ix_receipts_action_created ON receipts (action, created_at);

-- Policy rule state
CREATE TABLE IF NOT EXISTS rules (
    key TEXT PRIMARY KEY,
    enabled BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Feature observation history (current value = latest row per unit)
CREATE TABLE IF NOT EXISTS features (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    unit TEXT NOT NULL,
    lambda REAL NOT NULL,
    mu REAL NOT NULL,
    rho REAL NOT NULL,
    observed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_features_unit_observed ON features (unit, observed_at);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version (idempotent).
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;`
