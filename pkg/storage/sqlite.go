package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"conductor-hq/tollbooth/pkg/load"
	"conductor-hq/tollbooth/pkg/policy"
	"conductor-hq/tollbooth/pkg/receipt"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/tollbooth.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLite is the durable backend. It implements receipt.Storage,
// policy.RuleStore, and load.FeatureSink over one database so rule
// toggles and their audit receipts share a transaction boundary.
type SQLite struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLite opens the database, initializes the schema, and enables WAL
// mode if configured.
func NewSQLite(config *SQLiteConfig) (*SQLite, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, receipt.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLite{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLite) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return receipt.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return receipt.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return receipt.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return receipt.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return receipt.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return receipt.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return receipt.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("sqlite storage closed")
	return nil
}

// StoreReceipt persists a receipt. Duplicate ids are ignored so retries
// with a fixed id never duplicate an audit entry; the stored record is
// never overwritten.
func (s *SQLite) StoreReceipt(ctx context.Context, r *receipt.Receipt) error {
	rules, err := json.Marshal(r.Rules)
	if err != nil {
		return receipt.NewStorageError("sqlite", "store", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return receipt.NewStorageError("sqlite", "store", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO receipts
			(id, subject, action, decision, rules, reason, payload_hash, metadata, signature, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Subject, r.Action, string(r.Decision), string(rules),
		r.Reason, r.PayloadHash, string(metadata), r.Signature, r.CreatedAt,
	)
	if err != nil {
		return receipt.NewStorageError("sqlite", "store", err)
	}

	return nil
}

// GetReceipt returns the receipt with the given id, or receipt.ErrNotFound.
func (s *SQLite) GetReceipt(ctx context.Context, id string) (*receipt.Receipt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject, action, decision, rules, reason, payload_hash, metadata, signature, created_at
		FROM receipts WHERE id = ?`, id)

	r, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", receipt.ErrNotFound, id)
	}
	if err != nil {
		return nil, receipt.NewStorageError("sqlite", "get", err)
	}
	return r, nil
}

// QueryReceipts returns receipts matching the query, newest first.
func (s *SQLite) QueryReceipts(ctx context.Context, q *receipt.Query) ([]*receipt.Receipt, error) {
	where, args := buildReceiptWhere(q)

	query := `
		SELECT id, subject, action, decision, rules, reason, payload_hash, metadata, signature, created_at
		FROM receipts`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := 100
	if q.Limit > 0 {
		limit = q.Limit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, receipt.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	receipts := []*receipt.Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, receipt.NewStorageError("sqlite", "scan", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, receipt.NewStorageError("sqlite", "query", err)
	}

	return receipts, nil
}

// CountReceipts returns the number of receipts matching the query.
func (s *SQLite) CountReceipts(ctx context.Context, q *receipt.Query) (int64, error) {
	where, args := buildReceiptWhere(q)

	query := "SELECT COUNT(*) FROM receipts"
	if where != "" {
		query += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, receipt.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// SeedRules inserts rules that do not yet exist. Existing state survives.
func (s *SQLite) SeedRules(ctx context.Context, rules []policy.Rule) error {
	for _, r := range rules {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO rules (key, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?)`,
			string(r.Key), r.Enabled, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return receipt.NewStorageError("sqlite", "seed_rules", err)
		}
	}
	return nil
}

// GetRule returns the rule with the given key, or policy.ErrRuleNotFound.
func (s *SQLite) GetRule(ctx context.Context, key policy.RuleKey) (*policy.Rule, error) {
	var r policy.Rule
	var keyStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT key, enabled, created_at, updated_at FROM rules WHERE key = ?`,
		string(key),
	).Scan(&keyStr, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", policy.ErrRuleNotFound, key)
	}
	if err != nil {
		return nil, receipt.NewStorageError("sqlite", "get_rule", err)
	}

	r.Key = policy.RuleKey(keyStr)
	return &r, nil
}

// ListRules returns all rules ordered by key.
func (s *SQLite) ListRules(ctx context.Context) ([]*policy.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, enabled, created_at, updated_at FROM rules ORDER BY key`)
	if err != nil {
		return nil, receipt.NewStorageError("sqlite", "list_rules", err)
	}
	defer rows.Close()

	rules := []*policy.Rule{}
	for rows.Next() {
		var r policy.Rule
		var keyStr string
		if err := rows.Scan(&keyStr, &r.Enabled, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, receipt.NewStorageError("sqlite", "scan_rule", err)
		}
		r.Key = policy.RuleKey(keyStr)
		rules = append(rules, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, receipt.NewStorageError("sqlite", "list_rules", err)
	}

	return rules, nil
}

// UpdateRule commits the rule state change and the audit receipt in one
// transaction. Either both persist or neither does.
func (s *SQLite) UpdateRule(ctx context.Context, key policy.RuleKey, enabled bool, updatedAt time.Time, audit *receipt.Receipt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return receipt.NewStorageError("sqlite", "update_rule", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE rules SET enabled = ?, updated_at = ? WHERE key = ?`,
		enabled, updatedAt, string(key),
	)
	if err != nil {
		return receipt.NewStorageError("sqlite", "update_rule", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return receipt.NewStorageError("sqlite", "update_rule", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", policy.ErrRuleNotFound, key)
	}

	if audit != nil {
		rules, err := json.Marshal(audit.Rules)
		if err != nil {
			return receipt.NewStorageError("sqlite", "update_rule", err)
		}
		metadata, err := json.Marshal(audit.Metadata)
		if err != nil {
			return receipt.NewStorageError("sqlite", "update_rule", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO receipts
				(id, subject, action, decision, rules, reason, payload_hash, metadata, signature, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			audit.ID, audit.Subject, audit.Action, string(audit.Decision), string(rules),
			audit.Reason, audit.PayloadHash, string(metadata), audit.Signature, audit.CreatedAt,
		)
		if err != nil {
			return receipt.NewStorageError("sqlite", "update_rule", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return receipt.NewStorageError("sqlite", "update_rule", err)
	}

	return nil
}

// RecordFeature appends a feature snapshot to the history table.
func (s *SQLite) RecordFeature(ctx context.Context, f load.Feature) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO features (unit, lambda, mu, rho, observed_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.Unit, f.Lambda, f.Mu, f.Rho, f.ObservedAt,
	)
	if err != nil {
		return receipt.NewStorageError("sqlite", "record_feature", err)
	}
	return nil
}

// FeatureHistory returns the most recent snapshots for a unit, newest
// first.
func (s *SQLite) FeatureHistory(ctx context.Context, unit string, limit int) ([]load.Feature, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT unit, lambda, mu, rho, observed_at
		FROM features WHERE unit = ?
		ORDER BY observed_at DESC, id DESC LIMIT ?`,
		unit, limit,
	)
	if err != nil {
		return nil, receipt.NewStorageError("sqlite", "feature_history", err)
	}
	defer rows.Close()

	features := []load.Feature{}
	for rows.Next() {
		var f load.Feature
		if err := rows.Scan(&f.Unit, &f.Lambda, &f.Mu, &f.Rho, &f.ObservedAt); err != nil {
			return nil, receipt.NewStorageError("sqlite", "scan_feature", err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, receipt.NewStorageError("sqlite", "feature_history", err)
	}

	return features, nil
}

// buildReceiptWhere builds the WHERE clause for receipt queries.
func buildReceiptWhere(q *receipt.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, q.Subject)
	}
	if q.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, string(q.Decision))
	}
	if q.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, q.Action)
	}
	if q.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *q.Until)
	}

	where := ""
	for i, condition := range conditions {
		if i > 0 {
			where += " AND "
		}
		where += condition
	}

	return where, args
}

// rowScanner abstracts sql.Row and sql.Rows for scanReceipt.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReceipt scans one receipt row, decoding the JSON-encoded fields back
// into their typed domain form.
func scanReceipt(row rowScanner) (*receipt.Receipt, error) {
	var r receipt.Receipt
	var decision, rules, metadata string

	err := row.Scan(
		&r.ID, &r.Subject, &r.Action, &decision, &rules,
		&r.Reason, &r.PayloadHash, &metadata, &r.Signature, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Decision = receipt.Outcome(decision)
	if err := json.Unmarshal([]byte(rules), &r.Rules); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
		return nil, err
	}

	return &r, nil
}
