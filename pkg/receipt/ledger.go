package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"conductor-hq/tollbooth/pkg/signature"
)

// LedgerConfig configures the receipt ledger.
type LedgerConfig struct {
	// TokenTTL is the expiry stamped on receipt tokens. Zero signs
	// without expiry, which keeps the audit trail verifiable forever.
	TokenTTL time.Duration
}

// DefaultLedgerConfig returns the default ledger configuration.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{TokenTTL: 0}
}

// Draft carries the fields of a receipt before signing. The ledger fills
// in the id, signature, and creation timestamp.
type Draft struct {
	// ID is optional. Callers retrying a failed persistence supply the
	// id from the first attempt so the retry is idempotent.
	ID string

	Subject     string
	Action      string
	Decision    Outcome
	Rules       []string
	Reason      string
	PayloadHash string
	Metadata    map[string]float64
}

// Ledger owns receipt persistence. It signs every receipt via the
// signature engine before handing it to storage and exposes verification
// and lookup over the stored trail.
type Ledger struct {
	signer  *signature.Engine
	storage Storage
	config  *LedgerConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedger creates a receipt ledger backed by the given signer and storage.
func NewLedger(signer *signature.Engine, storage Storage, config *LedgerConfig) *Ledger {
	if config == nil {
		config = DefaultLedgerConfig()
	}

	return &Ledger{
		signer:  signer,
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "receipt.ledger"),
		now:     time.Now,
	}
}

// Prepare builds and signs a receipt from a draft without persisting it.
// Callers that need the persistence to happen atomically with another
// write (a rule toggle) prepare the receipt first and hand it to the
// transactional store operation.
func (l *Ledger) Prepare(d Draft) (*Receipt, error) {
	if d.Subject == "" {
		return nil, fmt.Errorf("receipt draft missing subject")
	}
	if !d.Decision.Valid() {
		return nil, fmt.Errorf("invalid receipt decision %q", d.Decision)
	}

	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}

	rules := d.Rules
	if rules == nil {
		rules = []string{}
	}
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]float64{}
	}

	r := &Receipt{
		ID:          id,
		Subject:     d.Subject,
		Action:      d.Action,
		Decision:    d.Decision,
		Rules:       rules,
		Reason:      d.Reason,
		PayloadHash: d.PayloadHash,
		Metadata:    metadata,
		CreatedAt:   l.now().UTC(),
	}

	token, err := l.sign(r)
	if err != nil {
		return nil, err
	}
	r.Signature = token

	return r, nil
}

// Record builds, signs, and persists a receipt, returning the signed
// record. A storage failure propagates unchanged; the caller may retry
// with the same Draft.ID without duplicating the audit entry.
func (l *Ledger) Record(ctx context.Context, d Draft) (*Receipt, error) {
	r, err := l.Prepare(d)
	if err != nil {
		return nil, err
	}

	if err := l.storage.StoreReceipt(ctx, r); err != nil {
		return nil, err
	}

	l.logger.Info("receipt recorded",
		"receipt_id", r.ID,
		"subject", r.Subject,
		"action", r.Action,
		"decision", r.Decision,
	)

	return r, nil
}

// Verify loads the receipt with the given id and checks its stored token
// against the signing secret. Returns false with a nil error when the
// token fails verification; lookup failures return an error.
func (l *Ledger) Verify(ctx context.Context, id string) (bool, error) {
	r, err := l.storage.GetReceipt(ctx, id)
	if err != nil {
		return false, err
	}

	if !r.IsSigned() {
		return false, nil
	}
	return l.signer.IsValid(r.Signature), nil
}

// Get returns the receipt with the given id.
func (l *Ledger) Get(ctx context.Context, id string) (*Receipt, error) {
	return l.storage.GetReceipt(ctx, id)
}

// Query returns receipts matching the filters, newest first.
func (l *Ledger) Query(ctx context.Context, q *Query) ([]*Receipt, error) {
	return l.storage.QueryReceipts(ctx, q)
}

// Count returns the number of receipts matching the filters.
func (l *Ledger) Count(ctx context.Context, q *Query) (int64, error) {
	return l.storage.CountReceipts(ctx, q)
}

// sign produces the token binding the receipt fields. The claim layout is
// the wire format: {id, subject, action, decision, rules, reason,
// payload_hash, iat, exp?}.
func (l *Ledger) sign(r *Receipt) (string, error) {
	claims := map[string]any{
		"id":           r.ID,
		"subject":      r.Subject,
		"action":       r.Action,
		"decision":     string(r.Decision),
		"rules":        r.Rules,
		"reason":       r.Reason,
		"payload_hash": r.PayloadHash,
	}

	if l.config.TokenTTL > 0 {
		return l.signer.SignWithExpiry(claims, l.config.TokenTTL)
	}
	return l.signer.Sign(claims)
}
