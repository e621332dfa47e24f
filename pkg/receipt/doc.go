// Package receipt provides the immutable audit trail of policy decisions.
//
// Every decision — and every policy change — is recorded as a Receipt: a
// write-once record carrying the subject, action, outcome, the rules that
// fired, a hash of the originating payload, a numeric snapshot of the load
// metrics that drove the decision, and a signed token binding all of it.
//
// Receipts are never updated after creation. The Storage interface exposes
// no update operation, so immutability holds by construction; corrections
// happen via new receipts, never mutation. The load snapshot in a receipt's
// metadata is frozen at decision time, enabling later reconstruction of
// "why" independent of how the unit's live feature state has since moved.
//
// # Basic Usage
//
//	ledger := receipt.NewLedger(signer, storage, nil)
//
//	rcpt, err := ledger.Record(ctx, receipt.Draft{
//	    Subject:     "agent-42",
//	    Action:      "write:/payments",
//	    Decision:    receipt.OutcomeAllow,
//	    Reason:      "no restrictive policies active",
//	    PayloadHash: payloadHash,
//	    Metadata:    map[string]float64{"rho": 0.42},
//	})
//
//	ok, err := ledger.Verify(ctx, rcpt.ID)
package receipt
