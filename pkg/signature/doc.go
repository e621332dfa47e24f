// Package signature provides signing and verification for decision receipts.
//
// Receipts are signed as compact HS256 tokens (header.payload.signature)
// using a shared secret. Signing stamps an issued-at claim and optionally an
// expiry claim; verification recomputes the MAC and fails with ErrTampered,
// ErrExpired, or ErrMalformed. The engine performs no I/O: a token is a pure
// function of (secret, claims, clock).
//
// # Basic Usage
//
//	engine, err := signature.New([]byte(secret))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	token, err := engine.Sign(map[string]any{
//	    "id":      receiptID,
//	    "subject": "agent-42",
//	})
//
//	claims, err := engine.Verify(token)
//	if errors.Is(err, signature.ErrTampered) {
//	    // token was modified after signing
//	}
//
// DecodeUnverified exposes a token's claims without checking the signature.
// It returns the distinct UnverifiedClaims type so unchecked data cannot be
// passed where verified Claims are expected. Never use it for authorization.
package signature
