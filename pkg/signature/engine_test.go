package signature

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// newTestEngine creates an engine with a fixed clock.
func newTestEngine(t *testing.T, now time.Time) *Engine {
	t.Helper()

	engine, err := New([]byte(testSecret), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return engine
}

func TestNew_WeakSecret(t *testing.T) {
	_, err := New([]byte("too-short"))
	if !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("Expected ErrWeakSecret, got %v", err)
	}
}

func TestNew_MinimumSecret(t *testing.T) {
	_, err := New([]byte(testSecret))
	if err != nil {
		t.Fatalf("New() with 32-byte secret failed: %v", err)
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	engine := newTestEngine(t, time.Now())

	claims := map[string]any{
		"id":       "550e8400-e29b-41d4-a716-446655440000",
		"subject":  "agent-42",
		"action":   "write:/payments",
		"decision": "ALLOW",
		"rules":    []any{"writes_require_approval"},
		"reason":   "no restrictive policies active",
	}

	token, err := engine.Sign(claims)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("Expected three-part token, got %d parts", len(parts))
	}

	verified, err := engine.Verify(token)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	for _, key := range []string{"id", "subject", "action", "decision", "reason"} {
		if verified[key] != claims[key] {
			t.Errorf("Claim %q = %v, want %v", key, verified[key], claims[key])
		}
	}

	if _, ok := verified["iat"]; !ok {
		t.Error("Verified claims missing iat")
	}
	if _, ok := verified["exp"]; ok {
		t.Error("Sign() without TTL must not stamp exp")
	}
}

func TestSign_DoesNotMutateInput(t *testing.T) {
	engine := newTestEngine(t, time.Now())

	claims := map[string]any{"subject": "agent-1"}
	if _, err := engine.Sign(claims); err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	if len(claims) != 1 {
		t.Errorf("Input claims mutated: %v", claims)
	}
}

func TestVerify_Tampered(t *testing.T) {
	engine := newTestEngine(t, time.Now())

	token, err := engine.Sign(map[string]any{"subject": "agent-42"})
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	// Flip a character in the payload segment. Every single-character
	// change must surface as tampering, never as a valid token.
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	for i := range payload {
		flipped := make([]byte, len(payload))
		copy(flipped, payload)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		mutated := parts[0] + "." + string(flipped) + "." + parts[2]
		if mutated == token {
			continue
		}

		if _, err := engine.Verify(mutated); err == nil {
			t.Fatalf("Verify() accepted token with payload byte %d flipped", i)
		}
	}

	// Flip a character in the signature segment.
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	mutated := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = engine.Verify(mutated)
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("Expected ErrTampered for flipped signature, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	engine := newTestEngine(t, time.Now())
	other, err := New([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	token, err := engine.Sign(map[string]any{"subject": "agent-42"})
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	_, err = other.Verify(token)
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("Expected ErrTampered with wrong secret, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	signer := newTestEngine(t, issued)
	token, err := signer.SignWithExpiry(map[string]any{"subject": "agent-42"}, time.Hour)
	if err != nil {
		t.Fatalf("SignWithExpiry() failed: %v", err)
	}

	// Verify two hours later, past the one-hour expiry.
	verifier := newTestEngine(t, issued.Add(2*time.Hour))
	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("Expected ErrExpired, got %v", err)
	}

	// Still valid within the window.
	within := newTestEngine(t, issued.Add(30*time.Minute))
	if _, err := within.Verify(token); err != nil {
		t.Fatalf("Verify() inside expiry window failed: %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	engine := newTestEngine(t, time.Now())

	for _, token := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := engine.Verify(token)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Verify(%q): expected ErrMalformed, got %v", token, err)
		}
	}
}

func TestIsValid(t *testing.T) {
	engine := newTestEngine(t, time.Now())

	token, err := engine.Sign(map[string]any{"subject": "agent-42"})
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	if !engine.IsValid(token) {
		t.Error("IsValid() = false for freshly signed token")
	}
	if engine.IsValid(token + "x") {
		t.Error("IsValid() = true for modified token")
	}
}

func TestDecodeUnverified(t *testing.T) {
	engine := newTestEngine(t, time.Now())

	token, err := engine.Sign(map[string]any{"subject": "agent-42"})
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	// Corrupt the signature; unverified decode must still expose claims.
	corrupted := token[:len(token)-2] + "xx"

	claims, err := engine.DecodeUnverified(corrupted)
	if err != nil {
		t.Fatalf("DecodeUnverified() failed: %v", err)
	}
	if claims["subject"] != "agent-42" {
		t.Errorf("subject = %v, want agent-42", claims["subject"])
	}

	// And regular verification must still reject it.
	if _, err := engine.Verify(corrupted); err == nil {
		t.Error("Verify() accepted token that DecodeUnverified exposed")
	}
}

func TestDecodeUnverified_Garbage(t *testing.T) {
	engine := newTestEngine(t, time.Now())

	if _, err := engine.DecodeUnverified("garbage"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Expected ErrMalformed, got %v", err)
	}
}
