package signature

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted secret length in bytes.
// HS256 security degrades below the hash output size, so shorter
// secrets are rejected at construction.
const MinSecretLength = 32

var (
	// ErrWeakSecret is returned by New when the secret is shorter than
	// MinSecretLength bytes.
	ErrWeakSecret = errors.New("signing secret must be at least 32 bytes")

	// ErrTampered is returned by Verify when the token signature does not
	// match the payload.
	ErrTampered = errors.New("token signature mismatch")

	// ErrExpired is returned by Verify when the token carries an expiry
	// claim in the past.
	ErrExpired = errors.New("token expired")

	// ErrMalformed is returned when a token is structurally invalid.
	ErrMalformed = errors.New("malformed token")
)

// Claims is a verified claim set decoded from a token.
type Claims map[string]any

// UnverifiedClaims is a claim set decoded without signature verification.
// It is a distinct type from Claims so callers cannot accidentally treat
// unverified data as verified.
type UnverifiedClaims map[string]any

// Engine signs and verifies receipt tokens with a shared HMAC-SHA256 secret.
// An Engine is safe for concurrent use.
type Engine struct {
	secret []byte
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's clock. Used in tests to control the
// issued-at and expiry claims.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a signing engine with the given shared secret.
// Returns ErrWeakSecret if the secret is shorter than MinSecretLength bytes.
func New(secret []byte, opts ...Option) (*Engine, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w (got %d bytes)", ErrWeakSecret, len(secret))
	}

	e := &Engine{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Sign copies the claim map, stamps an issued-at claim, and returns a
// compact signed token. The input map is never modified.
func (e *Engine) Sign(claims map[string]any) (string, error) {
	return e.sign(claims, 0)
}

// SignWithExpiry behaves like Sign but also stamps an expiry claim ttl
// in the future. A non-positive ttl signs without expiry.
func (e *Engine) SignWithExpiry(claims map[string]any, ttl time.Duration) (string, error) {
	return e.sign(claims, ttl)
}

func (e *Engine) sign(claims map[string]any, ttl time.Duration) (string, error) {
	now := e.now()

	payload := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	payload["iat"] = jwt.NewNumericDate(now)
	if ttl > 0 {
		payload["exp"] = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Verify recomputes the MAC over the token's header and payload and returns
// the decoded claims. Signature mismatch yields ErrTampered, a past expiry
// claim yields ErrExpired, and a structurally invalid token yields
// ErrMalformed. Verification never silently succeeds on bad input.
func (e *Engine) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, jwt.MapClaims{},
		func(t *jwt.Token) (any, error) { return e.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil {
		return nil, classifyVerifyError(err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}

	return Claims(mapClaims), nil
}

// IsValid reports whether a token verifies without surfacing the reason.
func (e *Engine) IsValid(token string) bool {
	_, err := e.Verify(token)
	return err == nil
}

// DecodeUnverified decodes a token's claims without verifying the signature.
// The result is UnverifiedClaims and must never drive an authorization
// decision; it exists for debugging and for inspecting why verification
// failed.
func (e *Engine) DecodeUnverified(token string) (UnverifiedClaims, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}

	return UnverifiedClaims(mapClaims), nil
}

// classifyVerifyError maps jwt library errors onto the package taxonomy.
// Expiry is checked before signature validity because the library wraps
// both into a single validation error.
func classifyVerifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTampered, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		// Unknown verification failure is treated as tampering rather
		// than letting an unrecognized error look benign.
		return fmt.Errorf("%w: %v", ErrTampered, err)
	}
}
