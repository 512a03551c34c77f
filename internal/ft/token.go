package ft

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operation scopes a signed URL to a single storage action.
type Operation string

const (
	OpGet Operation = "get"
	OpPut Operation = "put"
)

// DefaultSignedURLTTL is how long an issued token stays redeemable when the
// configuration does not say otherwise.
const DefaultSignedURLTTL = 15 * time.Minute

// TokenIssuer mints and redeems the compact tokens embedded in signed URLs.
// A token binds {operation, blob key, expiry} and carries an HMAC-SHA256
// integrity tag, so a holder cannot alter the key or stretch the expiry.
// Tokens are opaque to every caller outside this type.
type TokenIssuer struct {
	secret []byte
	clock  Clock
}

// NewTokenIssuer creates a TokenIssuer signing with the given secret.
func NewTokenIssuer(secret []byte, clock Clock) *TokenIssuer {
	if clock == nil {
		clock = RealClock{}
	}
	return &TokenIssuer{secret: secret, clock: clock}
}

type urlClaims struct {
	Operation string `json:"op"`
	Key       string `json:"key"`
	jwt.RegisteredClaims
}

// Issue returns a token authorizing op on key until ttl elapses.
func (t *TokenIssuer) Issue(op Operation, key string, ttl time.Duration) (string, error) {
	claims := urlClaims{
		Operation: string(op),
		Key:       key,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(t.clock.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Redeem validates token and returns the blob key it authorizes.
// It fails with ErrTokenExpired when the expiry has passed,
// ErrOperationMismatch when the token was issued for a different operation,
// and ErrTokenInvalid when the token cannot be parsed or its signature
// does not verify.
func (t *TokenIssuer) Redeem(token string, expected Operation) (string, error) {
	var claims urlClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if claims.Operation != string(expected) {
		return "", fmt.Errorf("%w: token is for %q, not %q", ErrOperationMismatch, claims.Operation, expected)
	}
	return claims.Key, nil
}
