package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClass tags a token with the single operation it may be used for. The
// class lives inside the signed payload, so a refresh token presented to an
// access-only check fails verification no matter which endpoint received it.
type TokenClass string

const (
	ClassAccess        TokenClass = "access"
	ClassRefresh       TokenClass = "refresh"
	ClassEmailConfirm  TokenClass = "email_confirm"
	ClassPasswordReset TokenClass = "password_reset"
)

var (
	// ErrInvalidToken covers malformed payloads and bad signatures.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is kept separate from ErrInvalidToken for observability;
	// both collapse to the same generic message at the API boundary.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongTokenClass means a structurally valid token of another class.
	ErrWrongTokenClass = errors.New("token class mismatch")
)

// TokenClaims is the signed payload of every token the service issues.
// Subject carries the user's email.
type TokenClaims struct {
	Class string `json:"class"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies class-tagged identity tokens.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenCodec builds a codec for the given HMAC algorithm. Only HS256 and
// HS512 are accepted; any other configuration is rejected here so a typo in
// the environment kills the process at startup instead of at first login.
// The clock is injectable for deterministic tests; nil means time.Now.
func NewTokenCodec(secret, algorithm string, now func() time.Time) (*TokenCodec, error) {
	var method jwt.SigningMethod
	switch algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("signing algorithm must be HS256 or HS512, got %q", algorithm)
	}
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{secret: []byte(secret), method: method, now: now}, nil
}

// Issue creates a signed token for the subject with the given class and TTL.
// A random jti keeps two tokens issued within the same second distinct.
func (c *TokenCodec) Issue(subject string, class TokenClass, ttl time.Duration) (string, error) {
	issued := c.now()
	claims := TokenClaims{
		Class: string(class),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			Issuer:    "contact-vault",
		},
	}

	token := jwt.NewWithClaims(c.method, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a token string and checks its class tag.
func (c *TokenCodec) Verify(raw string, want TokenClass) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}), jwt.WithTimeFunc(c.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Class != string(want) {
		return nil, ErrWrongTokenClass
	}

	return claims, nil
}

// RemainingLife reports how long verified claims stay valid from now. Used to
// cap identity-cache TTLs at the token's own lifetime.
func (c *TokenCodec) RemainingLife(claims *TokenClaims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(c.now())
}

// HashToken returns the SHA-256 hex digest of a raw token. Only digests are
// persisted on the user record, so a leaked users table cannot replay
// refresh or reset tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
