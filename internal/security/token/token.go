package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/accounts/internal/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "accounts"

// Claims is the payload carried by a token. Subject holds the user id; the
// profile fields are only populated on access tokens.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Fullname string `json:"fullname,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a single secret and lifetime.
type Codec struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	parser *jwt.Parser
}

// NewCodec builds a Codec. A nil clock selects the system clock.
func NewCodec(secret string, ttl time.Duration, clk clock.Clock) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	if clk == nil {
		clk = clock.System
	}

	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(issuer),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

// TTL reports the lifetime applied to signed tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign embeds claims in a new token expiring ttl from now. Registered claims
// other than Subject are overwritten.
func (c *Codec) Sign(claims Claims) (string, time.Time, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return "", time.Time{}, ErrMissingSubject
	}

	now := c.clock.Now()
	expiresAt := jwt.NewNumericDate(now.Add(c.ttl))

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: expiresAt,
		// a unique id keeps tokens minted in the same second distinct
		ID: uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt.Time, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
// Failures are ErrExpired or ErrInvalid.
func (c *Codec) Verify(raw string) (Claims, error) {
	var claims Claims

	parsed, err := c.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalid
	}

	return claims, nil
}
