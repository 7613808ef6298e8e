package token

import "errors"

var (
	// ErrMissingSecret is a configuration error: a codec cannot be built without a key.
	ErrMissingSecret = errors.New("token secret missing")
	// ErrInvalidTTL is a configuration error for non-positive lifetimes.
	ErrInvalidTTL = errors.New("token ttl must be positive")
	// ErrMissingSubject is returned when signing claims without a subject.
	ErrMissingSubject = errors.New("token subject missing")

	// ErrExpired is returned when the token's expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers bad signatures, foreign algorithms and malformed tokens.
	ErrInvalid = errors.New("token invalid")
)
