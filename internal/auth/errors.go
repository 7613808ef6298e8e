package auth

import "errors"

// Error kinds surfaced to callers. Every error returned by Service and
// Authenticator matches exactly one of these with errors.Is.
var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a username or email uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized marks rejected credentials or refresh tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound signals that no matching account exists.
	ErrNotFound = errors.New("not found")
	// ErrDependency marks a required collaborator output that is missing, such as the avatar.
	ErrDependency = errors.New("dependency missing")
	// ErrInternal wraps unexpected persistence or hashing failures.
	ErrInternal = errors.New("internal error")

	// ErrTokenMissing is returned when no access token was presented.
	ErrTokenMissing = errors.New("access token missing")
	// ErrTokenInvalid covers expired, forged and malformed access tokens alike.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrTokenStale is returned when a valid token names a user that no longer exists.
	ErrTokenStale = errors.New("access token stale")
)

// Store-level errors returned by UserStore implementations.
var (
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a username or email is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrTokenMismatch is returned by a conditional refresh-token update
	// whose expected value no longer matches the stored one.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

var kinds = []error{
	ErrValidation,
	ErrConflict,
	ErrUnauthorized,
	ErrNotFound,
	ErrDependency,
	ErrTokenMissing,
	ErrTokenInvalid,
	ErrTokenStale,
	ErrInternal,
}

// Error is a typed failure carrying a machine-readable kind and a
// human-readable message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(message string, cause error) *Error {
	return &Error{Kind: ErrInternal, Message: message, Err: cause}
}

// KindOf returns the error kind err belongs to. Unclassified errors are ErrInternal.
func KindOf(err error) error {
	var typed *Error
	if errors.As(err, &typed) && typed.Kind != nil {
		return typed.Kind
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// Message returns the human-readable message for err.
func Message(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return "something went wrong"
}
