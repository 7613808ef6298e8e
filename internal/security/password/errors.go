package password

import "errors"

var (
	// ErrEmptyPassword is returned when hashing a blank password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrTooLong is returned for passwords bcrypt would silently truncate.
	ErrTooLong = errors.New("password too long")
	// ErrInvalidCost is returned by NewHasher for costs bcrypt rejects.
	ErrInvalidCost = errors.New("invalid bcrypt cost")
)
