package domain

import "errors"

// Authentication and authorization failures.
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidField       = errors.New("field cannot be updated")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// Generic request and record failures.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("record not found")
)
