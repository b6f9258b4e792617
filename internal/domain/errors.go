package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Signup flow errors. Each step of the signup state machine fails with exactly one of these.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidState         = errors.New("invalid state")
	ErrTokenExchange        = errors.New("failed to exchange authorization code")
	ErrProfileFetch         = errors.New("failed to fetch user info from google")
	ErrEmailMismatch        = errors.New("email mismatch")
	ErrUnverifiedEmail      = errors.New("google email is not verified")
	ErrVerificationNotFound = errors.New("verification code expired or not found")
	ErrVerificationExpired  = errors.New("verification code has expired")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrAccountExists        = errors.New("user already exists, please log in instead")
	ErrAccountCreation      = errors.New("database error creating new user")
)
