package model

import "errors"

var (
	// Credential related errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Directory related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrProtectedUser     = errors.New("operation not allowed on this user")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
