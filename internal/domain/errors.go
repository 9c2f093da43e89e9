package domain

import "errors"

var (
	// ErrInvalidCredentials covers every authentication failure: unknown
	// account, wrong password, unconfirmed account, mismatched refresh or
	// reset token. Callers must not be able to tell these apart.
	ErrInvalidCredentials = errors.New("could not validate credentials")

	// ErrForbidden is an authorization failure for an already-authenticated
	// user, kept distinct from ErrInvalidCredentials on purpose.
	ErrForbidden = errors.New("access forbidden")

	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("account already exists")

	// ErrTransient marks directory or cache I/O failures (timeouts, broken
	// connections). Safe to retry; never an authorization decision.
	ErrTransient = errors.New("temporary backend failure")
)
