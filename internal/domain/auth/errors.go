package auth

import "errors"

// ErrEmailExists indicates a duplicate email address at registration.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidCredentials indicates a login attempt with a wrong email or password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidSession indicates a missing, expired, or unknown session token.
var ErrInvalidSession = errors.New("invalid or expired session")

// ErrAccountDisabled indicates a login or session check against a
// deactivated account.
var ErrAccountDisabled = errors.New("account is disabled")
