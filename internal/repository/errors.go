package repository

import "errors"

// Common repository errors. Duplicate* errors signal a uniqueness violation
// and are distinguishable from generic storage failure so callers can convert
// them into soft "already exists" results.
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateAccount is returned when trying to create a provider account
	// with an existing (provider, provider_account_id) pair
	ErrDuplicateAccount = errors.New("provider account already exists")

	// ErrDuplicateSession is returned when trying to create a session with an existing token
	ErrDuplicateSession = errors.New("session with this token already exists")

	// ErrDuplicateToken is returned when trying to create a verification token with an existing value
	ErrDuplicateToken = errors.New("verification token already exists")
)
