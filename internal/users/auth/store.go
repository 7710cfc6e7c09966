// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"context"
	"time"
)

// # Repository Contracts
//
// The service layer depends on these interfaces only. Production wiring uses
// the Postgres and Redis implementations in this package; tests substitute
// in-memory fakes.

// UserRepository persists user accounts.
type UserRepository interface {
	// Create inserts a new account row and returns its generated id.
	// A unique violation on email or username surfaces as a Forbidden
	// error carrying a machine-readable duplicate code.
	Create(ctx context.Context, user *User) (int64, error)

	// FindByEmail returns the account with the given email, or a NotFound
	// error when no such account exists.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByLogin returns the non-blocked account whose email or username
	// equals login, or a NotFound error. Blocked accounts are invisible to
	// this lookup so they cannot authenticate.
	FindByLogin(ctx context.Context, login string) (*User, error)

	// FindByID returns the account with the given id, or a NotFound error.
	FindByID(ctx context.Context, id int64) (*User, error)

	// ExistsByEmail and ExistsByUsername power the duplicate pre-checks on
	// signup. The unique constraints remain the real enforcement.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// UpdatePasswordHash replaces the stored credential hash. Used by the
	// transparent legacy-hash upgrade after a successful login.
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error
}

// SessionRepository persists browser sessions.
type SessionRepository interface {
	// Create inserts a session row for the given sid. It fails with a
	// Conflict error when a non-expired session already holds the sid, so
	// a sid is never bound to two live sessions at once.
	Create(ctx context.Context, session *Session) error

	// FindActive returns the non-expired session for a sid together with
	// its user (fresh role, block flag). An anonymous or expired sid yields
	// (nil, nil, nil) — absence of a session is not an error.
	FindActive(ctx context.Context, sid string) (*Session, *User, error)

	// Expire marks every live session row for the sid as expired and
	// returns the number of rows affected. Zero rows means the sid never
	// had a session.
	Expire(ctx context.Context, sid string) (int64, error)
}

// VerificationRepository persists single-use email verification tokens,
// shared between the password-reset and email-confirmation flows.
type VerificationRepository interface {
	// Create inserts a fresh token row.
	Create(ctx context.Context, verification *EmailVerification) error

	// FindActive returns the token row when it is unconsumed and unexpired,
	// or a NotFound error otherwise. Used by the pure validity probe.
	FindActive(ctx context.Context, token string) (*EmailVerification, error)

	// CountActiveByEmail counts live tokens for an email across both flows.
	// The request-rate cap reads this number.
	CountActiveByEmail(ctx context.Context, email string) (int64, error)

	// ConsumeForPasswordUpdate atomically consumes the token and writes the
	// new password hash for the token's account, in one transaction. A
	// token that is missing, expired, or already consumed yields a NotFound
	// error and leaves the account untouched.
	ConsumeForPasswordUpdate(ctx context.Context, token, newPasswordHash string) error

	// ConsumeForEmailVerification atomically consumes the token and flips
	// the account's email-verified flag, in one transaction.
	ConsumeForEmailVerification(ctx context.Context, token string) error
}

// VelocityRepository tracks recent signup activity for the abuse filter.
//
// Entries live in volatile storage with a TTL slightly above the inspection
// window; losing them only relaxes burst detection, never correctness.
type VelocityRepository interface {
	// TrackSignup records a successful registration's email local-part and
	// username prefix at the current time.
	TrackSignup(ctx context.Context, emailLocalPart, usernamePrefix string, at time.Time) error

	// CountLocalPartMatches counts registrations inside the rolling window
	// whose email local-part, with its last 3 characters stripped, is a
	// substring of the candidate local-part.
	CountLocalPartMatches(ctx context.Context, candidateLocalPart string, window time.Duration) (int64, error)

	// CountUsernamePrefixHits counts registrations inside the rolling
	// window that share the given alphabetic username prefix.
	CountUsernamePrefixHits(ctx context.Context, prefix string, window time.Duration) (int64, error)
}
