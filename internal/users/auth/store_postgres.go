// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heimursaga/api/internal/platform/apperr"
	"github.com/heimursaga/api/internal/platform/dberr"
)

// Unique constraint names from the users schema migration. Referenced when
// translating insert races into machine-readable duplicate errors.
const (
	constraintAccountEmail    = "account_email_key"
	constraintAccountUsername = "account_username_key"
)

// # User Repository (Postgres)

// PostgresUserRepository implements [UserRepository] backed by pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates the Postgres-backed user repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `
	id, email, username, password_hash,
	COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(picture, ''),
	role, is_blocked, is_email_verified, is_premium, created_at`

// scanUser maps one account row into a [User].
func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Picture,
		&user.Role, &user.IsBlocked, &user.IsEmailVerified, &user.IsPremium, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

/*
Create inserts a new account row.

# Returns
  - The generated account id on success.
  - A Forbidden [apperr.AppError] with code EMAIL_ALREADY_IN_USE or
    USERNAME_ALREADY_IN_USE when the insert loses a uniqueness race,
    matching the status the duplicate pre-checks report.

The duplicate pre-checks in the service are advisory; this mapping is what
makes the race window safe.
*/
func (repo *PostgresUserRepository) Create(ctx context.Context, user *User) (int64, error) {
	query := `
		INSERT INTO users.account
			(email, username, password_hash, first_name, last_name, picture, role)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
		RETURNING id`

	var id int64
	err := repo.pool.QueryRow(ctx, query,
		user.Email, user.Username, user.PasswordHash,
		user.FirstName, user.LastName, user.Picture, user.Role,
	).Scan(&id)
	if err != nil {
		if dberr.IsUniqueViolation(err, constraintAccountEmail) {
			return 0, apperr.Forbidden("email is already in use").WithCode(CodeEmailInUse)
		}
		if dberr.IsUniqueViolation(err, constraintAccountUsername) {
			return 0, apperr.Forbidden("username is already in use").WithCode(CodeUsernameInUse)
		}
		return 0, dberr.Wrap(err)
	}

	return id, nil
}

// FindByEmail returns the account with the given email.
func (repo *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users.account WHERE email = $1`

	user, err := scanUser(repo.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return user, nil
}

// FindByLogin returns the non-blocked account matching an email or username.
func (repo *PostgresUserRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	query := `SELECT` + userColumns + `
		FROM users.account
		WHERE (email = $1 OR username = $1)
		  AND is_blocked = FALSE`

	user, err := scanUser(repo.pool.QueryRow(ctx, query, login))
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return user, nil
}

// FindByID returns the account with the given id.
func (repo *PostgresUserRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users.account WHERE id = $1`

	user, err := scanUser(repo.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return user, nil
}

// ExistsByEmail reports whether any account uses the given email.
func (repo *PostgresUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := repo.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users.account WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, dberr.Wrap(err)
	}
	return exists, nil
}

// ExistsByUsername reports whether any account uses the given username.
func (repo *PostgresUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := repo.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users.account WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, dberr.Wrap(err)
	}
	return exists, nil
}

// UpdatePasswordHash replaces the stored credential hash for an account.
func (repo *PostgresUserRepository) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := repo.pool.Exec(ctx,
		`UPDATE users.account SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}
	return nil
}

// # Session Repository (Postgres)

// PostgresSessionRepository implements [SessionRepository] backed by pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionRepository creates the Postgres-backed session repository.
func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
Create binds a session row to a sid.

A sid is never bound to two live sessions at once: rows whose expiry passed
without being flagged are flag-expired first, then the insert is guarded by
an existence check on the flag. Both statements run in one transaction, and
the existence check uses the same predicate as the partial unique index
backing it, so a sid blocked by the guard is exactly a sid that would hit
the index. A sid that holds a live session yields a Conflict error; the
login path maps that conflict to its generic failure message. Session
expiry is fixed at insert; it is never extended.
*/
func (repo *PostgresSessionRepository) Create(ctx context.Context, session *Session) error {
	tx, err := repo.pool.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// Time-expired rows that were never flagged would still occupy the
	// partial unique index and block the insert below.
	_, err = tx.Exec(ctx, `
		UPDATE users.session
		SET is_expired = TRUE, expires_at = now()
		WHERE sid = $1
		  AND is_expired = FALSE
		  AND expires_at <= now()`, session.Sid)
	if err != nil {
		return dberr.Wrap(err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO users.session (sid, user_id, ip_address, user_agent, expires_at)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM users.session
			WHERE sid = $1
			  AND is_expired = FALSE
		)`,
		session.Sid, session.UserID, session.IPAddress, session.UserAgent, session.ExpiresAt)
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("session already active")
	}

	if err := tx.Commit(ctx); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

/*
FindActive resolves a sid into its live session and account.

# Returns
  - (session, user, nil) when a non-expired session exists.
  - (nil, nil, nil) when the sid is anonymous, expired, or unknown — the
    caller treats the request as unauthenticated, never as failed.
  - (nil, nil, err) only on storage failure.

The join pulls the account row so the caller always sees the current role
and block flag, not a snapshot from login time.
*/
func (repo *PostgresSessionRepository) FindActive(ctx context.Context, sid string) (*Session, *User, error) {
	query := `
		SELECT
			s.sid, s.user_id, s.ip_address, s.user_agent, s.expires_at, s.is_expired, s.created_at,
			a.id, a.email, a.username, a.password_hash,
			COALESCE(a.first_name, ''), COALESCE(a.last_name, ''), COALESCE(a.picture, ''),
			a.role, a.is_blocked, a.is_email_verified, a.is_premium, a.created_at
		FROM users.session s
		JOIN users.account a ON a.id = s.user_id
		WHERE s.sid = $1
		  AND s.is_expired = FALSE
		  AND s.expires_at > now()
		ORDER BY s.created_at DESC
		LIMIT 1`

	var session Session
	var user User
	err := repo.pool.QueryRow(ctx, query, sid).Scan(
		&session.Sid, &session.UserID, &session.IPAddress, &session.UserAgent,
		&session.ExpiresAt, &session.IsExpired, &session.CreatedAt,
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Picture,
		&user.Role, &user.IsBlocked, &user.IsEmailVerified, &user.IsPremium, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, dberr.Wrap(err)
	}

	return &session, &user, nil
}

// Expire marks every live session for the sid as expired and stamps the
// expiry to now. The UPDATE is unconditional on prior state, so repeated
// logouts are harmless; the returned count tells the caller whether the sid
// ever existed.
func (repo *PostgresSessionRepository) Expire(ctx context.Context, sid string) (int64, error) {
	tag, err := repo.pool.Exec(ctx,
		`UPDATE users.session SET is_expired = TRUE, expires_at = now() WHERE sid = $1`, sid)
	if err != nil {
		return 0, dberr.Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// # Verification Repository (Postgres)

// PostgresVerificationRepository implements [VerificationRepository] backed by pgx.
type PostgresVerificationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresVerificationRepository creates the Postgres-backed verification repository.
func NewPostgresVerificationRepository(pool *pgxpool.Pool) *PostgresVerificationRepository {
	return &PostgresVerificationRepository{pool: pool}
}

// Create inserts a fresh verification token row.
func (repo *PostgresVerificationRepository) Create(ctx context.Context, verification *EmailVerification) error {
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO users.email_verification (token, email, expires_at)
		VALUES ($1, $2, $3)`,
		verification.Token, verification.Email, verification.ExpiresAt)
	if err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// FindActive returns the token row when it is still consumable.
func (repo *PostgresVerificationRepository) FindActive(ctx context.Context, token string) (*EmailVerification, error) {
	query := `
		SELECT token, email, expires_at, is_expired, created_at
		FROM users.email_verification
		WHERE token = $1
		  AND is_expired = FALSE
		  AND expires_at > now()`

	var verification EmailVerification
	err := repo.pool.QueryRow(ctx, query, token).Scan(
		&verification.Token, &verification.Email,
		&verification.ExpiresAt, &verification.IsExpired, &verification.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return &verification, nil
}

// CountActiveByEmail counts live tokens for an email across both flows.
func (repo *PostgresVerificationRepository) CountActiveByEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := repo.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM users.email_verification
		WHERE email = $1
		  AND is_expired = FALSE
		  AND expires_at > now()`, email,
	).Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err)
	}
	return count, nil
}

/*
consumeToken flips a live token to consumed inside tx and returns its email.

The conditional UPDATE is the single-use guarantee: two concurrent consumers
race on the row, the row lock serializes them, and the loser's WHERE clause
no longer matches. Expiry-by-time and expiry-by-consumption share the
is_expired flag plus the expires_at stamp-to-now, so a consumed token is
indistinguishable from an expired one afterwards.
*/
func consumeToken(ctx context.Context, tx pgx.Tx, token string) (string, error) {
	var email string
	err := tx.QueryRow(ctx, `
		UPDATE users.email_verification
		SET is_expired = TRUE, expires_at = now()
		WHERE token = $1
		  AND is_expired = FALSE
		  AND expires_at > now()
		RETURNING email`, token,
	).Scan(&email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", apperr.NotFound("Token")
		}
		return "", dberr.Wrap(err)
	}
	return email, nil
}

// ConsumeForPasswordUpdate consumes the token and writes the new password
// hash for the token's account in one transaction.
func (repo *PostgresVerificationRepository) ConsumeForPasswordUpdate(ctx context.Context, token, newPasswordHash string) error {
	tx, err := repo.pool.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	email, err := consumeToken(ctx, tx, token)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users.account SET password_hash = $2 WHERE email = $1`, email, newPasswordHash)
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		// Token outlived its account. Roll everything back.
		return apperr.NotFound("User").WithCause(fmt.Errorf("verification token for unknown email"))
	}

	if err := tx.Commit(ctx); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// ConsumeForEmailVerification consumes the token and flips the account's
// email-verified flag in one transaction.
func (repo *PostgresVerificationRepository) ConsumeForEmailVerification(ctx context.Context, token string) error {
	tx, err := repo.pool.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	email, err := consumeToken(ctx, tx, token)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users.account SET is_email_verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User").WithCause(fmt.Errorf("verification token for unknown email"))
	}

	if err := tx.Commit(ctx); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ UserRepository         = (*PostgresUserRepository)(nil)
	_ SessionRepository      = (*PostgresSessionRepository)(nil)
	_ VerificationRepository = (*PostgresVerificationRepository)(nil)
)
