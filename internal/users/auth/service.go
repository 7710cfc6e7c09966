// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heimursaga/api/internal/platform/apperr"
	"github.com/heimursaga/api/internal/platform/constants"
	"github.com/heimursaga/api/internal/platform/ctxutil"
	"github.com/heimursaga/api/internal/platform/sec"
)

// # Auth Service

// ServiceConfig carries the configuration slice the auth service consumes.
// It is constructed once at process start and passed in explicitly; the
// service never reads the environment.
type ServiceConfig struct {
	// BaseURL is the public web origin used to build reset/verify links.
	BaseURL string

	// SessionTTL is the browser session lifetime. Zero means the platform
	// default.
	SessionTTL time.Duration

	// BearerTokenTTL is the stateless JWT lifetime. Zero means the platform
	// default.
	BearerTokenTTL time.Duration

	// VerificationRequestLimit caps how many live verification tokens may
	// exist for one email at a time. The quota is shared between the
	// password-reset and email-confirmation flows.
	VerificationRequestLimit int64

	// IsDevelopment relaxes the CAPTCHA requirement for local work.
	IsDevelopment bool
}

// Service orchestrates login, signup, logout, session validation, password
// reset, and email verification.
type Service struct {
	users         UserRepository
	sessions      SessionRepository
	verifications VerificationRepository
	abuse         *AbuseFilter
	captcha       CaptchaVerifier
	tokens        *sec.TokenService
	emitter       Emitter
	logger        *slog.Logger
	config        ServiceConfig
}

// NewService wires the auth service from its collaborators.
func NewService(
	users UserRepository,
	sessions SessionRepository,
	verifications VerificationRepository,
	abuse *AbuseFilter,
	captcha CaptchaVerifier,
	tokens *sec.TokenService,
	emitter Emitter,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	if config.VerificationRequestLimit < 1 {
		config.VerificationRequestLimit = 1
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = constants.SessionTTL
	}
	if config.BearerTokenTTL <= 0 {
		config.BearerTokenTTL = constants.BearerTokenTTL
	}
	return &Service{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		abuse:         abuse,
		captcha:       captcha,
		tokens:        tokens,
		emitter:       emitter,
		logger:        logger,
		config:        config,
	}
}

// # Inputs

// LoginInput is the credential pair for both login modes. Login matches an
// email or username; the value is compared as provided — callers lowercase
// and trim before calling where the product requires it.
type LoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// SessionContext describes the requesting client for session binding.
type SessionContext struct {
	// Sid is the session id the client already holds (guard-provisioned).
	// Empty means the service mints a fresh one.
	Sid       string
	IPAddress string
	UserAgent string
}

// SignupInput is the raw registration payload.
type SignupInput struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	CaptchaToken string `json:"captchaToken"`
}

// # Error Normalization

// normalize collapses a method's internal failures into one business-facing
// error. An error that already carries a client-kind (4xx) status passes
// through; everything else — storage failures included — is masked behind
// the method's fallback so internals never leak through error text. The
// original cause rides along for server-side logging.
func normalize(err error, fallback *apperr.AppError) error {
	if err == nil {
		return nil
	}
	if appError := apperr.As(err); appError != nil && appError.HTTPStatus < 500 {
		return appError
	}
	return fallback.WithCause(err)
}

// # Login

/*
LoginSession authenticates a credential pair and binds a server session.

# Flow

 1. Resolve exactly one non-blocked user matching the login by email or
    username, and verify the password. Both "no such user" and "wrong
    password" produce the same generic Forbidden error.
 2. Upgrade a legacy-format stored hash in place, best-effort.
 3. Bind a session: reuse the caller-supplied sid when it is not already
    held by an active session, otherwise mint a fresh one. A conflicting
    create (sid raced into activity) fails with the same generic error.

# Returns

The created session, whose sid and expiry the controller writes into the
session cookie.
*/
func (service *Service) LoginSession(ctx context.Context, input LoginInput, client SessionContext) (*Session, error) {
	user, err := service.resolveCredentials(ctx, input)
	if err != nil {
		return nil, err
	}

	sid := client.Sid
	if sid != "" {
		if active, _, err := service.sessions.FindActive(ctx, sid); err != nil || active != nil {
			sid = ""
		}
	}
	if sid == "" {
		minted, err := sec.NewSessionID()
		if err != nil {
			return nil, normalize(err, apperr.Forbidden(MsgLoginInvalid))
		}
		sid = minted
	}

	session := &Session{
		Sid:       sid,
		UserID:    user.ID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		ExpiresAt: time.Now().Add(service.config.SessionTTL),
	}
	if err := service.sessions.Create(ctx, session); err != nil {
		// A conflicting sid gets the same generic message as a bad password.
		return nil, apperr.Forbidden(MsgLoginInvalid).WithCause(err)
	}

	return session, nil
}

// LoginToken authenticates a credential pair and issues a stateless bearer
// token instead of a session. No server-side record of the token is kept;
// expiry is the only invalidation.
func (service *Service) LoginToken(ctx context.Context, input LoginInput, client SessionContext) (string, *User, error) {
	user, err := service.resolveCredentials(ctx, input)
	if err != nil {
		return "", nil, err
	}

	token, err := service.tokens.GenerateToken(
		user.ID, user.Email, user.Username, string(user.Role),
		client.IPAddress, client.UserAgent, service.config.BearerTokenTTL,
	)
	if err != nil {
		return "", nil, normalize(err, apperr.Forbidden(MsgLoginInvalid))
	}

	return token, user, nil
}

// resolveCredentials locates the account for a login attempt and verifies
// the password, upgrading legacy hashes on the way through.
func (service *Service) resolveCredentials(ctx context.Context, input LoginInput) (*User, error) {
	// Any lookup failure — unknown login, blocked account, storage error —
	// collapses into the one generic message.
	user, err := service.users.FindByLogin(ctx, input.Login)
	if err != nil {
		return nil, apperr.Forbidden(MsgLoginInvalid).WithCause(err)
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Forbidden(MsgLoginInvalid)
	}

	// Transparent migration off the pre-platform hash format. A persist
	// failure must not fail the login; the next successful login retries.
	if sec.IsLegacyHashFormat(user.PasswordHash) {
		if upgraded, err := sec.HashPassword(input.Password); err == nil {
			if err := service.users.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
				ctxutil.GetLogger(ctx).WarnContext(ctx, "legacy_hash_upgrade_failed",
					slog.Int64("user_id", user.ID),
					slog.String("error", err.Error()))
			} else {
				user.PasswordHash = upgraded
			}
		}
	}

	return user, nil
}

// # Token Validation

// VerifyToken verifies a bearer JWT's signature and expiry.
//
// Returns the decoded claims, or nil on any verification failure. It never
// returns an error: the guard calls this on the hot path of every request
// and treats all failures as "not authenticated via bearer".
func (service *Service) VerifyToken(token string) *sec.AuthClaims {
	if token == "" {
		return nil
	}
	claims, err := service.tokens.VerifyToken(token)
	if err != nil {
		return nil
	}
	return claims
}

// GetTokenUser resolves a fresh user record from a bearer token.
//
// Unlike the guard's claim-trusting fast path, this re-queries the account
// so blocked flags and role changes are reflected immediately.
func (service *Service) GetTokenUser(ctx context.Context, token string) (*User, error) {
	claims := service.VerifyToken(token)
	if claims == nil {
		return nil, apperr.Unauthorized("invalid token")
	}

	user, err := service.users.FindByID(ctx, claims.UserID())
	if err != nil {
		return nil, apperr.Unauthorized("invalid token").WithCause(err)
	}
	if user.IsBlocked {
		return nil, apperr.Unauthorized("invalid token")
	}

	return user, nil
}

// # Signup

/*
Signup registers a new account.

# Flow

 1. Normalize email and username to trimmed lowercase.
 2. Assess the candidate with the abuse filter.
 3. Verify the CAPTCHA challenge when a provider is configured, except in
    a recognized development context. A configured-but-missing token fails.
 4. Hash the password and check email/username availability. The existence
    checks race with concurrent signups by design; the storage layer's
    unique constraints surface a lost race as the same duplicate error.
 5. Create the account with the base user role and an empty profile.
 6. Record the signup in the velocity tracker and emit the signup-complete
    and admin-notification events, all fire-and-forget.
*/
func (service *Service) Signup(ctx context.Context, input SignupInput, client SessionContext) (*User, error) {
	email := normalizeIdentifier(input.Email)
	username := normalizeIdentifier(input.Username)

	if err := service.abuse.Assess(ctx, email, username); err != nil {
		return nil, normalize(err, apperr.Forbidden("signup is not allowed"))
	}

	if err := service.verifyCaptcha(ctx, input.CaptchaToken, client.IPAddress); err != nil {
		return nil, err
	}

	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, normalize(err, apperr.Forbidden("signup is not allowed"))
	}

	if taken, err := service.users.ExistsByEmail(ctx, email); err != nil {
		return nil, normalize(err, apperr.Forbidden("signup is not allowed"))
	} else if taken {
		return nil, apperr.Forbidden("email is already in use").WithCode(CodeEmailInUse)
	}
	if taken, err := service.users.ExistsByUsername(ctx, username); err != nil {
		return nil, normalize(err, apperr.Forbidden("signup is not allowed"))
	} else if taken {
		return nil, apperr.Forbidden("username is already in use").WithCode(CodeUsernameInUse)
	}

	user := &User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         sec.RoleUser,
	}
	id, err := service.users.Create(ctx, user)
	if err != nil {
		return nil, normalize(err, apperr.Forbidden("signup is not allowed"))
	}
	user.ID = id

	service.abuse.Record(ctx, email, username)

	// Both events are fire-and-forget relative to the HTTP response. The
	// signup-complete consumer drives the verification email send.
	service.emitter.Trigger(ctx, EventSignupComplete, map[string]any{
		FieldEmail:    email,
		FieldUsername: username,
	})
	service.emitter.Trigger(ctx, EventAdminSignupNotice, map[string]any{
		FieldEmail:    email,
		FieldUsername: username,
		FieldMessage:  fmt.Sprintf("new signup: %s (%s)", username, email),
	})

	return user, nil
}

// SignupAndLogin chains signup into an immediate session login.
//
// A signup failure surfaces as-is. A failure of the follow-up login is
// swallowed: the account exists, so the user can simply log in manually.
// Callers must handle a nil session alongside a nil error.
func (service *Service) SignupAndLogin(ctx context.Context, input SignupInput, client SessionContext) (*User, *Session, error) {
	user, err := service.Signup(ctx, input, client)
	if err != nil {
		return nil, nil, err
	}

	session, err := service.LoginSession(ctx, LoginInput{
		Login:    user.Email,
		Password: input.Password,
	}, client)
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "signup_auto_login_failed",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()))
		return user, nil, nil
	}

	return user, session, nil
}

// verifyCaptcha enforces the signup challenge when a provider is configured.
func (service *Service) verifyCaptcha(ctx context.Context, token, remoteIP string) error {
	if !service.captcha.Enabled() || service.config.IsDevelopment {
		return nil
	}
	if token == "" {
		return apperr.Forbidden("captcha verification required")
	}

	ok, err := service.captcha.Verify(ctx, token, remoteIP)
	if err != nil {
		return apperr.Forbidden("captcha verification failed").WithCause(err)
	}
	if !ok {
		return apperr.Forbidden("captcha verification failed")
	}
	return nil
}

// normalizeIdentifier applies the storage normalization for emails and
// usernames: trimmed, lowercased.
func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// # Logout & Session Validation

// Logout expires every session row bound to the sid.
//
// A sid that never had a session fails with "session not found"; a sid
// whose sessions are already expired does not — re-expiring is a no-op
// update, which is what makes logout idempotent. The controller clears
// the cookie regardless of this outcome.
func (service *Service) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return apperr.Forbidden(MsgSessionNotFound)
	}

	affected, err := service.sessions.Expire(ctx, sid)
	if err != nil {
		return normalize(err, apperr.Forbidden(MsgSessionNotFound))
	}
	if affected == 0 {
		return apperr.Forbidden(MsgSessionNotFound)
	}
	return nil
}

// ValidateSession resolves a sid into an identity snapshot.
//
// Returns nil for a missing, expired, or unknown sid, for a blocked user,
// and on storage failure alike — this runs on every guarded request and
// must never abort the pipeline. The role comes from the joined account
// row, so session-path authorization always sees the current role.
func (service *Service) ValidateSession(ctx context.Context, sid string) *sec.Identity {
	if sid == "" {
		return nil
	}

	session, user, err := service.sessions.FindActive(ctx, sid)
	if err != nil || session == nil || user == nil || user.IsBlocked {
		return nil
	}

	return &sec.Identity{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		Username: user.Username,
		Sid:      session.Sid,
	}
}

// # Guard Adapters
//
// These two methods satisfy the middleware's Identifier interface. The
// bearer path trusts the signed claims until expiry; the session path
// re-derives identity from the store on every request.

// IdentifyToken resolves a bearer token into an identity, or nil.
func (service *Service) IdentifyToken(token string) *sec.Identity {
	claims := service.VerifyToken(token)
	if claims == nil {
		return nil
	}
	return &sec.Identity{
		UserID:   claims.UserID(),
		Role:     sec.Role(claims.Role),
		Email:    claims.Email,
		Username: claims.Username,
	}
}

// IdentifySession resolves a session cookie's sid into an identity, or nil.
func (service *Service) IdentifySession(ctx context.Context, sid string) *sec.Identity {
	return service.ValidateSession(ctx, sid)
}

// # Password Reset Flow

// ResetPassword issues a password-reset token for the email and emits the
// reset link event.
//
// An unknown email is a BadRequest — this deliberately leaks account
// existence, matching the product's reset UX. Outstanding-token volume is
// capped per email across both verification flows.
func (service *Service) ResetPassword(ctx context.Context, email string) error {
	email = normalizeIdentifier(email)
	if email == "" {
		return apperr.BadRequest("email is required")
	}

	if _, err := service.users.FindByEmail(ctx, email); err != nil {
		return apperr.BadRequest("email not found").WithCause(err)
	}

	token, err := service.issueVerification(ctx, email, ResetTokenTTL)
	if err != nil {
		return err
	}

	service.emitter.Trigger(ctx, EventPasswordResetEmail, map[string]any{
		FieldEmail: email,
		"link":     service.config.BaseURL + "/reset-password?token=" + token,
	})
	return nil
}

// UpdatePassword consumes a reset token and sets the new password, both in
// one transaction.
//
// Every consumption failure — expired, never existed, already used —
// surfaces as the same "token is expired or invalid" error.
func (service *Service) UpdatePassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperr.BadRequest("token is required")
	}
	if newPassword == "" {
		return apperr.BadRequest("password is required")
	}

	passwordHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return normalize(err, apperr.Forbidden(MsgTokenInvalid))
	}

	if err := service.verifications.ConsumeForPasswordUpdate(ctx, token, passwordHash); err != nil {
		return apperr.Forbidden(MsgTokenInvalid).WithCause(err)
	}
	return nil
}

// ValidateToken checks that a verification token is still consumable,
// without consuming it. Used by the reset form's pre-flight check.
func (service *Service) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return apperr.BadRequest("token is required")
	}
	if _, err := service.verifications.FindActive(ctx, token); err != nil {
		return apperr.Forbidden(MsgTokenInvalid).WithCause(err)
	}
	return nil
}

// # Email Verification Flow

// SendEmailVerification issues an email-confirmation token and emits the
// verification link event. Shares the outstanding-token quota with the
// password-reset flow.
func (service *Service) SendEmailVerification(ctx context.Context, email string) error {
	email = normalizeIdentifier(email)
	if email == "" {
		return apperr.BadRequest("email is required")
	}

	token, err := service.issueVerification(ctx, email, VerificationTokenTTL)
	if err != nil {
		return err
	}

	service.emitter.Trigger(ctx, EventVerificationEmail, map[string]any{
		FieldEmail: email,
		"link":     service.config.BaseURL + "/verify-email?token=" + token,
	})
	return nil
}

// VerifyEmail consumes a confirmation token and marks the account's email
// verified, both in one transaction, then emits the welcome event.
func (service *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperr.BadRequest("token is required")
	}

	verification, err := service.verifications.FindActive(ctx, token)
	if err != nil {
		return apperr.Forbidden(MsgTokenInvalid).WithCause(err)
	}

	if err := service.verifications.ConsumeForEmailVerification(ctx, token); err != nil {
		return apperr.Forbidden(MsgTokenInvalid).WithCause(err)
	}

	service.emitter.Trigger(ctx, EventWelcomeEmail, map[string]any{
		FieldEmail: verification.Email,
	})
	return nil
}

// ResendEmailVerification re-issues a confirmation token for the
// authenticated user.
func (service *Service) ResendEmailVerification(ctx context.Context, identity *sec.Identity) error {
	if identity == nil || identity.UserID == 0 {
		return apperr.Unauthorized("Authentication required")
	}

	user, err := service.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return normalize(err, apperr.NotFound("User"))
	}
	if user.IsEmailVerified {
		return apperr.BadRequest("email is already verified")
	}

	return service.SendEmailVerification(ctx, user.Email)
}

// issueVerification enforces the per-email token quota and creates a fresh
// token row.
func (service *Service) issueVerification(ctx context.Context, email string, timeToLive time.Duration) (string, error) {
	outstanding, err := service.verifications.CountActiveByEmail(ctx, email)
	if err != nil {
		return "", normalize(err, apperr.Forbidden(MsgTokenInvalid))
	}
	if outstanding >= service.config.VerificationRequestLimit {
		return "", apperr.Forbidden("too many verification requests")
	}

	token, err := sec.NewVerificationToken()
	if err != nil {
		return "", normalize(err, apperr.Forbidden(MsgTokenInvalid))
	}

	verification := &EmailVerification{
		Token:     token,
		Email:     email,
		ExpiresAt: time.Now().Add(timeToLive),
	}
	if err := service.verifications.Create(ctx, verification); err != nil {
		return "", normalize(err, apperr.Forbidden(MsgTokenInvalid))
	}

	return token, nil
}

// # Current User

// CurrentUser loads the fresh account record for an authenticated identity.
func (service *Service) CurrentUser(ctx context.Context, identity *sec.Identity) (*User, error) {
	if identity == nil || identity.UserID == 0 {
		return nil, apperr.Unauthorized("Authentication required")
	}

	user, err := service.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("Authentication required").WithCause(err)
	}
	return user, nil
}
