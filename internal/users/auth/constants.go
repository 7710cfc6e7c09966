// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import "time"

// # Authentication Constraints

// Session and bearer token lifetimes are configuration, not constants:
// they arrive through [ServiceConfig] and default to the platform values.
const (
	// ResetTokenTTL is the duration a password reset token remains valid.
	// Short-lived (3 hours) for security.
	ResetTokenTTL = 3 * time.Hour

	// VerificationTokenTTL is the duration an email confirmation token
	// remains valid. Long-lived (24 hours) as users might not check email
	// immediately.
	VerificationTokenTTL = 24 * time.Hour

	// VelocityWindow is the rolling window the abuse filter inspects for
	// registration bursts.
	VelocityWindow = 1 * time.Hour

	// localPartBurstThreshold rejects a signup when this many recent
	// registrations share a fuzzy email local-part with the candidate.
	localPartBurstThreshold = 3

	// usernamePrefixBurstThreshold rejects a signup when this many recent
	// registrations share the candidate's alphabetic username prefix.
	usernamePrefixBurstThreshold = 5
)

// # Messages & Codes

const (
	// MsgLoginInvalid is deliberately identical for "no such user" and
	// "wrong password" — enumeration resistance.
	MsgLoginInvalid = "login or password invalid"

	// MsgTokenInvalid is deliberately identical for expired, never-existed,
	// and already-consumed verification tokens.
	MsgTokenInvalid = "token is expired or invalid"

	// MsgSessionNotFound is returned by logout when no session row matches.
	MsgSessionNotFound = "session not found"

	// CodeEmailInUse and CodeUsernameInUse are machine-readable duplicate
	// codes surfaced on signup.
	CodeEmailInUse    = "EMAIL_ALREADY_IN_USE"
	CodeUsernameInUse = "USERNAME_ALREADY_IN_USE"
)

// # Event Names
//
// Events are fire-and-forget side effects emitted toward the notification
// channel (email sending, admin alerts). Delivery is out of scope for this
// core; the emitter is an opaque sink.
const (
	EventSignupComplete     = "auth.signup.complete"
	EventAdminSignupNotice  = "auth.signup.admin_notice"
	EventPasswordResetEmail = "auth.password_reset.email"
	EventVerificationEmail  = "auth.verification.email"
	EventWelcomeEmail       = "auth.welcome.email"
)
