// Copyright (c) 2026 Heimursaga. All rights reserved.

/*
Package auth implements the user identity and session management layer.

It defines the core domain entities (User, Session, EmailVerification) and
logic for authentication, authorization, and account lifecycle.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to user identity.
*/
package auth

import (
	"time"

	"github.com/heimursaga/api/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the Heimursaga platform.
type User struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	PasswordHash    string    `json:"-"` // Explicitly omitted from JSON for security.
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	Picture         string    `json:"picture,omitempty"`
	Role            sec.Role  `json:"role"`
	IsBlocked       bool      `json:"-"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsPremium       bool      `json:"isPremium"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Session represents one authenticated browser/device context.
//
// A sid may be pre-allocated before a user authenticates against it — the
// guard assigns an anonymous sid to every request that lacks one, and login
// binds the session row to that sid. A session's expiry is never extended;
// renewing means creating a new session.
type Session struct {
	Sid       string    `json:"sid"`
	UserID    int64     `json:"userId"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsExpired bool      `json:"isExpired"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmailVerification is a single-use, time-limited token record.
//
// The same record shape serves both password reset (3h expiry) and email
// confirmation (24h expiry); the two flows are distinguished only by which
// endpoint consumes the token. Consumption flips IsExpired and stamps
// ExpiresAt to now, atomically with the effect the token authorizes.
type EmailVerification struct {
	Token     string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsExpired bool      `json:"isExpired"`
	CreatedAt time.Time `json:"createdAt"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail    = "email"
	FieldUsername = "username"
	FieldPassword = "password"
	FieldLogin    = "login"
	FieldToken    = "token"
	FieldMessage  = "message"
)
