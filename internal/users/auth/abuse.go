// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/heimursaga/api/internal/platform/apperr"
	"github.com/heimursaga/api/internal/platform/ctxutil"
)

// # Signup Abuse Filter
//
// Heuristic classifier for bot registrations. Two layers:
//
//  1. Static pattern checks against the candidate email and username.
//  2. Velocity checks against registrations from the last rolling hour.
//
// The filter is best-effort. False positives are accepted at low volume;
// the point is to make scripted bulk registration expensive, not to be a
// perfect oracle.

// Bot-like email local-part patterns.
var (
	// emailNumericLocalPart: local part is nothing but 4+ digits.
	emailNumericLocalPart = regexp.MustCompile(`^\d{4,}$`)

	// emailGeneratedName: generated account names like user123, test42.
	emailGeneratedName = regexp.MustCompile(`^(user|test)\d+$`)

	// emailShortPrefixDigits: 1-2 letters followed by 4+ digits (ab12345).
	emailShortPrefixDigits = regexp.MustCompile(`^[a-z]{1,2}\d{4,}$`)
)

// Reserved local parts nobody legitimately registers with.
var reservedLocalParts = map[string]struct{}{
	"admin":  {},
	"root":   {},
	"system": {},
}

// Bot-like username patterns.
var (
	usernameGeneratedName    = regexp.MustCompile(`^(user|test|bot|fake|temp)\d+$`)
	usernameAllDigits        = regexp.MustCompile(`^\d+$`)
	usernameShortPrefixDigit = regexp.MustCompile(`^[a-z]{1,3}\d{3,}$`)
)

// disposableDomains is the fixed denylist of throwaway email providers.
var disposableDomains = map[string]struct{}{
	"mailinator.com":     {},
	"guerrillamail.com":  {},
	"10minutemail.com":   {},
	"tempmail.com":       {},
	"temp-mail.org":      {},
	"throwawaymail.com":  {},
	"yopmail.com":        {},
	"getnada.com":        {},
	"trashmail.com":      {},
	"sharklasers.com":    {},
	"dispostable.com":    {},
	"maildrop.cc":        {},
	"fakeinbox.com":      {},
	"mintemail.com":      {},
	"mytemp.email":       {},
	"mail-temporaire.fr": {},
}

// trailingDigits strips the digit suffix when computing a username's
// alphabetic prefix for the velocity check.
var trailingDigits = regexp.MustCompile(`\d+$`)

// AbuseFilter assesses signup candidates before an account is created.
type AbuseFilter struct {
	velocity VelocityRepository
}

// NewAbuseFilter creates the filter on top of a velocity tracker.
func NewAbuseFilter(velocity VelocityRepository) *AbuseFilter {
	return &AbuseFilter{velocity: velocity}
}

/*
Assess rejects a signup candidate that looks scripted.

# Parameters
  - email, username: already normalized (trimmed, lowercased) by the caller.

# Returns

Nil when the candidate passes. A Forbidden [apperr.AppError] when any
heuristic fires; the rejection reason goes to the log, never to the client.
A velocity-store failure also rejects — when the tracker is unreachable the
filter cannot vouch for the candidate, and letting bursts through unchecked
is the worse failure mode.
*/
func (filter *AbuseFilter) Assess(ctx context.Context, email, username string) error {
	localPart, domain, _ := strings.Cut(email, "@")

	if reason := matchEmailPattern(localPart); reason != "" {
		return filter.reject(ctx, reason, email, username)
	}
	if reason := matchUsernamePattern(username); reason != "" {
		return filter.reject(ctx, reason, email, username)
	}
	if _, denied := disposableDomains[domain]; denied {
		return filter.reject(ctx, "disposable_email_domain", email, username)
	}

	// Velocity heuristics run last; they are the only ones that cost a
	// round trip.
	count, err := filter.velocity.CountLocalPartMatches(ctx, localPart, VelocityWindow)
	if err != nil {
		return err
	}
	if count >= localPartBurstThreshold {
		return filter.reject(ctx, "email_localpart_burst", email, username)
	}

	if prefix := usernameAlphaPrefix(username); len(prefix) >= 3 {
		count, err := filter.velocity.CountUsernamePrefixHits(ctx, prefix, VelocityWindow)
		if err != nil {
			return err
		}
		if count >= usernamePrefixBurstThreshold {
			return filter.reject(ctx, "username_prefix_burst", email, username)
		}
	}

	return nil
}

// Record registers an accepted signup in the velocity tracker so later
// assessments see it. Failures are logged and swallowed; a completed signup
// is never rolled back over bookkeeping.
func (filter *AbuseFilter) Record(ctx context.Context, email, username string) {
	localPart, _, _ := strings.Cut(email, "@")
	prefix := usernameAlphaPrefix(username)

	if err := filter.velocity.TrackSignup(ctx, localPart, prefix, time.Now()); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "signup_velocity_track_failed",
			slog.String("error", err.Error()))
	}
}

// reject logs the heuristic that fired and returns the generic client error.
func (filter *AbuseFilter) reject(ctx context.Context, reason, email, username string) error {
	ctxutil.GetLogger(ctx).WarnContext(ctx, "signup_rejected_by_abuse_filter",
		slog.String("reason", reason),
		slog.String("email", email),
		slog.String("username", username),
	)
	return apperr.Forbidden("signup is not allowed")
}

// matchEmailPattern returns the name of the email heuristic that fired,
// or an empty string.
func matchEmailPattern(localPart string) string {
	switch {
	case emailNumericLocalPart.MatchString(localPart):
		return "email_numeric_localpart"
	case emailGeneratedName.MatchString(localPart):
		return "email_generated_name"
	case emailShortPrefixDigits.MatchString(localPart):
		return "email_short_prefix_digits"
	}
	if _, reserved := reservedLocalParts[localPart]; reserved {
		return "email_reserved_localpart"
	}
	return ""
}

// matchUsernamePattern returns the name of the username heuristic that
// fired, or an empty string.
func matchUsernamePattern(username string) string {
	switch {
	case usernameGeneratedName.MatchString(username):
		return "username_generated_name"
	case usernameAllDigits.MatchString(username):
		return "username_all_digits"
	case usernameShortPrefixDigit.MatchString(username):
		return "username_short_prefix_digits"
	}
	return ""
}

// usernameAlphaPrefix strips trailing digits from a username.
func usernameAlphaPrefix(username string) string {
	return trailingDigits.ReplaceAllString(username, "")
}
