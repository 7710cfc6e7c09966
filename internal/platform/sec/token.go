// Copyright (c) 2026 Heimursaga. All rights reserved.

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// # Secure Token Generation

const (
	// SessionIDLength is the byte length of a freshly minted session id.
	// 32 bytes = 256 bits of entropy; collisions are negligible for the
	// lifetime of the system.
	SessionIDLength = 32

	// VerificationTokenLength is the byte length of an email verification or
	// password reset token.
	VerificationTokenLength = 32
)

// GenerateSecureToken returns a URL-safe random string built from
// byteLength bytes of cryptographic randomness.
func GenerateSecureToken(byteLength int) (string, error) {
	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewSessionID mints an opaque session identifier (sid).
func NewSessionID() (string, error) {
	return GenerateSecureToken(SessionIDLength)
}

// NewVerificationToken mints an opaque single-use verification token.
func NewVerificationToken() (string, error) {
	return GenerateSecureToken(VerificationTokenLength)
}
