// Copyright (c) 2026 Heimursaga. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, secure
// token generation) from the domain logic. It acts as an Infrastructure
// service injected into the Application layer via small interfaces.
package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// # Credential Hashing
//
// Stored password hashes use the format "digest:salt" (both hex-encoded),
// where digest = scrypt(password, salt). A stored value without the ':'
// delimiter is a legacy hash — an unsalted hex SHA-256 digest inherited from
// the pre-migration account base — and is upgraded transparently on the next
// successful login.

const (
	// hashDelimiter separates digest and salt in the stored hash string.
	hashDelimiter = ":"

	// saltLength is the byte length of the random per-password salt.
	saltLength = 16

	// digestLength is the byte length of the derived scrypt digest.
	digestLength = 32

	// scrypt cost parameters (interactive-login profile).
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// HashPassword hashes a plain-text password into the "digest:salt" format.
func HashPassword(plainTextPassword string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	digest, err := scrypt.Key([]byte(plainTextPassword), salt, scryptN, scryptR, scryptP, digestLength)
	if err != nil {
		return "", fmt.Errorf("sec: failed to derive password digest: %w", err)
	}

	return hex.EncodeToString(digest) + hashDelimiter + hex.EncodeToString(salt), nil
}

// CheckPasswordHash compares a plain-text password with its stored hash.
//
// It understands both the current "digest:salt" format and the legacy
// unsalted SHA-256 format. Malformed stored values always return false;
// this function never fails with an error.
func CheckPasswordHash(plainTextPassword, storedHash string) bool {
	if storedHash == "" {
		return false
	}

	if IsLegacyHashFormat(storedHash) {
		return checkLegacyHash(plainTextPassword, storedHash)
	}

	parts := strings.SplitN(storedHash, hashDelimiter, 2)
	expected, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}

	digest, err := scrypt.Key([]byte(plainTextPassword), salt, scryptN, scryptR, scryptP, len(expected))
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(digest, expected) == 1
}

// IsLegacyHashFormat reports whether a stored hash lacks the "digest:salt"
// structure and is therefore eligible for transparent migration.
//
// Any stored value missing the delimiter, or with an empty digest or salt
// component, is treated as legacy.
func IsLegacyHashFormat(storedHash string) bool {
	parts := strings.SplitN(storedHash, hashDelimiter, 2)
	if len(parts) != 2 {
		return true
	}
	return parts[0] == "" || parts[1] == ""
}

// checkLegacyHash verifies a password against the legacy unsalted SHA-256 format.
func checkLegacyHash(plainTextPassword, storedHash string) bool {
	sum := sha256.Sum256([]byte(plainTextPassword))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(storedHash))) == 1
}

// LegacyHashForTesting produces a hash in the legacy unsalted SHA-256 format.
// It exists so that migration paths can be exercised in tests; production
// code must never store new hashes in this format.
func LegacyHashForTesting(plainTextPassword string) string {
	sum := sha256.Sum256([]byte(plainTextPassword))
	return hex.EncodeToString(sum[:])
}
