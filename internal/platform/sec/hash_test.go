// Copyright (c) 2026 Heimursaga. All rights reserved.

package sec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimursaga/api/internal/platform/sec"
)

/*
TestHashPassword_Format checks the "digest:salt" structure of fresh hashes.
*/
func TestHashPassword_Format(t *testing.T) {
	hash, err := sec.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	parts := strings.SplitN(hash, ":", 2)
	require.Len(t, parts, 2)
	assert.NotEmpty(t, parts[0])
	assert.NotEmpty(t, parts[1])
	assert.False(t, sec.IsLegacyHashFormat(hash))
}

/*
TestHashPassword_UniqueSalt verifies two hashes of one password differ.
*/
func TestHashPassword_UniqueSalt(t *testing.T) {
	first, err := sec.HashPassword("password123")
	require.NoError(t, err)
	second, err := sec.HashPassword("password123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, sec.CheckPasswordHash("password123", first))
	assert.True(t, sec.CheckPasswordHash("password123", second))
}

/*
TestCheckPasswordHash covers both hash formats and malformed stored values.
The function must never panic or error: malformed input is simply false.
*/
func TestCheckPasswordHash(t *testing.T) {
	modern, err := sec.HashPassword("swordfish")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		stored   string
		want     bool
	}{
		{"modern_match", "swordfish", modern, true},
		{"modern_wrong_password", "sword", modern, false},
		{"legacy_match", "swordfish", sec.LegacyHashForTesting("swordfish"), true},
		{"legacy_wrong_password", "other", sec.LegacyHashForTesting("swordfish"), false},
		{"legacy_uppercase_stored", "swordfish", strings.ToUpper(sec.LegacyHashForTesting("swordfish")), true},
		{"empty_stored", "swordfish", "", false},
		{"garbage_stored", "swordfish", "not-a-hash-at-all", false},
		{"malformed_hex_digest", "swordfish", "zzzz:abcd", false},
		{"malformed_hex_salt", "swordfish", "abcd:zzzz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sec.CheckPasswordHash(tt.password, tt.stored))
		})
	}
}

/*
TestIsLegacyHashFormat verifies the structural marker detection that drives
transparent hash migration.
*/
func TestIsLegacyHashFormat(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		legacy bool
	}{
		{"legacy_sha256", sec.LegacyHashForTesting("pw"), true},
		{"no_delimiter", "abcdef0123456789", true},
		{"empty_digest", ":abcd", true},
		{"empty_salt", "abcd:", true},
		{"modern_shape", "abcd:ef01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.legacy, sec.IsLegacyHashFormat(tt.stored))
		})
	}
}
