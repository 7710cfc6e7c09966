// Copyright (c) 2026 Heimursaga. All rights reserved.

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimursaga/api/internal/platform/sec"
)

/*
TestNewTokenService_RequiresSecret ensures the service fails closed on an
empty signing secret.
*/
func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := sec.NewTokenService("", "heimursaga.com")
	require.Error(t, err)

	service, err := sec.NewTokenService("test-secret", "heimursaga.com")
	require.NoError(t, err)
	assert.NotNil(t, service)
}

/*
TestTokenService_RoundTrip signs a token and verifies the decoded claims.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	service, err := sec.NewTokenService("test-secret", "heimursaga.com")
	require.NoError(t, err)

	token, err := service.GenerateToken(42, "jane@heimursaga.com", "jane", "creator", "10.0.0.1", "test-agent", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID())
	assert.Equal(t, "jane@heimursaga.com", claims.Email)
	assert.Equal(t, "jane", claims.Username)
	assert.Equal(t, "creator", claims.Role)
	assert.Equal(t, "10.0.0.1", claims.IPAddress)
	assert.Equal(t, "test-agent", claims.UserAgent)
	assert.Equal(t, "heimursaga.com", claims.Issuer)
}

/*
TestTokenService_Expired verifies that expiry is enforced at verification.
*/
func TestTokenService_Expired(t *testing.T) {
	service, err := sec.NewTokenService("test-secret", "heimursaga.com")
	require.NoError(t, err)

	token, err := service.GenerateToken(1, "a@b.c", "a", "user", "", "", -time.Minute)
	require.NoError(t, err)

	_, err = service.VerifyToken(token)
	assert.Error(t, err)
}

/*
TestTokenService_WrongSecret verifies signature validation across services.
*/
func TestTokenService_WrongSecret(t *testing.T) {
	signer, err := sec.NewTokenService("secret-one", "heimursaga.com")
	require.NoError(t, err)
	verifier, err := sec.NewTokenService("secret-two", "heimursaga.com")
	require.NoError(t, err)

	token, err := signer.GenerateToken(1, "a@b.c", "a", "user", "", "", time.Hour)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

/*
TestTokenService_Garbage verifies malformed input is rejected, not panicked on.
*/
func TestTokenService_Garbage(t *testing.T) {
	service, err := sec.NewTokenService("test-secret", "heimursaga.com")
	require.NoError(t, err)

	for _, input := range []string{"", "not.a.jwt", "a.b", "..."} {
		_, err := service.VerifyToken(input)
		assert.Error(t, err, "input %q must not verify", input)
	}
}
