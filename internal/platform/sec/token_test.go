// Copyright (c) 2026 Heimursaga. All rights reserved.

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimursaga/api/internal/platform/sec"
)

/*
TestNewSessionID verifies distinctness and a sane encoded length.
*/
func TestNewSessionID(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 1000; i++ {
		sid, err := sec.NewSessionID()
		require.NoError(t, err)
		require.NotEmpty(t, sid)

		_, dup := seen[sid]
		require.False(t, dup, "session id collision")
		seen[sid] = struct{}{}
	}
}

/*
TestNewVerificationToken verifies distinctness of issued tokens.
*/
func TestNewVerificationToken(t *testing.T) {
	first, err := sec.NewVerificationToken()
	require.NoError(t, err)
	second, err := sec.NewVerificationToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEmpty(t, first)
}

/*
TestRole_OneOf checks role membership used by the roles guard.
*/
func TestRole_OneOf(t *testing.T) {
	assert.True(t, sec.RoleAdmin.OneOf(sec.RoleAdmin, sec.RoleCreator))
	assert.True(t, sec.RoleCreator.OneOf(sec.RoleCreator))
	assert.False(t, sec.RoleUser.OneOf(sec.RoleAdmin, sec.RoleCreator))
	assert.False(t, sec.RoleUser.OneOf())
}
