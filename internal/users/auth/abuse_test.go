// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimursaga/api/internal/users/auth"
)

/*
TestAbuseFilter_StaticPatterns drives the pattern heuristics with the
canonical accept/reject examples.
*/
func TestAbuseFilter_StaticPatterns(t *testing.T) {
	filter := auth.NewAbuseFilter(&memVelocity{})
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		username string
		rejected bool
	}{
		{"bot_disposable_domain", "bot7@mailinator.com", "bot7", true},
		{"legit_user", "jane.doe@gmail.com", "jane_doe", false},
		{"numeric_localpart", "12345@gmail.com", "somebody", true},
		{"generated_email_user", "user42@gmail.com", "somebody", true},
		{"generated_email_test", "test9@gmail.com", "somebody", true},
		{"reserved_admin", "admin@gmail.com", "somebody", true},
		{"reserved_root", "root@gmail.com", "somebody", true},
		{"reserved_system", "system@gmail.com", "somebody", true},
		{"short_prefix_digits_email", "ab12345@gmail.com", "somebody", true},
		{"generated_username", "somebody@gmail.com", "temp123", true},
		{"all_digit_username", "somebody@gmail.com", "20260901", true},
		{"short_prefix_digit_username", "somebody@gmail.com", "abc123", true},
		{"disposable_yopmail", "somebody@yopmail.com", "somebody", true},
		{"short_username_ok", "somebody@gmail.com", "jo", false},
		{"digits_inside_ok", "somebody@gmail.com", "jane2026doe", false},
		{"admin_substring_ok", "administrator.office@gmail.com", "adminka", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := filter.Assess(ctx, tt.email, tt.username)
			if tt.rejected {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestAbuseFilter_LocalPartBurst verifies the fuzzy substring heuristic:
three recent signups sharing a fuzzed local-part block the next lookalike,
while stale entries outside the window do not count.
*/
func TestAbuseFilter_LocalPartBurst(t *testing.T) {
	velocity := &memVelocity{}
	filter := auth.NewAbuseFilter(velocity)
	ctx := context.Background()

	for _, localPart := range []string{"journeybot1", "journeybot2", "journeybot3"} {
		require.NoError(t, velocity.TrackSignup(ctx, localPart, "", time.Now()))
	}

	// Candidate containing the shared fragment is rejected.
	assert.Error(t, filter.Assess(ctx, "journeybot4@gmail.com", "somebody"))

	// Unrelated candidate passes.
	assert.NoError(t, filter.Assess(ctx, "maria.keller@gmail.com", "mariakeller"))

	// The same burst an hour and a half ago is forgotten.
	stale := &memVelocity{}
	for _, localPart := range []string{"journeybot1", "journeybot2", "journeybot3"} {
		require.NoError(t, stale.TrackSignup(ctx, localPart, "", time.Now().Add(-90*time.Minute)))
	}
	staleFilter := auth.NewAbuseFilter(stale)
	assert.NoError(t, staleFilter.Assess(ctx, "journeybot4@gmail.com", "somebody"))
}

/*
TestAbuseFilter_UsernamePrefixBurst verifies the username prefix heuristic:
five recent signups sharing an alphabetic prefix block the sixth, while a
prefix shorter than three letters is exempt.
*/
func TestAbuseFilter_UsernamePrefixBurst(t *testing.T) {
	velocity := &memVelocity{}
	filter := auth.NewAbuseFilter(velocity)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, velocity.TrackSignup(ctx, "", "wanderer", time.Now()))
	}

	// "wanderer777" shares the prefix with five recent signups.
	assert.Error(t, filter.Assess(ctx, "somebody.real@gmail.com", "wanderer777"))

	// Four hits stay under the threshold.
	under := &memVelocity{}
	for i := 0; i < 4; i++ {
		require.NoError(t, under.TrackSignup(ctx, "", "wanderer", time.Now()))
	}
	assert.NoError(t, auth.NewAbuseFilter(under).Assess(ctx, "somebody.real@gmail.com", "wanderer777"))
}
