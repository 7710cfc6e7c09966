// Copyright (c) 2026 Heimursaga. All rights reserved.

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimursaga/api/internal/platform/apperr"
)

/*
TestConstructors verifies the closed set of error kinds maps to the right
status codes and machine codes.
*/
func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *apperr.AppError
		wantCode   string
		wantStatus int
	}{
		{"bad_request", apperr.BadRequest("bad input"), "BAD_REQUEST", http.StatusBadRequest},
		{"unauthorized", apperr.Unauthorized("Authentication required"), "UNAUTHORIZED", http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"not_found", apperr.NotFound("User"), "NOT_FOUND", http.StatusNotFound},
		{"conflict", apperr.Conflict("duplicate"), "CONFLICT", http.StatusConflict},
		{"validation", apperr.ValidationError("invalid"), "VALIDATION_ERROR", http.StatusBadRequest},
		{"rate_limited", apperr.RateLimited("slow down"), "RATE_LIMITED", http.StatusTooManyRequests},
		{"internal", apperr.Internal(errors.New("boom")), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
		})
	}
}

/*
TestNotFound_MessageFormat verifies the resource name is embedded in the
client message.
*/
func TestNotFound_MessageFormat(t *testing.T) {
	err := apperr.NotFound("Token")
	assert.Equal(t, "Token not found", err.Error())
}

/*
TestWithCause verifies cause chaining: the cause is reachable via errors.Is
but never changes the client-facing message.
*/
func TestWithCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := apperr.Forbidden("login or password invalid").WithCause(cause)

	assert.Equal(t, "login or password invalid", err.Error())
	assert.True(t, errors.Is(err, cause))
}

/*
TestWithCode verifies the machine code override keeps the base kind's status.
*/
func TestWithCode(t *testing.T) {
	err := apperr.Forbidden("email is already in use").WithCode("EMAIL_ALREADY_IN_USE")

	assert.Equal(t, "EMAIL_ALREADY_IN_USE", err.Code)
	assert.Equal(t, http.StatusForbidden, err.HTTPStatus)
}

/*
TestAs verifies AppError extraction through wrapped chains.
*/
func TestAs(t *testing.T) {
	base := apperr.Conflict("session already active")
	wrapped := fmt.Errorf("creating session: %w", base)

	extracted := apperr.As(wrapped)
	require.NotNil(t, extracted)
	assert.Equal(t, http.StatusConflict, extracted.HTTPStatus)

	assert.Nil(t, apperr.As(errors.New("plain")))
	assert.Nil(t, apperr.As(nil))

	assert.True(t, apperr.IsAppError(wrapped))
	assert.False(t, apperr.IsAppError(errors.New("plain")))
}

/*
TestValidationError_Details verifies field errors ride along.
*/
func TestValidationError_Details(t *testing.T) {
	err := apperr.ValidationError("validation failed",
		apperr.FieldError{Field: "email", Message: "email is required"},
		apperr.FieldError{Field: "password", Message: "password is too short"},
	)

	require.Len(t, err.Details, 2)
	assert.Equal(t, "email", err.Details[0].Field)
}
