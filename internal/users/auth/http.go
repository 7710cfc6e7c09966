// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimursaga/api/internal/platform/ctxutil"
	"github.com/heimursaga/api/internal/platform/middleware"
	requestutil "github.com/heimursaga/api/internal/platform/request"
	"github.com/heimursaga/api/internal/platform/respond"
	"github.com/heimursaga/api/internal/platform/validate"
)

// # HTTP Controller

// Handler exposes the authentication HTTP surface.
type Handler struct {
	service *Service
}

// NewHandler creates the auth HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the /auth endpoints with their access policies.
//
// Identity resolution runs at the server level; each route here declares its
// own policy, enforced by the Require/RequireRoles pair.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	route := func(method, pattern string, policy middleware.Policy, handlerFunc http.HandlerFunc) {
		router.With(middleware.Require(policy), middleware.RequireRoles(policy)).
			Method(method, pattern, handlerFunc)
	}

	route(http.MethodGet, "/user", middleware.PrivateRoute, handler.handleCurrentUser)
	route(http.MethodPost, "/login", middleware.PublicRoute, handler.handleLogin)
	route(http.MethodPost, "/login/token", middleware.PublicRoute, handler.handleLoginToken)
	route(http.MethodPost, "/signup", middleware.PublicRoute, handler.handleSignup)
	route(http.MethodPost, "/logout", middleware.PrivateRoute, handler.handleLogout)
	route(http.MethodPost, "/reset-password", middleware.PublicRoute, handler.handleResetPassword)
	route(http.MethodPost, "/update-password", middleware.PublicRoute, handler.handleUpdatePassword)
	route(http.MethodPost, "/validate-token", middleware.PublicRoute, handler.handleValidateToken)
	route(http.MethodPost, "/verify-email", middleware.PublicRoute, handler.handleVerifyEmail)
	route(http.MethodPost, "/resend-verification", middleware.PrivateRoute, handler.handleResendVerification)

	return router
}

// sessionContext snapshots the requesting client for session binding,
// reusing the sid the guard already bound to the request.
func sessionContext(request *http.Request) SessionContext {
	return SessionContext{
		Sid:       requestutil.SessionID(request),
		IPAddress: requestutil.ClientIP(request),
		UserAgent: request.UserAgent(),
	}
}

// # Handlers

// handleCurrentUser returns the authenticated user's public profile.
//
// GET /auth/user
func (handler *Handler) handleCurrentUser(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.CurrentUser(request.Context(), identity)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
handleLogin authenticates with email and password and binds a session.

POST /auth/login

# Request Body
  - email: the account email (this route does not accept usernames)
  - password: the plain-text password

# Response

Empty 200 body; the session cookie is the real result. Failure is a 403
with a deliberately generic message.
*/
func (handler *Handler) handleLogin(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldEmail, body.Email).
		Required(FieldPassword, body.Password).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.service.LoginSession(request.Context(), LoginInput{
		Login:    body.Email,
		Password: body.Password,
	}, sessionContext(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, middleware.SessionCookie(session.Sid, session.ExpiresAt))
	respond.Empty(writer)
}

// handleLoginToken authenticates and issues a stateless bearer token for
// mobile and API clients.
//
// POST /auth/login/token
func (handler *Handler) handleLoginToken(writer http.ResponseWriter, request *http.Request) {
	var body LoginInput
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldLogin, body.Login).
		Required(FieldPassword, body.Password).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, user, err := handler.service.LoginToken(request.Context(), body, sessionContext(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"token": token,
		"user":  user,
	})
}

/*
handleSignup registers an account and logs it straight in.

POST /auth/signup

# Response

Empty 200 with the session cookie set, mirroring login. When the account
was created but the auto-login could not bind a session, the 200 still
stands — the user just logs in manually. Duplicate email/username failures
are 403s carrying a machine-readable code.
*/
func (handler *Handler) handleSignup(writer http.ResponseWriter, request *http.Request) {
	var body SignupInput
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldEmail, body.Email).
		Email(FieldEmail, body.Email).
		Required(FieldUsername, body.Username).
		Username(FieldUsername, normalizeIdentifier(body.Username)).
		MaxLen(FieldUsername, body.Username, 30).
		Required(FieldPassword, body.Password).
		MinLen(FieldPassword, body.Password, 8).
		MaxLen(FieldPassword, body.Password, 72).
		MaxLen("firstName", body.FirstName, 50).
		MaxLen("lastName", body.LastName, 50).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, session, err := handler.service.SignupAndLogin(request.Context(), body, sessionContext(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if session != nil {
		http.SetCookie(writer, middleware.SessionCookie(session.Sid, session.ExpiresAt))
	}
	respond.Empty(writer)
}

// handleLogout expires the request's session.
//
// POST /auth/logout
//
// The clear-cookie header is set before anything else so it rides on every
// exit path; the response is 200 regardless of whether server-side
// invalidation found a row.
func (handler *Handler) handleLogout(writer http.ResponseWriter, request *http.Request) {
	http.SetCookie(writer, middleware.ClearSessionCookie())

	sid := requestutil.SessionID(request)
	if err := handler.service.Logout(request.Context(), sid); err != nil {
		ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "logout_invalidate_failed",
			slog.String("error", err.Error()))
	}

	respond.Empty(writer)
}

// handleResetPassword issues a password-reset token.
//
// POST /auth/reset-password
func (handler *Handler) handleResetPassword(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ResetPassword(request.Context(), body.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Empty(writer)
}

// handleUpdatePassword consumes a reset token and sets the new password.
//
// POST /auth/update-password
func (handler *Handler) handleUpdatePassword(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldToken, body.Token).
		Required(FieldPassword, body.Password).
		MinLen(FieldPassword, body.Password, 8).
		MaxLen(FieldPassword, body.Password, 72).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.UpdatePassword(request.Context(), body.Token, body.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Empty(writer)
}

// handleValidateToken pre-flights a verification token for the reset form.
//
// POST /auth/validate-token
func (handler *Handler) handleValidateToken(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ValidateToken(request.Context(), body.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Empty(writer)
}

// handleVerifyEmail consumes an email-confirmation token.
//
// POST /auth/verify-email
func (handler *Handler) handleVerifyEmail(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.VerifyEmail(request.Context(), body.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Empty(writer)
}

// handleResendVerification re-issues the confirmation email for the
// authenticated user.
//
// POST /auth/resend-verification
func (handler *Handler) handleResendVerification(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ResendEmailVerification(request.Context(), identity); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Empty(writer)
}
