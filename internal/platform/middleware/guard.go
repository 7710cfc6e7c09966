// Copyright (c) 2026 Heimursaga. All rights reserved.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heimursaga/api/internal/platform/apperr"
	"github.com/heimursaga/api/internal/platform/constants"
	"github.com/heimursaga/api/internal/platform/ctxutil"
	"github.com/heimursaga/api/internal/platform/respond"
	"github.com/heimursaga/api/internal/platform/sec"
)

// # Route Policy

// Policy is the explicit per-route access declaration consumed by the guards.
//
// Routes carry their policy as data: no reflection, no route metadata
// scanning. A route is either public (allowed regardless of authentication
// outcome) or private; role checking is opt-in via Roles.
type Policy struct {
	// Public allows the request through even when unauthenticated. Identity
	// resolution still runs for public routes so handlers can personalize.
	Public bool

	// Roles, when non-empty, restricts the route to identities whose role is
	// a member of the set.
	Roles []sec.Role
}

// Convenience policies for route registration.
var (
	PublicRoute  = Policy{Public: true}
	PrivateRoute = Policy{}
)

// RestrictedRoute declares a private route limited to the given roles.
func RestrictedRoute(roles ...sec.Role) Policy {
	return Policy{Roles: roles}
}

// # Identity Resolution

// Identifier resolves request credentials into an identity.
//
// # Why an interface?
//
// Defining Identifier here decouples the guard from the auth service
// implementation, allowing us to easily inject mocks during unit testing.
// Both methods return nil on any verification failure — the guard never
// sees an error from identity resolution.
type Identifier interface {
	// IdentifyToken verifies a bearer JWT and returns its claims snapshot.
	IdentifyToken(token string) *sec.Identity

	// IdentifySession re-derives identity from the session store.
	IdentifySession(ctx context.Context, sid string) *sec.Identity
}

/*
Identify resolves the request's identity and binds a session id.

# Flow

 1. Bearer tokens win when present: parse 'Authorization: Bearer <token>'
    and verify via [Identifier.IdentifyToken]. Stateless mobile/API clients
    skip the session round-trip entirely.
 2. If bearer auth did not succeed, fall back to the session cookie. A
    request without a sid gets a fresh anonymous one, written back to the
    response — pre-provisioning lets a later login bind to a sid the client
    already holds.
 3. Successful resolution attaches [*sec.Identity] to the request context.
    The sid (anonymous or not) is always attached.
 4. Any panic during resolution leaves the request anonymous; [Require]
    converts that into a generic unauthorized response on private routes.
    No internal error detail ever reaches the client.

Both credential kinds may be present on one request; bearer simply takes
precedence. Enforcement is left to [Require] and [RequireRoles] so that
public routes still get optional personalization.

sessionTTL sets the pre-provisioned cookie's lifetime; pass the configured
session lifetime so the anonymous cookie and a later bound session expire
on the same schedule. A non-positive value falls back to the platform
default.
*/
func Identify(identifier Identifier, sessionTTL time.Duration) func(http.Handler) http.Handler {
	if sessionTTL <= 0 {
		sessionTTL = constants.SessionTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			var identity *sec.Identity
			var sid string

			func() {
				defer func() {
					if rec := recover(); rec != nil {
						identity = nil
						ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(),
							"guard_identify_panic", slog.Any("error", rec))
					}
				}()

				// ── 1. Bearer Token ──────────────────────────────────────────
				if token := bearerToken(request); token != "" {
					identity = identifier.IdentifyToken(token)
				}

				// ── 2. Session Cookie Fallback ───────────────────────────────
				if identity == nil {
					sid = sessionIDFromCookie(request)
					if sid == "" {
						// Pre-provision an anonymous sid so the client holds
						// one before it ever authenticates.
						if minted, err := sec.NewSessionID(); err == nil {
							sid = minted
							http.SetCookie(writer, SessionCookie(sid, time.Now().Add(sessionTTL)))
						}
					}
					if sid != "" {
						identity = identifier.IdentifySession(request.Context(), sid)
					}
				}
			}()

			ctx := request.Context()
			if sid != "" {
				ctx = ctxutil.WithSessionID(ctx, sid)
			}
			if identity != nil {
				ctx = ctxutil.WithIdentity(ctx, identity)
			}

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Access Enforcement

// Require enforces the route's access policy after [Identify] has run.
//
// Public routes pass regardless of authentication outcome. Private routes
// reject anonymous requests with a generic unauthorized response.
func Require(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if policy.Public {
				next.ServeHTTP(writer, request)
				return
			}

			if ctxutil.GetIdentity(request.Context()) == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireRoles enforces role membership after [Require].
//
// Public routes and routes with no declared roles pass unconditionally —
// role checking is opt-in per route. An identity with the wrong role gets
// the same unauthorized response as a missing identity: the guard does not
// reveal whether the resource exists for a different role.
func RequireRoles(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if policy.Public || len(policy.Roles) == 0 {
				next.ServeHTTP(writer, request)
				return
			}

			identity := ctxutil.GetIdentity(request.Context())
			if identity == nil || !identity.Role.OneOf(policy.Roles...) {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Cookie Helpers

// SessionCookie builds the session-id cookie written on provisioning and login.
func SessionCookie(sid string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    sid,
		Path:     constants.SessionCookiePath,
		Expires:  expires,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie builds an expired session-id cookie for logout.
func ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// bearerToken extracts the token from an 'Authorization: Bearer' header.
// Returns an empty string when the header is absent or malformed.
func bearerToken(request *http.Request) string {
	header := request.Header.Get(constants.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// sessionIDFromCookie reads the sid cookie if present.
func sessionIDFromCookie(request *http.Request) string {
	cookie, err := request.Cookie(constants.SessionCookieName)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}
