// Copyright (c) 2026 Heimursaga. All rights reserved.

package sec

// Identity is the resolved per-request identity attached by the guard.
//
// It is a snapshot: the bearer path trusts the signed claim until expiry,
// while the session path re-derives it from the session store on every
// request. Handlers must treat it as authoritative for the current request
// only.
type Identity struct {
	// UserID is the numeric id of the authenticated account.
	UserID int64

	// Role is the authorization role carried by the credential.
	Role Role

	// Email and Username are convenience copies for personalization; they
	// may be empty on the session path.
	Email    string
	Username string

	// Sid is the session id the identity was derived from. Empty for
	// bearer-token identities.
	Sid string
}
