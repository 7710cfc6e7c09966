// Copyright (c) 2026 Heimursaga. All rights reserved.

package sec

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the payload embedded inside a bearer JWT.
//
// # Why custom claims?
//
// By embedding the email, username, and role directly inside the JWT, the
// guard can reconstruct the active identity WITHOUT querying the database on
// every single API request. The claims are a snapshot taken at issuance; a
// role change or block only takes effect for bearer clients once the token
// expires (24h) or when a handler explicitly re-resolves the user.
type AuthClaims struct {
	jwt.RegisteredClaims

	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	IPAddress string `json:"ip,omitempty"`
	UserAgent string `json:"ua,omitempty"`
}

// UserID parses the numeric user id out of the 'sub' claim.
// Returns 0 if the subject is missing or malformed.
func (c *AuthClaims) UserID() int64 {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// TokenService handles generation and verification of JWT tokens using HS256.
//
// The signing secret is server-held and environment-configured; config
// refuses to start without one outside development (no silent fallback).
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a new TokenService from the shared signing secret.
func NewTokenService(secret, issuer string) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("sec: jwt secret must not be empty")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer}, nil
}

// GenerateToken creates a new signed bearer token for a user.
func (service *TokenService) GenerateToken(userID int64, email, username, role, ipAddress, userAgent string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Email:     email,
		Username:  username,
		Role:      role,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature and validity of a JWT string.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return claims, nil
}
