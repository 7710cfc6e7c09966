// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// # CAPTCHA Verification

// CaptchaVerifier checks a client-solved challenge token against the
// provider before a signup is accepted.
type CaptchaVerifier interface {
	// Verify reports whether the challenge token is valid for the client IP.
	Verify(ctx context.Context, token, remoteIP string) (bool, error)

	// Enabled reports whether a provider is configured at all. When false,
	// signup skips the challenge entirely.
	Enabled() bool
}

// HTTPCaptchaVerifier verifies tokens against an hCaptcha-compatible
// siteverify endpoint.
type HTTPCaptchaVerifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

// NewHTTPCaptchaVerifier creates a verifier for the given provider endpoint.
// An empty secret disables verification.
func NewHTTPCaptchaVerifier(secret, endpoint string) *HTTPCaptchaVerifier {
	return &HTTPCaptchaVerifier{
		secret:   secret,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a provider secret is configured.
func (verifier *HTTPCaptchaVerifier) Enabled() bool {
	return verifier.secret != ""
}

/*
Verify posts the token to the provider's siteverify endpoint.

# Returns
  - (true, nil) when the provider accepts the token.
  - (false, nil) when the provider rejects it.
  - (false, err) on transport or decoding failure — the caller decides
    whether an unreachable provider blocks signup (it does).
*/
func (verifier *HTTPCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	form := url.Values{}
	form.Set("secret", verifier.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, verifier.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("captcha: failed to build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := verifier.client.Do(request)
	if err != nil {
		return false, fmt.Errorf("captcha: provider unreachable: %w", err)
	}
	defer response.Body.Close()

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("captcha: failed to decode provider response: %w", err)
	}

	return result.Success, nil
}

var _ CaptchaVerifier = (*HTTPCaptchaVerifier)(nil)
