package services

import (
	"net/url"
	"strings"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// ParseCallbackInput extracts the authorization code from what a user pasted
// into the manual flow: either the full redirect URL or the bare code.
// A URL is checked for a provider error, a state that differs from
// expectedState and a missing code.
func ParseCallbackInput(input, expectedState string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", domain.NewAuthError(domain.CodeInvalidCallback,
			"Paste the full redirect URL or the authorization code.")
	}

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return trimmed, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", domain.WrapAuthError(domain.CodeInvalidCallback,
			"The pasted redirect URL could not be parsed.", err)
	}
	q := parsed.Query()

	return validateCallback(&domain.OAuthCallback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}, expectedState, false)
}

// validateCallback checks a provider redirect and returns its code.
// With requireState a missing state counts as a mismatch; the manual flow
// accepts URLs without one.
func validateCallback(cb *domain.OAuthCallback, expectedState string, requireState bool) (string, error) {
	if cb.Error != "" {
		msg := "Google authorization failed: " + cb.Error
		if cb.ErrorDescription != "" {
			msg += " (" + cb.ErrorDescription + ")"
		}
		return "", domain.NewAuthError(domain.CodeInvalidCallback, msg)
	}
	if (requireState || cb.State != "") && cb.State != expectedState {
		return "", domain.NewAuthError(domain.CodeStateMismatch,
			"OAuth state mismatch. Start the sign-in again.")
	}
	code := strings.TrimSpace(cb.Code)
	if code == "" {
		return "", domain.NewAuthError(domain.CodeInvalidCallback,
			"The redirect did not contain an authorization code.")
	}
	return code, nil
}
