package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrorKind groups error codes into the four families callers branch on.
type ErrorKind int

// Error kinds.
const (
	// KindConfig errors require the user to fix settings; never retryable.
	KindConfig ErrorKind = iota + 1
	// KindAuth errors come from the authorization flows and token lifecycle.
	KindAuth
	// KindProvider errors come from a remote API (HTTP status + body) or the
	// transport underneath it.
	KindProvider
	// KindJob errors come from job submission and lookup.
	KindJob
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindAuth:
		return "authentication"
	case KindProvider:
		return "provider"
	case KindJob:
		return "job"
	default:
		return "unknown"
	}
}

// ErrorCode is the machine-readable identity of an Error.
type ErrorCode string

// Error codes.
const (
	CodeMissingClientID     ErrorCode = "missing_client_id"
	CodeSignInRequired      ErrorCode = "sign_in_required"
	CodeReauthRequired      ErrorCode = "reauth_required"
	CodeProviderError       ErrorCode = "provider_error"
	CodeTransportError      ErrorCode = "transport_error"
	CodeLoopbackUnavailable ErrorCode = "loopback_unavailable"
	CodeLoopbackTimeout     ErrorCode = "loopback_timeout"
	CodeInvalidCallback     ErrorCode = "invalid_callback"
	CodeStateMismatch       ErrorCode = "state_mismatch"
	CodeChallengeExpired    ErrorCode = "challenge_expired"
	CodeSessionNotFound     ErrorCode = "session_not_found"
	CodeJobNotFound         ErrorCode = "job_not_found"
	CodeJobNotCompleted     ErrorCode = "job_not_completed"
	CodeInvalidRequest      ErrorCode = "invalid_request"
	CodeJobCancelled        ErrorCode = "job_cancelled"
)

// Manual fallback reasons reported by SignIn when the interactive flow
// cannot complete on this machine.
const (
	FallbackLoopbackUnavailable = "loopback_unavailable"
	FallbackLoopbackTimeout     = "loopback_timeout"
	FallbackInvalidCallback     = "invalid_callback"
	FallbackStateMismatch       = "state_mismatch"
)

// Error is the closed error type returned across the core boundary.
// Retryable and Fallback are fixed by the constructor that created the
// error; callers read them instead of inspecting messages.
type Error struct {
	Kind    ErrorKind
	Code    ErrorCode
	Message string

	// Status and Body are set for provider errors.
	Status int
	Body   string

	// Retryable reports whether repeating the same call may succeed.
	Retryable bool

	// Fallback is the manual sign-in reason when this error means the
	// interactive flow should be abandoned for the manual one.
	Fallback string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingClientID     = &Error{Kind: KindConfig, Code: CodeMissingClientID}
	ErrSignInRequired      = &Error{Kind: KindAuth, Code: CodeSignInRequired}
	ErrReauthRequired      = &Error{Kind: KindAuth, Code: CodeReauthRequired}
	ErrProvider            = &Error{Kind: KindProvider, Code: CodeProviderError}
	ErrTransport           = &Error{Kind: KindProvider, Code: CodeTransportError}
	ErrLoopbackUnavailable = &Error{Kind: KindAuth, Code: CodeLoopbackUnavailable}
	ErrLoopbackTimeout     = &Error{Kind: KindAuth, Code: CodeLoopbackTimeout}
	ErrInvalidCallback     = &Error{Kind: KindAuth, Code: CodeInvalidCallback}
	ErrStateMismatch       = &Error{Kind: KindAuth, Code: CodeStateMismatch}
	ErrChallengeExpired    = &Error{Kind: KindAuth, Code: CodeChallengeExpired}
	ErrSessionNotFound     = &Error{Kind: KindAuth, Code: CodeSessionNotFound}
	ErrJobNotFound         = &Error{Kind: KindJob, Code: CodeJobNotFound}
	ErrJobNotCompleted     = &Error{Kind: KindJob, Code: CodeJobNotCompleted}
	ErrInvalidRequest      = &Error{Kind: KindJob, Code: CodeInvalidRequest}
	ErrJobCancelled        = &Error{Kind: KindJob, Code: CodeJobCancelled}
)

var fallbackByCode = map[ErrorCode]string{
	CodeLoopbackUnavailable: FallbackLoopbackUnavailable,
	CodeLoopbackTimeout:     FallbackLoopbackTimeout,
	CodeInvalidCallback:     FallbackInvalidCallback,
	CodeStateMismatch:       FallbackStateMismatch,
}

// NewAuthError creates an authentication error. Codes produced by the
// loopback flow carry their manual fallback reason.
func NewAuthError(code ErrorCode, message string) *Error {
	return &Error{
		Kind:     KindAuth,
		Code:     code,
		Message:  message,
		Fallback: fallbackByCode[code],
	}
}

// WrapAuthError is NewAuthError with an underlying cause.
func WrapAuthError(code ErrorCode, message string, cause error) *Error {
	e := NewAuthError(code, message)
	e.Err = cause
	return e
}

// NewMissingClientIDError reports that no OAuth client id is configured.
func NewMissingClientIDError() *Error {
	return &Error{
		Kind:    KindConfig,
		Code:    CodeMissingClientID,
		Message: "Google OAuth is not configured. Set a client id with 'sourcestack settings set --client-id'.",
	}
}

// NewProviderError creates an error for a non-success HTTP response.
// It is retryable for 429 and any 5xx status.
func NewProviderError(status int, body string) *Error {
	return newProviderError("Google API request failed", status, body)
}

// NewTokenEndpointError is NewProviderError for a rejected code exchange or
// refresh that does not call for a new sign-in.
func NewTokenEndpointError(status int, body string) *Error {
	return newProviderError("Google sign-in failed", status, body)
}

func newProviderError(prefix string, status int, body string) *Error {
	return &Error{
		Kind:      KindProvider,
		Code:      CodeProviderError,
		Message:   fmt.Sprintf("%s (HTTP %d): %s", prefix, status, truncate(strings.TrimSpace(body), 300)),
		Status:    status,
		Body:      body,
		Retryable: status == http.StatusTooManyRequests || status >= 500,
	}
}

// NewTransportError creates a retryable error for connection and timeout
// failures that never produced an HTTP response.
func NewTransportError(cause error) *Error {
	return &Error{
		Kind:      KindProvider,
		Code:      CodeTransportError,
		Message:   fmt.Sprintf("network error: %v", cause),
		Retryable: true,
		Err:       cause,
	}
}

// NewJobError creates a job-level error.
func NewJobError(code ErrorCode, message string) *Error {
	return &Error{Kind: KindJob, Code: code, Message: message}
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// FallbackReason returns the manual fallback reason carried by err, or "".
func FallbackReason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fallback
	}
	return ""
}

// CodeOf returns the code of err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidGrant reports whether a token endpoint response means the grant
// or token is no longer valid: HTTP 400 or 401 whose OAuth error names
// invalid_grant or invalid_token, whose description mentions a token, or
// whose body carries either marker. Matching ignores case.
func IsInvalidGrant(status int, body string) bool {
	if status != http.StatusBadRequest && status != http.StatusUnauthorized {
		return false
	}

	var parsed struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal([]byte(body), &parsed) == nil {
		code := strings.ToLower(parsed.Error)
		description := strings.ToLower(parsed.ErrorDescription)
		if strings.Contains(code, "invalid_grant") ||
			strings.Contains(code, "invalid_token") ||
			strings.Contains(description, "invalid_grant") ||
			strings.Contains(description, "token") {
			return true
		}
	}

	lowered := strings.ToLower(body)
	return strings.Contains(lowered, "invalid_grant") || strings.Contains(lowered, "invalid_token")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
