// Package apierr defines the typed error envelope returned by both the
// external and admin HTTP surfaces.
package apierr

import "net/http"

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidToken      Code = "INVALID_TOKEN"
	CodeInvalidApiKey     Code = "INVALID_API_KEY"
	CodeInvalidOtp        Code = "INVALID_OTP"
	CodeAccountLocked     Code = "ACCOUNT_LOCKED"
	CodeAccountDisabled   Code = "ACCOUNT_DISABLED"
	CodeApiKeyDisabled    Code = "API_KEY_DISABLED"
	CodeApiKeyExpired     Code = "API_KEY_EXPIRED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeGroupForbidden    Code = "GROUP_FORBIDDEN"
	CodeEmailForbidden    Code = "EMAIL_FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeGroupNotFound     Code = "GROUP_NOT_FOUND"
	CodeEmailNotFound     Code = "EMAIL_NOT_FOUND"
	CodeDuplicateEmail    Code = "DUPLICATE_EMAIL"
	CodeDuplicateUsername Code = "DUPLICATE_USERNAME"
	CodeGroupExists       Code = "GROUP_EXISTS"
	CodeAlreadyUsed       Code = "ALREADY_USED"
	CodeConcurrencyLimit  Code = "CONCURRENCY_LIMIT"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeNoUnusedEmail     Code = "NO_UNUSED_EMAIL"
	CodeImapTokenFailed   Code = "IMAP_TOKEN_FAILED"
	CodeGraphApiFailed    Code = "GRAPH_API_FAILED"
	CodeCryptoInvalid     Code = "CRYPTO_INVALID"
	CodeTwoFactorInvalid  Code = "TWO_FACTOR_SECRET_INVALID"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// statusByCode maps each Code to its HTTP status per spec.md §7.
var statusByCode = map[Code]int{
	CodeValidation:        http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeInvalidToken:      http.StatusUnauthorized,
	CodeInvalidApiKey:     http.StatusUnauthorized,
	CodeInvalidOtp:        http.StatusUnauthorized,
	CodeAccountLocked:     http.StatusTooManyRequests,
	CodeAccountDisabled:   http.StatusForbidden,
	CodeApiKeyDisabled:    http.StatusForbidden,
	CodeApiKeyExpired:     http.StatusForbidden,
	CodeForbidden:         http.StatusForbidden,
	CodeGroupForbidden:    http.StatusForbidden,
	CodeEmailForbidden:    http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeGroupNotFound:     http.StatusNotFound,
	CodeEmailNotFound:     http.StatusNotFound,
	CodeDuplicateEmail:    http.StatusConflict,
	CodeDuplicateUsername: http.StatusConflict,
	CodeGroupExists:       http.StatusConflict,
	CodeAlreadyUsed:       http.StatusConflict,
	CodeConcurrencyLimit:  http.StatusTooManyRequests,
	CodeRateLimitExceeded: http.StatusTooManyRequests,
	CodeNoUnusedEmail:     http.StatusBadRequest,
	CodeImapTokenFailed:   http.StatusInternalServerError,
	CodeGraphApiFailed:    http.StatusInternalServerError,
	CodeCryptoInvalid:     http.StatusInternalServerError,
	CodeTwoFactorInvalid:  http.StatusInternalServerError,
	CodeInternal:          http.StatusInternalServerError,
}

// Error is the typed, HTTP-status-carrying error used across the gateway.
// It implements the standard error interface so it can be wrapped/checked
// with errors.As like any other error.
type Error struct {
	Code    Code
	Message string
	Status  int
	Details any
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error for code, deriving its HTTP status from the table
// above. Unknown codes default to 500 (InternalError), matching the
// teacher's "fail closed" posture in middleware/recovery.go.
func New(code Code, message string) *Error {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Code: code, Message: message, Status: status}
}

// WithDetails attaches structured detail (e.g. field validation errors).
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Internal wraps an unexpected error into a generic 500 without leaking
// internals to the client.
func Internal(err error) *Error {
	return New(CodeInternal, "internal server error")
}
