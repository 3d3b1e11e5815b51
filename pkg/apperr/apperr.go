package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an expected failure so callers can pick a remedy:
// correct the input, wait, restart the flow, or sign in instead.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindRateLimited
	KindExpired
	KindAttemptsExceeded
	KindDuplicateAccount
	KindAuthToken
	KindCryptoConfig
	KindNotFound
	KindConflict
)

// String returns the machine-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindExpired:
		return "EXPIRED"
	case KindAttemptsExceeded:
		return "ATTEMPTS_EXCEEDED"
	case KindDuplicateAccount:
		return "DUPLICATE_ACCOUNT"
	case KindAuthToken:
		return "AUTH_TOKEN"
	case KindCryptoConfig:
		return "CRYPTO_CONFIG"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

// Error is a typed, expected outcome returned to the calling layer.
type Error struct {
	Kind    Kind
	Code    string // stable reason code, e.g. CODE_MISMATCH
	Message string
	// ResetAt is set for rate-limit errors: when the caller may retry.
	ResetAt *time.Time
	// Remaining is set when an attempt budget applies (e.g. OTP tries left).
	Remaining int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two apperr errors by kind and code, so sentinel-style
// comparisons with errors.Is work across wrapped chains.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// KindOf extracts the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError extracts the typed error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func RateLimited(code, message string, resetAt time.Time) *Error {
	return &Error{Kind: KindRateLimited, Code: code, Message: message, ResetAt: &resetAt}
}

func Expired(code, message string) *Error {
	return &Error{Kind: KindExpired, Code: code, Message: message}
}

func AttemptsExceeded(code, message string) *Error {
	return &Error{Kind: KindAttemptsExceeded, Code: code, Message: message}
}

func DuplicateAccount(message string) *Error {
	return &Error{Kind: KindDuplicateAccount, Code: "DUPLICATE_ACCOUNT", Message: message}
}

func AuthToken(message string, err error) *Error {
	return &Error{Kind: KindAuthToken, Code: "AUTH_TOKEN_INVALID", Message: message, Err: err}
}

func CryptoConfig(message string) *Error {
	return &Error{Kind: KindCryptoConfig, Code: "CRYPTO_CONFIG", Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: message, Err: err}
}
