package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeConnectTimeout ErrCode = "CONNECT_TIMEOUT"
	ErrCodeReadTimeout    ErrCode = "READ_TIMEOUT"
	ErrCodeRateLimited    ErrCode = "RATE_LIMITED"
	ErrCodeAuth           ErrCode = "AUTH_ERROR"
	ErrCodeMalformed      ErrCode = "MALFORMED_RESPONSE"
	ErrCodePermission     ErrCode = "PERMISSION_DENIED"
	ErrCodeNotFound       ErrCode = "NOT_FOUND"
	ErrCodeBadRequest     ErrCode = "BAD_REQUEST"
	ErrCodeInternal       ErrCode = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
	// RetryAfter is set on rate-limit errors when the server supplied a wait hint.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewConnectTimeoutError creates a connect timeout error
func NewConnectTimeoutError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeConnectTimeout,
		Message: message,
		Err:     err,
	}
}

// NewReadTimeoutError creates a read timeout error
func NewReadTimeoutError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeReadTimeout,
		Message: message,
		Err:     err,
	}
}

// NewRateLimitedError creates a rate limited error carrying the server's wait hint
func NewRateLimitedError(message string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       ErrCodeRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeAuth,
		Message: message,
	}
}

// NewMalformedResponseError creates a malformed response error
func NewMalformedResponseError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeMalformed,
		Message: message,
		Err:     err,
	}
}

// NewPermissionError creates a permission denied error
func NewPermissionError(message string) *AppError {
	return &AppError{
		Code:    ErrCodePermission,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

func hasCode(err error, code ErrCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsConnectTimeout checks if the error is a connect timeout error
func IsConnectTimeout(err error) bool {
	return hasCode(err, ErrCodeConnectTimeout)
}

// IsReadTimeout checks if the error is a read timeout error
func IsReadTimeout(err error) bool {
	return hasCode(err, ErrCodeReadTimeout)
}

// IsTimeout checks if the error is either kind of timeout
func IsTimeout(err error) bool {
	return IsConnectTimeout(err) || IsReadTimeout(err)
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	return hasCode(err, ErrCodeRateLimited)
}

// IsAuth checks if the error is an authentication error
func IsAuth(err error) bool {
	return hasCode(err, ErrCodeAuth)
}

// IsMalformed checks if the error is a malformed response error
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformed)
}

// IsPermission checks if the error is a permission denied error
func IsPermission(err error) bool {
	return hasCode(err, ErrCodePermission)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsFatal reports whether the error must abort a fetch session immediately.
// Auth failures and malformed payloads are never retried.
func IsFatal(err error) bool {
	return IsAuth(err) || IsMalformed(err)
}

// RetryAfterOf extracts the rate-limit wait hint, if any.
func RetryAfterOf(err error) time.Duration {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.RetryAfter
	}
	return 0
}
