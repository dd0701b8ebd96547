package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// DatabaseErrorMessage describes record store failures.
	DatabaseErrorMessage = "database operation failed"
	// ConfigurationErrorMessage is shown when the inference provider rejects our credentials.
	ConfigurationErrorMessage = "inference provider is not configured correctly"
	// InferenceErrorMessage is shown for transient inference failures.
	InferenceErrorMessage = "inference request failed, please retry"
)

// Code is the stable machine-readable identifier rendered as errorCode.
type Code string

const (
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeConfiguration   Code = "CONFIGURATION_FAILURE"
	CodeInference       Code = "INFERENCE_FAILURE"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInvalidAction   Code = "INVALID_ACTION"
	CodeQuotaExceeded   Code = "QUOTA_EXCEEDED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeStore           Code = "STORE_FAILURE"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

// Is reports whether the target matches the underlying error, or is an
// AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok && t.Err == nil && t.Code != "" {
		return t.Code == e.Code
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// Sentinels usable with errors.Is(err, errx.ErrInference) and friends.
var (
	ErrConfiguration   = &AppError{Code: CodeConfiguration}
	ErrInference       = &AppError{Code: CodeInference}
	ErrInvalidArgument = &AppError{Code: CodeInvalidArgument}
	ErrInvalidAction   = &AppError{Code: CodeInvalidAction}
	ErrNotFound        = &AppError{Code: CodeNotFound}
	ErrConflict        = &AppError{Code: CodeConflict}
)

// Configuration marks a fatal provider setup problem (bad or missing credentials).
func Configuration(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusServiceUnavailable, Code: CodeConfiguration, Message: ConfigurationErrorMessage}
}

// Inference marks a transient upstream failure the caller may retry.
func Inference(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusBadGateway, Code: CodeInference, Message: InferenceErrorMessage}
}

// InvalidArgument reports a missing or malformed request field.
func InvalidArgument(format string, args ...any) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// InvalidAction reports an action name outside the closed action set.
func InvalidAction(action string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeInvalidAction, Message: fmt.Sprintf("invalid action %q", action)}
}

// NotFound reports a missing record.
func NotFound(format string, args ...any) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a lost optimistic-concurrency race.
func Conflict(err error, message string) *AppError {
	return &AppError{Err: err, Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

// Unauthorized reports a request without a caller identity.
func Unauthorized(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// CodeOf returns the Code carried by err, CodeInternal for foreign errors and
// the empty Code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var coded interface{ ErrorCode() Code }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return CodeInternal
}

// ErrorCode implements the coded interface used by CodeOf.
func (e *AppError) ErrorCode() Code {
	return e.Code
}

// StatusOf returns the HTTP status for err, 500 when unknown.
func StatusOf(err error) int {
	var withStatus interface{ HTTPStatus() int }
	if errors.As(err, &withStatus) {
		return withStatus.HTTPStatus()
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show to callers.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}

// IsRetryable reports whether a caller may retry the failed operation as is.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeInference, CodeConflict, CodeStore:
		return true
	default:
		return false
	}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidArgument
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusBadGateway:
		return CodeStore
	default:
		return CodeInternal
	}
}
