// Package apperrors defines the pod's error taxonomy: a stable string code,
// an HTTP status, a log level, and a flag marking whether the error has
// already been logged, so the top-level recovery middleware never logs the
// same failure twice.
package apperrors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Code is a stable, machine-readable error identifier, safe to expose to
// API clients and to grep for in logs across releases.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeValidation        Code = "validation_error"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeMemberLimitReached Code = "member_limit_reached"
	CodeRateLimited       Code = "rate_limited"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeInternal          Code = "internal_error"
)

// Error is the pod's canonical error type. It is returned from service
// layers and translated to an HTTP response at the handler boundary.
type Error struct {
	Code    Code
	Status  int
	Message string
	Level   slog.Level
	Cause   error
	logged  bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// MarkLogged records that this error has already been written to the log,
// so a later recovery/middleware layer does not log it again.
func (e *Error) MarkLogged() { e.logged = true }

// Logged reports whether MarkLogged has already been called.
func (e *Error) Logged() bool { return e.logged }

func newErr(code Code, status int, level slog.Level, message string, cause error) *Error {
	return &Error{Code: code, Status: status, Message: message, Level: level, Cause: cause}
}

func BadRequest(message string, cause error) *Error {
	return newErr(CodeBadRequest, http.StatusBadRequest, slog.LevelInfo, message, cause)
}

func Validation(message string) *Error {
	return newErr(CodeValidation, http.StatusUnprocessableEntity, slog.LevelInfo, message, nil)
}

func Unauthorized(message string) *Error {
	return newErr(CodeUnauthorized, http.StatusUnauthorized, slog.LevelInfo, message, nil)
}

func Forbidden(message string) *Error {
	return newErr(CodeForbidden, http.StatusForbidden, slog.LevelInfo, message, nil)
}

func NotFound(message string) *Error {
	return newErr(CodeNotFound, http.StatusNotFound, slog.LevelInfo, message, nil)
}

func Conflict(message string) *Error {
	return newErr(CodeConflict, http.StatusConflict, slog.LevelInfo, message, nil)
}

func MemberLimitReached(limit int) *Error {
	return newErr(CodeMemberLimitReached, http.StatusForbidden, slog.LevelWarn,
		fmt.Sprintf("pod has reached its member limit of %d", limit), nil)
}

func RateLimited(message string) *Error {
	return newErr(CodeRateLimited, http.StatusTooManyRequests, slog.LevelWarn, message, nil)
}

func UpstreamUnavailable(message string, cause error) *Error {
	return newErr(CodeUpstreamUnavailable, http.StatusBadGateway, slog.LevelError, message, cause)
}

func Internal(message string, cause error) *Error {
	return newErr(CodeInternal, http.StatusInternalServerError, slog.LevelError, message, cause)
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Wrap coerces any error into an *apperrors.Error, defaulting to Internal
// if it isn't already tagged.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Internal("unexpected error", err)
}
