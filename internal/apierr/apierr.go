package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-checkable codes surfaced to clients.
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeDeviceLimit        = "DEVICE_LIMIT_REACHED"
	CodeLoginRateLimited   = "LOGIN_RATE_LIMITED"
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeQuizNotFound       = "QUIZ_NOT_FOUND"
	CodeMaxAttempts        = "MAX_ATTEMPTS_REACHED"
	CodeNotInProgress      = "NOT_IN_PROGRESS"
	CodeQuestionNotFound   = "QUESTION_NOT_FOUND"
	CodeTemplateNotFound   = "TEMPLATE_NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

type Error struct {
	Status  int
	Code    string
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// WithDetails attaches extra payload fields rendered next to the message.
func (e *Error) WithDetails(kv map[string]any) *Error {
	e.Details = kv
	return e
}

func Unauthenticated(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, errors.New(msg))
}

func Forbidden(code, msg string) *Error {
	if code == "" {
		code = CodeForbidden
	}
	return New(http.StatusForbidden, code, errors.New(msg))
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, errors.New(msg))
}

func BadRequest(code, msg string) *Error {
	if code == "" {
		code = CodeValidation
	}
	return New(http.StatusBadRequest, code, errors.New(msg))
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
