package http

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes shared by every endpoint. Handlers add their own through ErrorRule.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeNotFound    = "ERR_NOT_FOUND"
	CodeRateLimited = "ERR_RATE_LIMITED"
)

// AppError represents an application-level error with an HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

// ErrorRule translates one family of domain errors. Match reports whether
// err belongs to it and, optionally, the offending field.
type ErrorRule struct {
	Code   string
	Status int
	Match  func(err error) (field string, ok bool)
}

// Is builds a Match for a sentinel error.
func Is(target error) func(error) (string, bool) {
	return func(err error) (string, bool) { return "", errors.Is(err, target) }
}

// ErrorTranslator maps errors to AppErrors by the first matching rule.
type ErrorTranslator []ErrorRule

// Translate returns err unchanged when it already is an AppError or when no
// rule matches; the latter ends up as a generic 500.
func (t ErrorTranslator) Translate(err error) error {
	var appErr *AppError
	if err == nil || errors.As(err, &appErr) {
		return err
	}
	for _, r := range t {
		if field, ok := r.Match(err); ok {
			return NewAppError(r.Code, field, err.Error(), r.Status).WithError(err)
		}
	}
	return err
}
