// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrValidationFailed   = errors.New("validation failed")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrAlreadyCompleted   = errors.New("task already completed")
	ErrAlreadyAssigned    = errors.New("task already assigned to this user")
	ErrAssigneeNotFound   = errors.New("assignee not found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrTokenInvalid       = errors.New("token invalid")
)

const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicate          = "DUPLICATE"
	CodeAlreadyCompleted   = "ALREADY_COMPLETED"
	CodeAlreadyAssigned    = "ALREADY_ASSIGNED"
	CodeAssigneeNotFound   = "ASSIGNEE_NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeTokenInvalid       = "TOKEN_INVALID"
)

// AppError is the caller-facing form of an error: a stable code, a
// message safe to show, and the HTTP status it is rendered with.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Err:        err,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, ErrUnauthorized)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(CodeForbidden, message, http.StatusForbidden, ErrForbidden)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		CodeNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		ErrNotFound,
	)
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		CodeDuplicate,
		fmt.Sprintf("%s already exists", field),
		http.StatusConflict,
		ErrDuplicateKey,
	)
}

func TokenExpiredError() *AppError {
	return NewAppError(CodeTokenExpired, "token has expired", http.StatusUnauthorized, ErrTokenExpired)
}

func TokenRevokedError() *AppError {
	return NewAppError(CodeTokenRevoked, "token has been revoked", http.StatusUnauthorized, ErrTokenRevoked)
}

func TokenInvalidError() *AppError {
	return NewAppError(CodeTokenInvalid, "token is invalid", http.StatusUnauthorized, ErrTokenInvalid)
}

// ValidationError collects field-level messages. Kind is ErrInvalidInput
// or ErrValidationFailed and is what errors.Is matches against.
type ValidationError struct {
	Kind   error
	Fields map[string][]string
}

func NewValidationError(kind error) *ValidationError {
	return &ValidationError{
		Kind:   kind,
		Fields: make(map[string][]string),
	}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Messages flattens the fields into "field message" strings, sorted by field.
func (e *ValidationError) Messages() []string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []string
	for _, f := range fields {
		for _, msg := range e.Fields[f] {
			out = append(out, f+" "+msg)
		}
	}
	return out
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Messages(), ", "))
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// ToAppError maps domain sentinels onto caller-facing errors. Anything it
// does not recognise becomes an internal error.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		code, message := CodeValidation, "validation failed"
		if errors.Is(valErr.Kind, ErrInvalidInput) {
			code, message = CodeInvalidInput, "invalid input"
		}
		return &AppError{
			Code:       code,
			Message:    message,
			StatusCode: http.StatusUnprocessableEntity,
			Details:    map[string]any{"fields": valErr.Fields},
			Err:        err,
		}
	}

	switch {
	case errors.Is(err, ErrAssigneeNotFound):
		return NewAppError(CodeAssigneeNotFound, "assignee not found", http.StatusNotFound, err)
	case errors.Is(err, ErrNotFound):
		return NewAppError(CodeNotFound, "resource not found", http.StatusNotFound, err)
	case errors.Is(err, ErrForbidden):
		return NewAppError(CodeForbidden, "insufficient permissions", http.StatusForbidden, err)
	case errors.Is(err, ErrUnauthorized):
		return NewAppError(CodeUnauthorized, "authentication required", http.StatusUnauthorized, err)
	case errors.Is(err, ErrAlreadyCompleted):
		return NewAppError(CodeAlreadyCompleted, "task is already completed", http.StatusConflict, err)
	case errors.Is(err, ErrAlreadyAssigned):
		return NewAppError(CodeAlreadyAssigned, "task is already assigned to this user", http.StatusConflict, err)
	case errors.Is(err, ErrDuplicateKey):
		return NewAppError(CodeDuplicate, "resource already exists", http.StatusConflict, err)
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(CodeBadRequest, "invalid request", http.StatusBadRequest, err)
	case errors.Is(err, ErrValidationFailed):
		return NewAppError(CodeValidation, "validation failed", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrServiceUnavailable):
		return NewAppError(CodeServiceUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable, err)
	case errors.Is(err, ErrTokenExpired):
		return TokenExpiredError()
	case errors.Is(err, ErrTokenRevoked):
		return TokenRevokedError()
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidError()
	default:
		return NewAppError(CodeInternal, "an unexpected error occurred", http.StatusInternalServerError, err)
	}
}
