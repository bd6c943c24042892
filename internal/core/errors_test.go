// AngelaMos | 2026
// errors_test.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestToAppError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("get task: %w", ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"assignee not found", fmt.Errorf("assign: %w", ErrAssigneeNotFound), http.StatusNotFound, CodeAssigneeNotFound},
		{"forbidden", fmt.Errorf("complete: %w", ErrForbidden), http.StatusForbidden, CodeForbidden},
		{"unauthenticated", ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{"already completed", ErrAlreadyCompleted, http.StatusConflict, CodeAlreadyCompleted},
		{"already assigned", ErrAlreadyAssigned, http.StatusConflict, CodeAlreadyAssigned},
		{"duplicate", fmt.Errorf("create user: %w", ErrDuplicateKey), http.StatusConflict, CodeDuplicate},
		{"unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"token expired", ErrTokenExpired, http.StatusUnauthorized, CodeTokenExpired},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToAppError(tc.err)
			if got.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", got.StatusCode, tc.status)
			}
			if got.Code != tc.code {
				t.Errorf("code = %q, want %q", got.Code, tc.code)
			}
		})
	}
}

func TestToAppErrorPassesThroughAppError(t *testing.T) {
	orig := NotFoundError("task")
	wrapped := fmt.Errorf("handler: %w", orig)

	if got := ToAppError(wrapped); got != orig {
		t.Fatalf("expected the wrapped AppError to be returned as-is")
	}
}

func TestValidationError(t *testing.T) {
	v := NewValidationError(ErrInvalidInput)
	if v.OrNil() != nil {
		t.Fatalf("empty validation error should be nil")
	}

	v.Add("title", "can't be blank")
	v.Add("due_date", "must be in the future")

	err := v.OrNil()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("errors.Is(err, ErrInvalidInput) = false")
	}
	if errors.Is(err, ErrValidationFailed) {
		t.Fatalf("create-time error must not match ErrValidationFailed")
	}

	msgs := v.Messages()
	if len(msgs) != 2 || msgs[0] != "due_date must be in the future" {
		t.Fatalf("messages = %v", msgs)
	}
	if !strings.Contains(err.Error(), "title can't be blank") {
		t.Fatalf("error text = %q", err.Error())
	}

	appErr := ToAppError(fmt.Errorf("create: %w", err))
	if appErr.Code != CodeInvalidInput || appErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("app error = %+v", appErr)
	}

	upd := NewValidationError(ErrValidationFailed)
	upd.Add("title", "can't be blank")
	if code := ToAppError(upd).Code; code != CodeValidation {
		t.Fatalf("update validation code = %q, want %q", code, CodeValidation)
	}
}
