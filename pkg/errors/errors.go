package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidState means the command is not valid for the aggregate's current
// status. Safe to retry after refetching state.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    "INVALID_STATE",
		Message: message,
		Status:  http.StatusConflict,
	}
}

// VersionConflict means the optimistic lock was lost: another command
// committed first. The client must refetch before deciding to retry.
func VersionConflict(message string) *AppError {
	return &AppError{
		Code:    "VERSION_CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
	}
}

// ConcurrentAssignment is the assignment-specific flavor of a lost
// optimistic lock: another mediator assignment already succeeded.
func ConcurrentAssignment(message string) *AppError {
	return &AppError{
		Code:    "CONCURRENT_ASSIGNMENT",
		Message: message,
		Status:  http.StatusConflict,
	}
}

// InsufficientFunds is terminal for the attempt; no state was mutated.
func InsufficientFunds(message string) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_FUNDS",
		Message: message,
		Status:  http.StatusPaymentRequired,
	}
}

// LedgerUnavailable means the ledger timed out or errored; the command was
// aborted with state unchanged and is safe to retry.
func LedgerUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "LEDGER_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
