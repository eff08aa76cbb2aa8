package core

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrForbidden    = errors.New("forbidden")

	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")

	// ErrOwnershipViolation indicates a refresh token record that does not
	// resolve to exactly one principal. Unreachable when the service layer
	// is correct; treated as fatal data corruption, never recovered.
	ErrOwnershipViolation = errors.New("refresh token ownership violation")
)

type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func BadRequestError(message string) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: message,
	}
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{
		Status:  http.StatusUnauthorized,
		Code:    "unauthorized",
		Message: message,
	}
}

func ForbiddenError(message string) *AppError {
	return &AppError{
		Status:  http.StatusForbidden,
		Code:    "forbidden",
		Message: message,
	}
}

func NotFoundError(resource string) *AppError {
	return &AppError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: resource + " not found",
	}
}

func ConflictError(message string) *AppError {
	return &AppError{
		Status:  http.StatusConflict,
		Code:    "conflict",
		Message: message,
	}
}

func TokenInvalidError() *AppError {
	return &AppError{
		Status:  http.StatusUnauthorized,
		Code:    "token_invalid",
		Message: "invalid or expired token",
	}
}

func TokenExpiredError() *AppError {
	return &AppError{
		Status:  http.StatusUnauthorized,
		Code:    "token_expired",
		Message: "token has expired",
	}
}

func TokenRevokedError() *AppError {
	return &AppError{
		Status:  http.StatusUnauthorized,
		Code:    "token_revoked",
		Message: "token has been revoked",
	}
}
