package error

import (
	"errors"
	"net/http"

	"github.com/roadwatch/roadwatch/internal/domain"
)

type AppError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Status  int      `json:"-"`
	Details []string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func NewInternalServer(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError}
}

func NewValidation(problems []string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Message: "Validation failed", Status: http.StatusUnprocessableEntity, Details: problems}
}

// MapError translates a domain or use case error into the error sent to clients.
// Unknown errors are hidden behind a generic internal error.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return NewValidation(validation.Problems)
	case errors.Is(err, domain.ErrValidation):
		return NewValidation(nil)
	case errors.Is(err, domain.ErrSignalementNotFound):
		return NewNotFound(domain.ErrSignalementNotFound.Message)
	case errors.Is(err, domain.ErrInvalidStatus):
		return NewBadRequest(err.Error())
	default:
		return NewInternalServer("An unexpected error occurred")
	}
}
