package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes for the failure taxonomy of mutation dispatch.
const (
	CodeNetwork         = "NETWORK_ERROR"
	CodeValidation      = "VALIDATION_ERROR"
	CodeServerRejection = "SERVER_REJECTION"
	CodeStaleTarget     = "STALE_TARGET"
	CodeNotFound        = "NOT_FOUND"
	CodeUnknown         = "UNKNOWN_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNetworkError(err error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "Network Error",
		Err:     err,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewServerRejectionError(err error) *AppError {
	return &AppError{
		Code:    CodeServerRejection,
		Message: "Request rejected by server",
		Err:     err,
	}
}

// NewStaleTargetError marks a confirmation that arrived for an entity no
// longer present locally. Swallowed by the session, never surfaced.
func NewStaleTargetError(entityID string) *AppError {
	return &AppError{
		Code:    CodeStaleTarget,
		Message: fmt.Sprintf("entity %s no longer present", entityID),
	}
}

func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewUnknownError(err error) *AppError {
	return &AppError{
		Code:    CodeUnknown,
		Message: "Something went wrong",
		Err:     err,
	}
}

// ErrorCode extracts the taxonomy code from err, or CodeUnknown.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
