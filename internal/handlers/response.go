package handlers

import (
	stdErrors "errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{Success: true, Message: message, Data: data})
}

// respondError maps domain errors onto HTTP statuses. Rule violations carry their reason.
func respondError(c *fiber.Ctx, err error) error {
	status, body := errorBody(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(body)
}

func errorBody(err error) (int, ErrorResponse) {
	var v *session.Violation
	if stdErrors.As(err, &v) {
		return fiber.StatusUnprocessableEntity, ErrorResponse{
			Error:  v.Message,
			Code:   errors.ErrCodeRuleViolation,
			Reason: v.Reason,
		}
	}

	var fe *fiber.Error
	if stdErrors.As(err, &fe) {
		return fe.Code, ErrorResponse{Error: fe.Message, Code: codeForStatus(fe.Code)}
	}

	code := errors.CodeOf(err)
	status := statusForCode(code)
	message := err.Error()
	var appErr *errors.AppError
	if stdErrors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == fiber.StatusInternalServerError {
		message = "Internal server error"
	}
	return status, ErrorResponse{Error: message, Code: code}
}

func statusForCode(code string) int {
	switch code {
	case errors.ErrCodeValidation, errors.ErrCodeValidationFailed:
		return fiber.StatusBadRequest
	case errors.ErrCodeRuleViolation:
		return fiber.StatusUnprocessableEntity
	case errors.ErrCodeNotFound:
		return fiber.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeAlreadyExists:
		return fiber.StatusConflict
	case errors.ErrCodeUnauthorized:
		return fiber.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return fiber.StatusForbidden
	case errors.ErrCodeRateLimitExceeded:
		return fiber.StatusTooManyRequests
	case errors.ErrCodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return errors.ErrCodeValidation
	case fiber.StatusUnauthorized:
		return errors.ErrCodeUnauthorized
	case fiber.StatusForbidden:
		return errors.ErrCodeForbidden
	case fiber.StatusNotFound:
		return errors.ErrCodeNotFound
	case fiber.StatusConflict:
		return errors.ErrCodeConflict
	case fiber.StatusTooManyRequests:
		return errors.ErrCodeRateLimitExceeded
	default:
		if status >= fiber.StatusInternalServerError {
			return errors.ErrCodeInternalError
		}
		return errors.ErrCodeValidation
	}
}
