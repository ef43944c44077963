package handlers

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorBody(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantReason string
	}{
		{
			name:       "violation",
			err:        &session.Violation{Reason: session.ReasonNotYourTurn, Message: "not yours"},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   errors.ErrCodeRuleViolation,
			wantReason: session.ReasonNotYourTurn,
		},
		{
			name:       "wrapped violation",
			err:        fmt.Errorf("add: %w", &session.Violation{Reason: session.ReasonTooShort, Message: "short"}),
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   errors.ErrCodeRuleViolation,
			wantReason: session.ReasonTooShort,
		},
		{"not found", errors.New(errors.ErrCodeNotFound, "missing"), fiber.StatusNotFound, errors.ErrCodeNotFound, ""},
		{"conflict", errors.New(errors.ErrCodeConflict, "busy"), fiber.StatusConflict, errors.ErrCodeConflict, ""},
		{"already exists", errors.New(errors.ErrCodeAlreadyExists, "dup"), fiber.StatusConflict, errors.ErrCodeAlreadyExists, ""},
		{"validation", errors.New(errors.ErrCodeValidation, "bad"), fiber.StatusBadRequest, errors.ErrCodeValidation, ""},
		{"forbidden", errors.New(errors.ErrCodeForbidden, "no"), fiber.StatusForbidden, errors.ErrCodeForbidden, ""},
		{"fiber error", fiber.ErrUpgradeRequired, fiber.StatusUpgradeRequired, errors.ErrCodeValidation, ""},
		{"plain error", fmt.Errorf("boom"), fiber.StatusInternalServerError, errors.ErrCodeInternalError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorBody(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantReason, body.Reason)
			assert.False(t, body.Success)
		})
	}
}

func TestErrorBody_HidesInternalDetails(t *testing.T) {
	_, body := errorBody(errors.Wrap(fmt.Errorf("dial tcp 10.0.0.5:5432"), errors.ErrCodeInternalError, "db down"))
	assert.Equal(t, "Internal server error", body.Error)
}
