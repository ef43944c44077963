package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/reports"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxExportRows    = 10000
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type enqueueRequest struct {
	UserID     string   `json:"userId"`
	DebateType string   `json:"debateType"`
	Mode       string   `json:"mode"`
	EloRating  *float64 `json:"eloRating"`
	Language   string   `json:"language"`
}

type dequeueRequest struct {
	UserID string `json:"userId"`
}

func (h *HandlerManager) Enqueue(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
	}
	userID, err := actingUser(c, req.UserID)
	if err != nil {
		return respondError(c, err)
	}

	queued, err := h.Matchmaker.EnqueueUser(c.UserContext(), &models.MatchCandidate{
		UserID:     userID,
		DebateType: req.DebateType,
		Mode:       req.Mode,
		EloRating:  req.EloRating,
		Language:   req.Language,
	})
	if err != nil {
		return respondError(c, err)
	}
	if !queued {
		return respond(c, fiber.StatusOK, "User already queued or recently matched", fiber.Map{"queued": false})
	}
	return respond(c, fiber.StatusAccepted, "User added to matchmaking queue", fiber.Map{"queued": true})
}

func (h *HandlerManager) Dequeue(c *fiber.Ctx) error {
	var req dequeueRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
		}
	}
	userID, err := actingUser(c, req.UserID)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Matchmaker.RemoveUser(c.UserContext(), userID); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "User removed from matchmaking queue", nil)
}

func (h *HandlerManager) GetQueue(c *fiber.Ctx) error {
	queue, err := h.Matchmaker.GetQueue(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	if !isModerator(c) {
		userID, _ := actingUser(c, "")
		queued := false
		for _, cand := range queue {
			if cand.UserID == userID {
				queued = true
				break
			}
		}
		return respond(c, fiber.StatusOK, "", fiber.Map{"size": len(queue), "queued": queued})
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"size": len(queue), "candidates": queue})
}

func (h *HandlerManager) ClearQueue(c *fiber.Ctx) error {
	if err := h.Matchmaker.ClearQueue(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Matchmaking queue cleared", nil)
}

func (h *HandlerManager) ListMatches(c *fiber.Ctx) error {
	filters, err := matchFilters(c)
	if err != nil {
		return respondError(c, err)
	}
	if !isModerator(c) {
		if filters.UserID, err = actingUser(c, filters.UserID); err != nil {
			return respondError(c, err)
		}
	}

	matches, err := h.Matches.ListMatches(c.UserContext(), filters)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", matches)
}

func (h *HandlerManager) ExportMatches(c *fiber.Ctx) error {
	filters, err := matchFilters(c)
	if err != nil {
		return respondError(c, err)
	}
	filters.Limit = maxExportRows
	filters.Offset = 0

	matches, err := h.Matches.ListMatches(c.UserContext(), filters)
	if err != nil {
		return respondError(c, err)
	}

	wb := reports.NewWorkbook()
	defer wb.Close()
	if err := wb.AddMatches(matches); err != nil {
		return respondError(c, errors.Wrap(err, errors.ErrCodeInternalError, "failed to build export"))
	}
	return sendWorkbook(c, wb, "matches")
}

func matchFilters(c *fiber.Ctx) (*models.MatchFilters, error) {
	limit := c.QueryInt("limit", defaultListLimit)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > maxListLimit || offset < 0 {
		return nil, errors.Newf(errors.ErrCodeValidation, "limit must be 1..%d and offset non-negative", maxListLimit)
	}
	debateType := c.Query("debateType")
	if debateType != "" && !models.IsValidDebateType(debateType) {
		return nil, errors.New(errors.ErrCodeValidation, "debateType must be professional or unprofessional")
	}
	return &models.MatchFilters{
		UserID:     c.Query("userId"),
		DebateType: debateType,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func sendWorkbook(c *fiber.Ctx, wb *reports.Workbook, prefix string) error {
	var buf bytes.Buffer
	if _, err := wb.WriteTo(&buf); err != nil {
		return respondError(c, errors.Wrap(err, errors.ErrCodeInternalError, "failed to write export"))
	}
	name := fmt.Sprintf("%s-%s.xlsx", prefix, time.Now().UTC().Format("20060102-150405"))
	logger.Info("Export generated", "file", name, "bytes", buf.Len())

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Send(buf.Bytes())
}
