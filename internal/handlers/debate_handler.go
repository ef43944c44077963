package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/debate_hub/internal/middleware"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/reports"
	"github.com/mroshb/debate_hub/internal/security"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/utils"
)

type createSessionRequest struct {
	SessionID       string               `json:"sessionId"`
	Topic           string               `json:"topic"`
	DebateType      string               `json:"debateType"`
	Mode            string               `json:"mode"`
	DurationMinutes int                  `json:"durationMinutes"`
	Participants    []models.Participant `json:"participants"`
	Rules           *models.Rules        `json:"rules"`
}

type messageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

type participantRequest struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
	Reason        string `json:"reason"`
	Score         *int   `json:"score"`
}

func (h *HandlerManager) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
	}
	if req.SessionID != "" && !security.ValidateIdentifier(req.SessionID) {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid session id"))
	}
	for i := range req.Participants {
		p := &req.Participants[i]
		if !security.ValidateIdentifier(p.ID) {
			return respondError(c, errors.New(errors.ErrCodeValidation, "invalid participant id"))
		}
		p.Name = displayText(p.Name)
	}

	s, err := h.Sessions.CreateSession(c.UserContext(), session.CreateSessionRequest{
		SessionID:    req.SessionID,
		Topic:        displayText(req.Topic),
		DebateType:   req.DebateType,
		Mode:         req.Mode,
		DurationMins: req.DurationMinutes,
		Participants: req.Participants,
		Rules:        req.Rules,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Session created", s)
}

func (h *HandlerManager) GetSession(c *fiber.Ctx) error {
	s, err := h.sessionForRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", s)
}

func (h *HandlerManager) GetStatus(c *fiber.Ctx) error {
	s, err := h.sessionForRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{
		"state":        s.State,
		"currentTurn":  s.CurrentTurn,
		"connectivity": h.Sessions.ConnectivityStatus(s.SessionID),
	})
}

func (h *HandlerManager) GetTimer(c *fiber.Ctx) error {
	if _, err := h.sessionForRequest(c); err != nil {
		return respondError(c, err)
	}
	timer, err := h.Sessions.GetTurnTimer(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", timer)
}

func (h *HandlerManager) ValidateTurn(c *fiber.Ctx) error {
	if _, err := h.sessionForRequest(c); err != nil {
		return respondError(c, err)
	}
	ok, err := h.Sessions.ValidateParticipantTurn(c.UserContext(), c.Params("sessionId"), c.Params("participantId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"canSpeak": ok})
}

func (h *HandlerManager) GetParticipant(c *fiber.Ctx) error {
	if _, err := h.sessionForRequest(c); err != nil {
		return respondError(c, err)
	}
	p, err := h.Sessions.GetParticipant(c.UserContext(), c.Params("sessionId"), c.Params("participantId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", p)
}

func (h *HandlerManager) StartSession(c *fiber.Ctx) error {
	return h.transition(c, "Session started", h.Sessions.StartSession)
}

func (h *HandlerManager) PauseSession(c *fiber.Ctx) error {
	return h.transition(c, "Session paused", h.Sessions.PauseSession)
}

func (h *HandlerManager) ResumeSession(c *fiber.Ctx) error {
	return h.transition(c, "Session resumed", h.Sessions.ResumeSession)
}

func (h *HandlerManager) EndSession(c *fiber.Ctx) error {
	s, err := h.sessionForRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	eval, err := h.Sessions.EndSession(c.UserContext(), s.SessionID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Session ended", eval)
}

func (h *HandlerManager) AddMessage(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
	}
	content := security.SanitizeMessage(req.Content)
	if content == "" {
		return respondError(c, errors.New(errors.ErrCodeValidation, "message content cannot be empty"))
	}

	claims := middleware.ClaimsFrom(c)
	s, err := h.Sessions.AddMessage(c.UserContext(), c.Params("sessionId"), models.DebateMessage{
		SenderID: claims.UserID,
		Content:  content,
		Type:     req.Type,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Message added", s.Messages[len(s.Messages)-1])
}

func (h *HandlerManager) AddChatMessage(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
	}

	claims := middleware.ClaimsFrom(c)
	s, err := h.Sessions.AddChatMessage(c.UserContext(), c.Params("sessionId"), models.ChatMessage{
		SenderID: claims.UserID,
		Content:  security.SanitizeMessage(req.Content),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Chat message added", s.ChatMessages[len(s.ChatMessages)-1])
}

func (h *HandlerManager) AddParticipant(c *fiber.Ctx) error {
	var p models.Participant
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
	}
	if !security.ValidateIdentifier(p.ID) {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid participant id"))
	}
	p.Name = displayText(p.Name)

	s, err := h.Sessions.AddParticipant(c.UserContext(), c.Params("sessionId"), p)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Participant added", s)
}

func (h *HandlerManager) UpdateRules(c *fiber.Ctx) error {
	var patch session.RulesPatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
	}
	s, err := h.Sessions.UpdateRules(c.UserContext(), c.Params("sessionId"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Rules updated", s.Rules)
}

func (h *HandlerManager) ChangeTurn(c *fiber.Ctx) error {
	req, err := parseParticipantRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	s, err := h.Sessions.ChangeTurn(c.UserContext(), c.Params("sessionId"), req.ParticipantID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Turn changed", fiber.Map{"currentTurn": s.CurrentTurn})
}

func (h *HandlerManager) Disqualify(c *fiber.Ctx) error {
	req, err := parseParticipantRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	s, err := h.Sessions.DisqualifyParticipant(c.UserContext(), c.Params("sessionId"), req.ParticipantID, security.SanitizeMessage(req.Reason))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Participant disqualified", s.Participant(req.ParticipantID))
}

func (h *HandlerManager) SetScore(c *fiber.Ctx) error {
	req, err := parseParticipantRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	if req.Score == nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "score is required"))
	}
	s, err := h.Sessions.SetParticipantScore(c.UserContext(), c.Params("sessionId"), req.ParticipantID, *req.Score)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Score updated", s.Participant(req.ParticipantID))
}

// RemoveSession drops the live session. Admins may add purge=true to delete the durable records too.
func (h *HandlerManager) RemoveSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	purge := c.QueryBool("purge", false)
	if purge && !middleware.ClaimsFrom(c).HasRole(security.RoleAdmin) {
		return respondError(c, errors.New(errors.ErrCodeForbidden, "only admins can purge records"))
	}

	if err := h.Sessions.RemoveSession(c.UserContext(), sessionID); err != nil {
		return respondError(c, err)
	}
	if purge && h.Results != nil {
		if err := h.Results.DeleteSession(c.UserContext(), sessionID); err != nil {
			return respondError(c, err)
		}
	}
	return respond(c, fiber.StatusOK, "Session removed", nil)
}

func (h *HandlerManager) ParticipantConnected(c *fiber.Ctx) error {
	return h.connectivity(c, true)
}

func (h *HandlerManager) ParticipantDisconnected(c *fiber.Ctx) error {
	return h.connectivity(c, false)
}

func (h *HandlerManager) ExportResults(c *fiber.Ctx) error {
	records, err := h.Results.ListEndedSessions(c.UserContext(), maxExportRows)
	if err != nil {
		return respondError(c, err)
	}

	wb := reports.NewWorkbook()
	defer wb.Close()
	if err := wb.AddResults(records); err != nil {
		return respondError(c, errors.Wrap(err, errors.ErrCodeInternalError, "failed to build export"))
	}
	return sendWorkbook(c, wb, "debate-results")
}

func (h *HandlerManager) connectivity(c *fiber.Ctx, connected bool) error {
	var req participantRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errors.New(errors.ErrCodeValidation, "invalid request body"))
	}
	if req.SessionID == "" {
		return respondError(c, errors.New(errors.ErrCodeValidation, "sessionId is required"))
	}
	participantID, err := actingUser(c, req.ParticipantID)
	if err != nil {
		return respondError(c, err)
	}

	if connected {
		err = h.Sessions.MarkConnected(c.UserContext(), req.SessionID, participantID)
	} else {
		err = h.Sessions.MarkDisconnected(c.UserContext(), req.SessionID, participantID)
	}
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Connectivity updated", fiber.Map{
		"sessionId":     req.SessionID,
		"participantId": participantID,
		"isConnected":   connected,
	})
}

type transitionFunc func(ctx context.Context, sessionID string) (*models.DebateSession, error)

func (h *HandlerManager) transition(c *fiber.Ctx, message string, fn transitionFunc) error {
	s, err := h.sessionForRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	s, err = fn(c.UserContext(), s.SessionID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, message, s)
}

// sessionForRequest loads the session and checks the caller is a participant or a moderator.
func (h *HandlerManager) sessionForRequest(c *fiber.Ctx) (*models.DebateSession, error) {
	s, err := h.Sessions.GetSession(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return nil, err
	}
	if isModerator(c) {
		return s, nil
	}
	claims := middleware.ClaimsFrom(c)
	if claims == nil || !s.HasParticipant(claims.UserID) {
		return nil, errors.New(errors.ErrCodeForbidden, "not a participant of this session")
	}
	return s, nil
}

// displayText cleans names and topics, which are shown on a single line.
func displayText(s string) string {
	return utils.CollapseSpaces(security.SanitizeMessage(s))
}

func parseParticipantRequest(c *fiber.Ctx) (*participantRequest, error) {
	var req participantRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New(errors.ErrCodeValidation, "invalid request body")
	}
	if req.ParticipantID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "participantId is required")
	}
	return &req, nil
}
