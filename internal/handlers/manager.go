package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/debate_hub/internal/config"
	"github.com/mroshb/debate_hub/internal/matchmaking"
	"github.com/mroshb/debate_hub/internal/middleware"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/security"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/pkg/errors"
)

// MatchHistory lists accepted pairings.
type MatchHistory interface {
	ListMatches(ctx context.Context, filters *models.MatchFilters) ([]models.Match, error)
}

// ResultArchive reads and purges durable debate records.
type ResultArchive interface {
	ListEndedSessions(ctx context.Context, limit int) ([]models.DebateSessionRecord, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// HandlerManager carries the dependencies of both HTTP surfaces. A service only
// fills in what its routes need.
type HandlerManager struct {
	Config      *config.Config
	Matchmaker  *matchmaking.Matchmaker
	Matches     MatchHistory
	Sessions    *session.Manager
	Results     ResultArchive
	Hub         *Hub
	RateLimiter *middleware.RateLimiter
}

// RegisterMatchmakingRoutes mounts the matchmaking service API.
func (h *HandlerManager) RegisterMatchmakingRoutes(app *fiber.App) {
	app.Get("/health", healthHandler("matchmaking"))

	mm := app.Group("/matchmaking", h.authChain()...)
	mm.Post("/enqueue", h.Enqueue)
	mm.Post("/dequeue", h.Dequeue)
	mm.Get("/queue", h.GetQueue)
	mm.Delete("/queue", middleware.RequireRole(security.RoleAdmin), h.ClearQueue)
	mm.Get("/matches/export", middleware.RequireRole(security.RoleAdmin), h.ExportMatches)
	mm.Get("/matches", h.ListMatches)
}

// RegisterDebateRoutes mounts the session service API and the websocket endpoint.
func (h *HandlerManager) RegisterDebateRoutes(app *fiber.App) {
	app.Get("/health", healthHandler("debate"))

	ws := NewWebSocketHandler(h.Hub, h.Sessions)
	app.Get("/ws/:sessionId/:userId", append(h.authChain(), ws.Upgrade, ws.Handler())...)

	moderator := middleware.RequireRole(security.RoleModerator)
	api := app.Group("/api", h.authChain()...)

	api.Post("/create", moderator, h.CreateSession)
	api.Post("/participant/connected", h.ParticipantConnected)
	api.Post("/participant/disconnected", h.ParticipantDisconnected)
	api.Get("/results/export", middleware.RequireRole(security.RoleAdmin), h.ExportResults)

	api.Get("/:sessionId", h.GetSession)
	api.Get("/:sessionId/status", h.GetStatus)
	api.Get("/:sessionId/timer", h.GetTimer)
	api.Get("/:sessionId/turn/:participantId", h.ValidateTurn)
	api.Get("/:sessionId/participant/:participantId", h.GetParticipant)

	api.Post("/:sessionId/start", h.StartSession)
	api.Post("/:sessionId/pause", h.PauseSession)
	api.Post("/:sessionId/resume", h.ResumeSession)
	api.Post("/:sessionId/end", h.EndSession)
	api.Post("/:sessionId/message", h.AddMessage)
	api.Post("/:sessionId/chat", h.AddChatMessage)

	api.Post("/:sessionId/participant", moderator, h.AddParticipant)
	api.Patch("/:sessionId/rules", moderator, h.UpdateRules)
	api.Post("/:sessionId/turn", moderator, h.ChangeTurn)
	api.Post("/:sessionId/disqualify", moderator, h.Disqualify)
	api.Post("/:sessionId/score", moderator, h.SetScore)
	api.Delete("/:sessionId/remove", moderator, h.RemoveSession)
}

func (h *HandlerManager) authChain() []fiber.Handler {
	chain := []fiber.Handler{middleware.RequireAuth(h.Config.JWTSecret)}
	if h.RateLimiter != nil {
		chain = append(chain, h.RateLimiter.Handler())
	}
	return chain
}

// actingUser resolves the user a request acts for. Only moderators may act for others.
func actingUser(c *fiber.Ctx, requested string) (string, error) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return "", errors.New(errors.ErrCodeUnauthorized, "missing authentication")
	}
	if requested == "" || requested == claims.UserID {
		return claims.UserID, nil
	}
	if !claims.HasRole(security.RoleModerator) {
		return "", errors.New(errors.ErrCodeForbidden, "cannot act on behalf of another user")
	}
	if !security.ValidateIdentifier(requested) {
		return "", errors.New(errors.ErrCodeValidation, "invalid user id")
	}
	return requested, nil
}

func isModerator(c *fiber.Ctx) bool {
	claims := middleware.ClaimsFrom(c)
	return claims != nil && claims.HasRole(security.RoleModerator)
}
