package handlers

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/mroshb/debate_hub/internal/middleware"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/security"
	"github.com/mroshb/debate_hub/internal/session"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
)

// Inbound websocket events
const (
	WSEventSendMessage = "send_message"
	WSEventSendChat    = "send_chat"
	WSEventTurnChange  = "turn_change"
	WSEventPing        = "ping"
)

// Outbound websocket events besides session notifications
const (
	WSEventSessionState = "session_state"
	WSEventPong         = "pong"
	WSEventError        = "error"
)

const (
	localModerator   = "ws_moderator"
	operationTimeout = 10 * time.Second
	maxFrameBytes    = 16 * 1024
)

type wsMessage struct {
	Content       string `json:"content"`
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
}

type wsErrorPayload struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

type WebSocketHandler struct {
	hub      *Hub
	sessions *session.Manager
}

func NewWebSocketHandler(hub *Hub, sessions *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, sessions: sessions}
}

// Upgrade admits websocket upgrades for the authenticated user's own seat.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return fiber.ErrUnauthorized
	}
	moderator := claims.HasRole(security.RoleModerator)
	if claims.UserID != c.Params("userId") && !moderator {
		return fiber.NewError(fiber.StatusForbidden, "cannot join as another user")
	}
	c.Locals(localModerator, moderator)
	return c.Next()
}

func (h *WebSocketHandler) Handler() fiber.Handler {
	return websocket.New(h.handle)
}

func (h *WebSocketHandler) handle(conn *websocket.Conn) {
	sessionID := conn.Params("sessionId")
	userID := conn.Params("userId")
	moderator, _ := conn.Locals(localModerator).(bool)

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	err := h.sessions.MarkConnected(ctx, sessionID, userID)
	cancel()
	if err != nil {
		data, _ := json.Marshal(errorFrame(err))
		_ = conn.WriteMessage(websocket.TextMessage, data)
		return
	}

	client := newClient(sessionID, userID, conn)
	h.hub.register(client)
	done := make(chan struct{})
	go func() {
		client.writePump()
		close(done)
	}()

	logger.Info("Websocket joined", "session_id", sessionID, "participant_id", userID)
	h.sendState(client)

	conn.SetReadLimit(maxFrameBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.dispatch(client, moderator, data)
	}

	remaining := h.hub.unregister(client)
	<-done
	logger.Info("Websocket left", "session_id", sessionID, "participant_id", userID)

	if remaining == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
		defer cancel()
		if err := h.sessions.MarkDisconnected(ctx, sessionID, userID); err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
			logger.Warn("Failed to mark participant disconnected", "session_id", sessionID, "participant_id", userID, "error", err)
		}
	}
}

func (h *WebSocketHandler) dispatch(client *wsClient, moderator bool, data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		h.reply(client, errorFrame(errors.New(errors.ErrCodeValidation, "malformed frame")))
		return
	}

	var msg wsMessage
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &msg); err != nil {
			h.reply(client, errorFrame(errors.New(errors.ErrCodeValidation, "malformed frame data")))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	var err error
	switch in.Event {
	case WSEventPing:
		h.reply(client, Frame{Event: WSEventPong})
	case WSEventSendMessage:
		content := security.SanitizeMessage(msg.Content)
		if content == "" {
			err = errors.New(errors.ErrCodeValidation, "message content cannot be empty")
			break
		}
		_, err = h.sessions.AddMessage(ctx, client.sessionID, models.DebateMessage{
			SenderID: client.participantID,
			Content:  content,
			Type:     msg.Type,
		})
	case WSEventSendChat:
		_, err = h.sessions.AddChatMessage(ctx, client.sessionID, models.ChatMessage{
			SenderID: client.participantID,
			Content:  security.SanitizeMessage(msg.Content),
		})
	case WSEventTurnChange:
		err = h.changeTurn(ctx, client, moderator, msg.ParticipantID)
	default:
		err = errors.Newf(errors.ErrCodeValidation, "unknown event %q", in.Event)
	}

	if err != nil {
		h.reply(client, errorFrame(err))
	}
}

// changeTurn lets the turn holder yield the floor. Moderators may hand it to anyone.
func (h *WebSocketHandler) changeTurn(ctx context.Context, client *wsClient, moderator bool, target string) error {
	if target == "" {
		return errors.New(errors.ErrCodeValidation, "participantId is required")
	}
	if !moderator {
		s, err := h.sessions.GetSession(ctx, client.sessionID)
		if err != nil {
			return err
		}
		if !s.IsTurnOf(client.participantID) {
			return errors.New(errors.ErrCodeForbidden, "only the turn holder can hand over the turn")
		}
	}
	_, err := h.sessions.ChangeTurn(ctx, client.sessionID, target)
	return err
}

func (h *WebSocketHandler) sendState(client *wsClient) {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	s, err := h.sessions.GetSession(ctx, client.sessionID)
	if err != nil {
		h.reply(client, errorFrame(err))
		return
	}
	h.reply(client, Frame{Event: WSEventSessionState, Data: s})
}

func (h *WebSocketHandler) reply(client *wsClient, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		logger.Error("Failed to encode frame", "event", f.Event, "error", err)
		return
	}
	if !h.hub.deliver(client, data) {
		logger.Debug("Reply dropped", "session_id", client.sessionID, "participant_id", client.participantID, "event", f.Event)
	}
}

func errorFrame(err error) Frame {
	_, body := errorBody(err)
	return Frame{Event: WSEventError, Data: wsErrorPayload{Code: body.Code, Reason: body.Reason, Message: body.Error}}
}
