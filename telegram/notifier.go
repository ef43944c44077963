package telegram

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/debate_hub/internal/events"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
)

// QueueGroup is the queue group of the ops feed. It differs from the service
// groups so the feed gets its own copy of every event.
const QueueGroup = "ops-notifier"

const maxRetries = 3

// Notifier posts matchmaking and debate summaries to an admin chat.
type Notifier struct {
	api        *tgbotapi.BotAPI
	chatID     int64
	retryDelay time.Duration
}

// NewNotifier authorizes the bot. An empty endpoint means the public Bot API.
func NewNotifier(token string, chatID int64, endpoint string, debug bool) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "bot token and admin chat id are required")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to create bot")
	}
	api.Debug = debug

	logger.Info("Authorized on account", "username", api.Self.UserName)
	return &Notifier{api: api, chatID: chatID, retryDelay: time.Second}, nil
}

// Register subscribes the feed to the events it reports.
func (n *Notifier) Register(sub events.Subscriber) error {
	if err := sub.Subscribe(events.TopicMatchFound, n.handleMatchFound); err != nil {
		return err
	}
	return sub.Subscribe(events.TopicDebateEnded, n.handleDebateEnded)
}

func (n *Notifier) handleMatchFound(_ context.Context, data []byte) error {
	var evt events.MatchFound
	if err := events.Decode(data, &evt); err != nil {
		return err
	}
	_, err := n.Send(formatMatchFound(evt))
	return err
}

func (n *Notifier) handleDebateEnded(_ context.Context, data []byte) error {
	var evt events.DebateEnded
	if err := events.Decode(data, &evt); err != nil {
		return err
	}
	_, err := n.Send(formatDebateEnded(evt))
	return err
}

// Send posts an HTML message, retrying network failures. It returns the message id.
func (n *Notifier) Send(text string) (int, error) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		sent, err := n.api.Send(msg)
		if err == nil {
			return sent.MessageID, nil
		}
		lastErr = err
		logger.Error("Failed to send message", "error", err, "chat_id", n.chatID, "attempt", i+1)

		if !isNetworkError(err) {
			break
		}
		time.Sleep(time.Duration(i+1) * n.retryDelay)
	}
	return 0, errors.Wrap(lastErr, errors.ErrCodeUnavailable, "failed to send ops message")
}

func isNetworkError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "network is unreachable")
}

func formatMatchFound(evt events.MatchFound) string {
	var b strings.Builder
	b.WriteString("<b>Match found</b>\n")
	fmt.Fprintf(&b, "Users: %s\n", html.EscapeString(strings.Join(evt.Users, " vs ")))
	fmt.Fprintf(&b, "Type: %s (%s)\n", html.EscapeString(evt.DebateType), html.EscapeString(evt.Mode))
	if evt.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", html.EscapeString(evt.Language))
	}
	fmt.Fprintf(&b, "Duration: %d min", evt.DurationMinutes)
	return b.String()
}

func formatDebateEnded(evt events.DebateEnded) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Debate ended</b> <code>%s</code>\n", html.EscapeString(evt.SessionID))
	switch {
	case evt.IsDraw || evt.WinnerID == nil:
		b.WriteString("Result: draw\n")
	default:
		fmt.Fprintf(&b, "Winner: %s\n", html.EscapeString(*evt.WinnerID))
	}

	ids := make([]string, 0, len(evt.Scores))
	for id := range evt.Scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	scores := make([]string, len(ids))
	for i, id := range ids {
		scores[i] = fmt.Sprintf("%s %d", html.EscapeString(id), evt.Scores[id])
	}
	fmt.Fprintf(&b, "Scores: %s\n", strings.Join(scores, ", "))

	if evt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", html.EscapeString(evt.Reason))
	}
	fmt.Fprintf(&b, "Active time: %s", (time.Duration(evt.ElapsedSecs) * time.Second).String())
	return b.String()
}
