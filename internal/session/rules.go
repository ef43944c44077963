package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/utils"
)

// Message limits
const (
	MinMessageLength          = 5
	MaxMessageLength          = 1000
	MaxMessagesPerParticipant = 30
	MinMessageInterval        = 5 * time.Second
	spamRunLength             = 6
)

// Rejection reasons
const (
	ReasonSessionNotOngoing = "SESSION_NOT_ONGOING"
	ReasonNotParticipant    = "NOT_PARTICIPANT"
	ReasonDisqualified      = "DISQUALIFIED"
	ReasonTypeDisabled      = "MESSAGE_TYPE_DISABLED"
	ReasonNotYourTurn       = "NOT_YOUR_TURN"
	ReasonTooShort          = "MESSAGE_TOO_SHORT"
	ReasonTooLong           = "MESSAGE_TOO_LONG"
	ReasonProfanity         = "PROFANITY"
	ReasonRepetition        = "REPEATED_MESSAGE"
	ReasonTooFrequent       = "MESSAGE_TOO_FREQUENT"
	ReasonSpam              = "SPAM_PATTERN"
	ReasonMessageLimit      = "MESSAGE_LIMIT_REACHED"
)

var profanityList = []string{"badword1", "badword2", "damn", "hell", "shit", "fuck"}

var profanityRegex = func() *regexp.Regexp {
	quoted := make([]string, len(profanityList))
	for i, w := range profanityList {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}()

// Violation is a message rejected by the rule engine.
type Violation struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (v *Violation) Error() string {
	return v.Reason + ": " + v.Message
}

func violation(reason, format string, args ...interface{}) *Violation {
	return &Violation{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// RuleEngine validates messages against a session snapshot. It holds no state.
type RuleEngine struct {
	now func() time.Time
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{now: time.Now}
}

// CanSpeak reports whether the participant holds a live turn.
func (r *RuleEngine) CanSpeak(s *models.DebateSession, participantID string) bool {
	if s.State != models.SessionStateOngoing {
		return false
	}
	p := s.Participant(participantID)
	if p == nil || p.Disqualified {
		return false
	}
	return r.holdsTurn(s, participantID)
}

func (r *RuleEngine) holdsTurn(s *models.DebateSession, participantID string) bool {
	if !s.IsTurnOf(participantID) || s.TurnStartedAt == nil {
		return false
	}
	limit := time.Duration(s.Rules.TurnDurationSecs) * time.Second
	return r.now().Sub(*s.TurnStartedAt) <= limit
}

// ValidateMessage returns nil or the first failing rule as a *Violation.
// The order of the checks is part of the contract.
func (r *RuleEngine) ValidateMessage(s *models.DebateSession, msg *models.DebateMessage) error {
	if s.State != models.SessionStateOngoing {
		return violation(ReasonSessionNotOngoing, "Debate is not ongoing; messages are not accepted.")
	}

	p := s.Participant(msg.SenderID)
	if p == nil {
		return violation(ReasonNotParticipant, "Sender is not a participant in this debate.")
	}
	if p.Disqualified {
		return violation(ReasonDisqualified, "You are disqualified from this debate.")
	}

	if msg.Type == models.MessageTypeChat && !s.Rules.AllowChat {
		return violation(ReasonTypeDisabled, "Chat messages are not allowed in this debate.")
	}
	if msg.Type == models.MessageTypeVoice && !s.Rules.AllowVoice {
		return violation(ReasonTypeDisabled, "Voice messages are not allowed in this debate.")
	}

	if !r.holdsTurn(s, msg.SenderID) {
		return violation(ReasonNotYourTurn, "It is not your turn or your turn has expired.")
	}

	relaxed := s.Rules.RelaxedMode
	if !relaxed {
		length := utils.TrimmedLength(msg.Content)
		if length < MinMessageLength {
			return violation(ReasonTooShort, "Message too short; minimum length is %d characters.", MinMessageLength)
		}
		if length > MaxMessageLength {
			return violation(ReasonTooLong, "Message too long; maximum allowed length is %d characters.", MaxMessageLength)
		}
	}

	if !relaxed && s.DebateType != models.DebateTypeUnprofessional && profanityRegex.MatchString(msg.Content) {
		return violation(ReasonProfanity, "Message contains inappropriate language.")
	}

	previous := s.MessagesFrom(msg.SenderID)
	if !relaxed && len(previous) > 0 && previous[len(previous)-1].Content == msg.Content {
		return violation(ReasonRepetition, "Please avoid repeating the same message consecutively.")
	}

	if len(previous) > 0 && r.now().Sub(previous[len(previous)-1].Timestamp) < MinMessageInterval {
		return violation(ReasonTooFrequent, "Please wait at least %d seconds between messages.", int(MinMessageInterval/time.Second))
	}

	if hasRepeatedRun(msg.Content, spamRunLength) {
		return violation(ReasonSpam, "Message contains repeated characters or symbols, which is not allowed.")
	}

	if len(previous) >= MaxMessagesPerParticipant {
		return violation(ReasonMessageLimit, "You have reached the maximum number of messages allowed in this debate.")
	}

	return nil
}

// hasRepeatedRun reports whether any character appears n or more times in a row.
// Line breaks never count and end the current run, so paragraph spacing is allowed.
func hasRepeatedRun(s string, n int) bool {
	var last rune
	run := 0
	for _, c := range s {
		if c == '\n' || c == '\r' {
			run = 0
			continue
		}
		if run > 0 && c == last {
			run++
		} else {
			run = 1
			last = c
		}
		if run >= n {
			return true
		}
	}
	return false
}
