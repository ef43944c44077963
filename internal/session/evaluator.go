package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
)

// ResultRecorder persists the verdict of an ended session.
type ResultRecorder interface {
	EndSession(ctx context.Context, sessionID string, eval *models.Evaluation, endedAt time.Time) error
}

type ResultEvaluator struct {
	recorder ResultRecorder
}

func NewResultEvaluator(recorder ResultRecorder) *ResultEvaluator {
	return &ResultEvaluator{recorder: recorder}
}

// UpdateScores sets each participant's score to the number of turn messages they
// authored. Explicitly overridden scores are kept.
func (e *ResultEvaluator) UpdateScores(s *models.DebateSession) {
	counts := make(map[string]int, len(s.Participants))
	for _, m := range s.Messages {
		counts[m.SenderID]++
	}
	for i := range s.Participants {
		p := &s.Participants[i]
		if p.ScoreOverridden {
			continue
		}
		p.Score = counts[p.ID]
	}
}

// Evaluate picks the highest score. Ties are a draw with a nil WinnerID.
func (e *ResultEvaluator) Evaluate(s *models.DebateSession) (*models.Evaluation, error) {
	if s.State != models.SessionStateEnded {
		return nil, errors.Newf(errors.ErrCodeConflict, "cannot evaluate results before session ends, current state: %s", s.State)
	}
	if len(s.Participants) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "session has no participants")
	}

	eval := &models.Evaluation{Scores: make(map[string]int, len(s.Participants))}
	var winner *models.Participant
	maxScore := 0
	tied := false

	for i := range s.Participants {
		p := &s.Participants[i]
		eval.Scores[p.ID] = p.Score
		switch {
		case winner == nil || p.Score > maxScore:
			winner = p
			maxScore = p.Score
			tied = false
		case p.Score == maxScore:
			tied = true
		}
	}

	if tied {
		eval.IsDraw = true
		eval.Summary = fmt.Sprintf("The debate ended in a draw with both participants scoring %d.", maxScore)
		return eval, nil
	}

	id := winner.ID
	eval.WinnerID = &id
	eval.Summary = fmt.Sprintf("Winner is %s (%s) with score %d.", displayName(winner), winner.Role, maxScore)
	return eval, nil
}

// EvaluateAndPersist evaluates and writes scores and the verdict to durable storage.
func (e *ResultEvaluator) EvaluateAndPersist(ctx context.Context, s *models.DebateSession) (*models.Evaluation, error) {
	eval, err := e.Evaluate(s)
	if err != nil {
		return nil, err
	}
	if e.recorder == nil {
		return eval, nil
	}

	endedAt := time.Now().UTC()
	if s.EndTime != nil {
		endedAt = *s.EndTime
	}
	if err := e.recorder.EndSession(ctx, s.SessionID, eval, endedAt); err != nil {
		return eval, err
	}
	return eval, nil
}

func displayName(p *models.Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
