package session

import (
	"context"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/store"
)

// ConnectivityRecorder stores the last known connectivity of a participant.
type ConnectivityRecorder interface {
	SetParticipantConnected(ctx context.Context, sessionID, userID string, connected bool, lastSeen time.Time) error
}

// CompositeStatusWriter writes connectivity to the shared cache first, then to
// the durable record when one is configured.
type CompositeStatusWriter struct {
	cache    *store.ConnectivityStore
	recorder ConnectivityRecorder
}

func NewCompositeStatusWriter(cache *store.ConnectivityStore, recorder ConnectivityRecorder) *CompositeStatusWriter {
	return &CompositeStatusWriter{cache: cache, recorder: recorder}
}

func (w *CompositeStatusWriter) WriteStatus(ctx context.Context, sessionID, participantID string, status models.ParticipantStatus) error {
	if err := w.cache.Set(ctx, sessionID, participantID, status); err != nil {
		return err
	}
	if w.recorder == nil {
		return nil
	}
	return w.recorder.SetParticipantConnected(ctx, sessionID, participantID, status.IsConnected, status.LastSeen)
}
