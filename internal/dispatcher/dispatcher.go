// Package dispatcher decides when a session is ready to be reported and
// delivers the callback payload.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
	"github.com/obiwankenobi699/HoneyPot/internal/session"
	"github.com/obiwankenobi699/HoneyPot/internal/tracker"
)

// SessionFlipper is the part of the session store the dispatcher needs.
type SessionFlipper interface {
	MarkCallbackSent(ctx context.Context, id string) (bool, error)
	Mutate(ctx context.Context, id string, mutate session.Mutator) (*models.Session, error)
}

// Dispatcher builds the callback payload exactly once per confirmed session.
type Dispatcher struct {
	store   SessionFlipper
	tracker *tracker.Tracker
	notes   NotesWriter
	logger  *zap.Logger
}

// New creates a dispatcher. A nil notes writer selects TemplateNotes.
func New(store SessionFlipper, tr *tracker.Tracker, notes NotesWriter, logger *zap.Logger) *Dispatcher {
	if notes == nil {
		notes = TemplateNotes{}
	}
	return &Dispatcher{store: store, tracker: tr, notes: notes, logger: logger}
}

// MaybeDispatch returns a payload when s has reached the confirmed phase and
// no callback was sent yet. The callback_sent flag is flipped atomically in the
// store, so concurrent callers get at most one payload between them. The
// returned session reflects the reported phase when a payload is produced.
func (d *Dispatcher) MaybeDispatch(ctx context.Context, s *models.Session) (*models.CallbackPayload, *models.Session, error) {
	if s.Phase != models.PhaseConfirmed || s.CallbackSent || !s.ScamConfirmed {
		return nil, s, nil
	}

	won, err := d.store.MarkCallbackSent(ctx, s.ID)
	if err != nil {
		return nil, s, fmt.Errorf("failed to mark callback sent: %w", err)
	}
	if !won {
		d.logger.Debug("Callback already dispatched", zap.String("session_id", s.ID),
			zap.Error(models.ErrCallbackAlreadySent))
		return nil, s, nil
	}

	reported, err := d.store.Mutate(ctx, s.ID, func(sess *models.Session) error {
		d.tracker.Advance(sess)
		return nil
	})
	if err != nil {
		// The flag is already flipped; report with what we have.
		d.logger.Error("Failed to advance session to reported", zap.String("session_id", s.ID), zap.Error(err))
		reported = s.Clone()
		reported.CallbackSent = true
	}

	payload := BuildPayload(reported, d.notes.Notes(reported))

	d.logger.Info("Callback payload built",
		zap.String("session_id", reported.ID),
		zap.Int("messages", reported.MessageCount),
		zap.Float64("confidence", reported.ScamConfidence))

	return payload, reported, nil
}

// BuildPayload projects a session into the external callback shape.
func BuildPayload(s *models.Session, notes string) *models.CallbackPayload {
	return &models.CallbackPayload{
		SessionID:              s.ID,
		ScamDetected:           true,
		TotalMessagesExchanged: s.MessageCount,
		ExtractedIntelligence:  s.Intelligence.Project(),
		AgentNotes:             notes,
	}
}
