// Package service runs one honeypot conversation turn end to end.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/classifier"
	"github.com/obiwankenobi699/HoneyPot/internal/dispatcher"
	"github.com/obiwankenobi699/HoneyPot/internal/extractor"
	"github.com/obiwankenobi699/HoneyPot/internal/models"
	"github.com/obiwankenobi699/HoneyPot/internal/persona"
	"github.com/obiwankenobi699/HoneyPot/internal/session"
	"github.com/obiwankenobi699/HoneyPot/internal/tracker"
)

// Enqueuer hands a dispatched payload to the delivery worker. Deliver is the
// synchronous fallback for a job Enqueue refused.
type Enqueuer interface {
	Enqueue(job dispatcher.Job) error
	Deliver(ctx context.Context, job dispatcher.Job) models.DeliveryRecord
}

// Deps are the collaborators of a Honeypot. Classifier, Sender and Notes are optional.
type Deps struct {
	Store      session.Store
	Extractor  *extractor.Extractor
	Classifier classifier.Classifier
	Tracker    *tracker.Tracker
	Dispatcher *dispatcher.Dispatcher
	Sender     Enqueuer
	Personas   *persona.Picker
	Responder  persona.Responder
	Notes      dispatcher.NotesWriter
}

// Honeypot handles honeypot business logic
type Honeypot struct {
	store      session.Store
	locks      *session.KeyedMutex
	extractor  *extractor.Extractor
	classifier classifier.Classifier
	tracker    *tracker.Tracker
	dispatcher *dispatcher.Dispatcher
	sender     Enqueuer
	personas   *persona.Picker
	responder  persona.Responder
	notes      dispatcher.NotesWriter
	logger     *zap.Logger
}

// NewHoneypot creates a new honeypot service
func NewHoneypot(deps Deps, logger *zap.Logger) *Honeypot {
	if deps.Personas == nil {
		deps.Personas = persona.NewPicker(nil)
	}
	if deps.Responder == nil {
		deps.Responder = persona.ScriptedResponder{}
	}
	if deps.Notes == nil {
		deps.Notes = dispatcher.TemplateNotes{}
	}
	return &Honeypot{
		store:      deps.Store,
		locks:      session.NewKeyedMutex(),
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		tracker:    deps.Tracker,
		dispatcher: deps.Dispatcher,
		sender:     deps.Sender,
		personas:   deps.Personas,
		responder:  deps.Responder,
		notes:      deps.Notes,
		logger:     logger,
	}
}

// turn is the outcome of one processed message.
type turn struct {
	session  *models.Session
	reply    string
	payload  *models.CallbackPayload
	duration time.Duration
}

// Process handles one inbound message and returns the persona's reply.
func (h *Honeypot) Process(ctx context.Context, req *models.MessageRequest) (*models.MessageResponse, error) {
	t, err := h.process(ctx, req)
	if err != nil {
		return nil, err
	}

	intel := t.session.Intelligence.Project()
	resp := &models.MessageResponse{
		Status:       "success",
		Reply:        t.reply,
		ScamDetected: t.session.ScamConfirmed,
		EngagementMetrics: &models.EngagementMetrics{
			EngagementDurationSeconds: int(t.duration / time.Second),
			TotalMessagesExchanged:    t.session.MessageCount,
		},
		ExtractedIntelligence: &intel,
	}
	switch {
	case t.payload != nil:
		resp.AgentNotes = t.payload.AgentNotes
	case t.session.ScamConfirmed:
		resp.AgentNotes = h.notes.Notes(t.session)
	}
	return resp, nil
}

// ProcessDetailed handles one inbound message and exposes the tracker state.
func (h *Honeypot) ProcessDetailed(ctx context.Context, req *models.MessageRequest) (*models.DetailedMessageResponse, error) {
	t, err := h.process(ctx, req)
	if err != nil {
		return nil, err
	}
	return detailed(t.session, t.reply, h.tracker.ShouldContinue(t.session)), nil
}

// Session returns the current state of a session without the reply.
func (h *Honeypot) Session(ctx context.Context, id string) (*models.DetailedMessageResponse, error) {
	s, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return detailed(s, "", h.tracker.ShouldContinue(s)), nil
}

// Sessions lists every known session, most recently active first.
func (h *Honeypot) Sessions(ctx context.Context) ([]*models.Session, error) {
	return h.store.List(ctx)
}

func (h *Honeypot) process(ctx context.Context, req *models.MessageRequest) (*turn, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id := req.SessionID

	// Extraction and classification read only the request, so they run
	// before the session lock is taken.
	intel, err := h.extractor.Extract(req.Message.Text, req.ConversationHistory)
	if err != nil {
		h.logger.Warn("Extraction failed, continuing without evidence",
			zap.String("session_id", id), zap.Error(err))
	}
	verdict := h.classify(ctx, id, req.Message)

	sess, payload, err := h.commit(ctx, id, req.Message, intel, verdict)
	if err != nil {
		return nil, err
	}

	if payload != nil && h.sender != nil {
		h.hand(ctx, dispatcher.Job{Payload: payload, Session: sess})
	}

	h.logger.Debug("Message processed",
		zap.String("session_id", id),
		zap.Int("message_count", sess.MessageCount),
		zap.Stringer("phase", sess.Phase),
		zap.Float64("confidence", sess.ScamConfidence))

	return &turn{
		session:  sess,
		reply:    h.responder.Reply(sess),
		payload:  payload,
		duration: engagementDuration(sess, req),
	}, nil
}

// commit applies the message, the tracker and the dispatcher decision under
// the per-session lock.
func (h *Honeypot) commit(ctx context.Context, id string, msg models.Message, intel models.Intelligence, verdict classifier.Verdict) (*models.Session, *models.CallbackPayload, error) {
	unlock := h.locks.Lock(id)
	defer unlock()

	if _, created, err := h.store.GetOrCreate(ctx, id, h.personas.Pick(id)); err != nil {
		return nil, nil, fmt.Errorf("failed to open session: %w", err)
	} else if created {
		h.logger.Info("Session started", zap.String("session_id", id))
	}

	sess, err := h.store.Update(ctx, id, msg, intel, func(s *models.Session) error {
		h.tracker.Apply(s, verdict)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update session: %w", err)
	}

	payload, dispatched, err := h.dispatcher.MaybeDispatch(ctx, sess)
	if err != nil {
		h.logger.Error("Callback dispatch failed", zap.String("session_id", id), zap.Error(err))
		return sess, nil, nil
	}
	return dispatched, payload, nil
}

// hand queues a dispatched payload. callback_sent is already true, so a job
// the queue refuses is delivered inline rather than dropped.
func (h *Honeypot) hand(ctx context.Context, job dispatcher.Job) {
	err := h.sender.Enqueue(job)
	if err == nil {
		return
	}
	h.logger.Warn("Callback queue refused job, delivering inline",
		zap.String("session_id", job.Payload.SessionID), zap.Error(err))
	rec := h.sender.Deliver(context.WithoutCancel(ctx), job)
	h.logger.Info("Inline callback delivery finished",
		zap.String("session_id", rec.SessionID), zap.String("status", rec.Status))
}

// classify degrades to an empty verdict when the classifier is missing or fails.
func (h *Honeypot) classify(ctx context.Context, id string, msg models.Message) classifier.Verdict {
	if h.classifier == nil || msg.Sender != models.SenderUser {
		return classifier.Verdict{}
	}
	v, err := h.classifier.Classify(ctx, msg.Text)
	if err != nil {
		h.logger.Warn("Classification failed, continuing without verdict",
			zap.String("session_id", id), zap.Error(err))
		return classifier.Verdict{}
	}
	return v
}

// engagementDuration is the larger of the session's own span and the span
// covered by the caller-supplied history.
func engagementDuration(s *models.Session, req *models.MessageRequest) time.Duration {
	d := s.EngagementDuration()

	earliest := req.Message.Timestamp
	for _, m := range req.ConversationHistory {
		if m.Timestamp.Before(earliest) {
			earliest = m.Timestamp
		}
	}
	if span := req.Message.Timestamp.Time().Sub(earliest.Time()); span > d {
		d = span
	}
	return d
}

func detailed(s *models.Session, reply string, shouldContinue bool) *models.DetailedMessageResponse {
	intents := s.ScamTypeList()
	return &models.DetailedMessageResponse{
		SessionID:             s.ID,
		Reply:                 reply,
		ScamDetected:          s.ScamConfirmed,
		ScamIntents:           intents,
		Confidence:            s.ScamConfidence,
		ShouldContinue:        shouldContinue,
		ExtractedIntelligence: s.Intelligence.Project(),
		ConversationPhase:     s.Phase.String(),
		MessageCount:          s.MessageCount,
	}
}
