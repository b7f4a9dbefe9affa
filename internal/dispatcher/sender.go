package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

var (
	// ErrQueueFull is returned by Enqueue when the delivery backlog is saturated.
	ErrQueueFull = errors.New("delivery queue full")
	// ErrSenderStopped is returned by Enqueue after Stop.
	ErrSenderStopped = errors.New("sender stopped")
)

// Deliverer sends a payload to the callback endpoint and reports the attempts used.
type Deliverer interface {
	Send(ctx context.Context, payload *models.CallbackPayload) (int, error)
}

// NotesEnricher rewrites the draft agent notes before delivery.
type NotesEnricher interface {
	EnrichNotes(ctx context.Context, s *models.Session, draft string) (string, error)
}

// Sink is told about every reported session after delivery.
type Sink interface {
	NotifyReported(ctx context.Context, rec models.DeliveryRecord) error
}

// DeliveryLog persists delivery outcomes.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, rec models.DeliveryRecord) error
}

// PendingSource lists reported sessions whose callback was never delivered.
type PendingSource interface {
	PendingCallbacks(ctx context.Context) ([]*models.Session, error)
}

// Job is one queued callback.
type Job struct {
	Payload *models.CallbackPayload
	Session *models.Session
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithEnricher sets the notes enricher.
func WithEnricher(e NotesEnricher) SenderOption {
	return func(s *Sender) { s.enricher = e }
}

// WithSinks appends notification sinks.
func WithSinks(sinks ...Sink) SenderOption {
	return func(s *Sender) { s.sinks = append(s.sinks, sinks...) }
}

// WithDeliveryLog sets the delivery log.
func WithDeliveryLog(l DeliveryLog) SenderOption {
	return func(s *Sender) { s.log = l }
}

// WithRedrive makes Start queue every session src still owes a callback.
// Notes for those payloads come from notes, TemplateNotes when nil.
func WithRedrive(src PendingSource, notes NotesWriter) SenderOption {
	return func(s *Sender) {
		s.pending = src
		s.notes = notes
	}
}

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) SenderOption {
	return func(s *Sender) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWorkers sets the number of delivery goroutines.
func WithWorkers(n int) SenderOption {
	return func(s *Sender) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Sender delivers callback jobs in the background so request handling
// never waits on the callback endpoint.
type Sender struct {
	deliverer Deliverer
	enricher  NotesEnricher
	sinks     []Sink
	log       DeliveryLog
	pending   PendingSource
	notes     NotesWriter
	logger    *zap.Logger

	queueSize int
	workers   int

	mu      sync.RWMutex
	queue   chan Job
	stopped bool
	wg      sync.WaitGroup
}

// NewSender creates a sender. A nil deliverer records every job as skipped.
func NewSender(deliverer Deliverer, logger *zap.Logger, opts ...SenderOption) *Sender {
	s := &Sender{
		deliverer: deliverer,
		logger:    logger,
		queueSize: 64,
		workers:   2,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notes == nil {
		s.notes = TemplateNotes{}
	}
	s.queue = make(chan Job, s.queueSize)
	return s
}

// Start launches the workers. They drain the queue until Stop.
func (s *Sender) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			for job := range s.queue {
				s.process(ctx, job)
			}
			s.logger.Debug("Delivery worker exited", zap.Int("worker", worker))
		}(i)
	}
	s.logger.Info("Callback sender started", zap.Int("workers", s.workers), zap.Int("queue_size", s.queueSize))

	if s.pending != nil && s.deliverer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.redrive(ctx)
		}()
	}
}

// redrive queues the callbacks a previous run flipped but never delivered.
func (s *Sender) redrive(ctx context.Context) {
	sessions, err := s.pending.PendingCallbacks(ctx)
	if err != nil {
		s.logger.Error("Failed to list pending callbacks", zap.Error(err))
		return
	}
	if len(sessions) == 0 {
		return
	}
	s.logger.Info("Re-sending undelivered callbacks", zap.Int("count", len(sessions)))

	for _, sess := range sessions {
		job := Job{Payload: BuildPayload(sess, s.notes.Notes(sess)), Session: sess}
		if err := s.enqueueWait(ctx, job); err != nil {
			s.logger.Warn("Stopped re-sending callbacks", zap.String("session_id", sess.ID), zap.Error(err))
			return
		}
	}
}

// enqueueWait blocks until the job is queued, the sender stops or ctx ends.
func (s *Sender) enqueueWait(ctx context.Context, job Job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrSenderStopped
	}
	select {
	case s.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules a job without blocking. On error the job was not taken;
// callers that already flipped callback_sent should fall back to Deliver.
func (s *Sender) Enqueue(job Job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrSenderStopped
	}
	select {
	case s.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs or ctx expiry.
func (s *Sender) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver runs a job synchronously on the caller's goroutine and returns the
// recorded outcome.
func (s *Sender) Deliver(ctx context.Context, job Job) models.DeliveryRecord {
	return s.process(ctx, job)
}

func (s *Sender) process(ctx context.Context, job Job) models.DeliveryRecord {
	payload := *job.Payload

	if s.enricher != nil && job.Session != nil {
		notes, err := s.enricher.EnrichNotes(ctx, job.Session, payload.AgentNotes)
		if err != nil {
			s.logger.Warn("Notes enrichment failed, keeping template notes",
				zap.String("session_id", payload.SessionID), zap.Error(err))
		} else if notes != "" {
			payload.AgentNotes = notes
		}
	}

	rec := models.DeliveryRecord{
		ID:        uuid.NewString(),
		SessionID: payload.SessionID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if s.deliverer == nil {
		rec.Status = models.DeliverySkipped
	} else {
		attempts, err := s.deliverer.Send(ctx, &payload)
		rec.Attempts = attempts
		if err != nil {
			rec.Status = models.DeliveryFailed
			rec.Error = err.Error()
			s.logger.Error("Callback delivery failed",
				zap.String("session_id", payload.SessionID),
				zap.Int("attempts", attempts),
				zap.Error(err))
		} else {
			rec.Status = models.DeliveryDelivered
			s.logger.Info("Callback delivered",
				zap.String("session_id", payload.SessionID),
				zap.Int("attempts", attempts))
		}
	}

	if s.log != nil {
		if err := s.log.RecordDelivery(ctx, rec); err != nil {
			s.logger.Error("Failed to record delivery", zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}

	for _, sink := range s.sinks {
		if err := sink.NotifyReported(ctx, rec); err != nil {
			s.logger.Warn("Sink notification failed", zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}
	return rec
}
