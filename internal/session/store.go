// Package session keeps the accumulated state of every honeypot conversation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// Mutator adjusts a session inside the store's critical section. It runs
// after the base update has been applied.
type Mutator func(s *models.Session) error

// Backend persists sessions beyond process lifetime.
type Backend interface {
	// LoadSession returns models.ErrSessionNotFound when the id is unknown.
	LoadSession(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, s *models.Session) error
}

// Store is the session store contract.
type Store interface {
	GetOrCreate(ctx context.Context, id, persona string) (*models.Session, bool, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, id string, msg models.Message, intel models.Intelligence, mutate Mutator) (*models.Session, error)
	Mutate(ctx context.Context, id string, mutate Mutator) (*models.Session, error)
	MarkCallbackSent(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*models.Session, error)
}

// MemoryStore holds sessions in memory, optionally writing through to a Backend.
// Every returned session is a copy; callers never alias store internals.
// Writes to one id are serialized through the backend save, so the backend
// sees snapshots of a session in commit order.
type MemoryStore struct {
	mu       sync.RWMutex
	writes   *KeyedMutex
	sessions map[string]*models.Session
	backend  Backend
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithBackend enables write-through persistence and hydration on cache miss.
func WithBackend(b Backend) Option {
	return func(s *MemoryStore) { s.backend = b }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *zap.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		writes:   NewKeyedMutex(),
		sessions: make(map[string]*models.Session),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session for id, creating it when unknown. The bool
// reports whether a new session was created.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id, persona string) (*models.Session, bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return s.snapshot(id), false, nil
	}

	loaded, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}

	unlock := s.writes.Lock(id)
	defer unlock()

	s.mu.Lock()
	created := false
	if sess, ok = s.sessions[id]; !ok {
		if loaded != nil {
			sess = loaded
		} else {
			sess = models.NewSession(id, persona, s.now().UTC())
			created = true
		}
		s.sessions[id] = sess
	}
	out := sess.Clone()
	s.mu.Unlock()

	if created {
		s.logger.Info("Session created", zap.String("session_id", id), zap.String("persona", persona))
		s.persist(ctx, out)
	}
	return out, created, nil
}

// Get returns the session or models.ErrSessionNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if out := s.snapshot(id); out != nil {
		return out, nil
	}
	loaded, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, models.ErrSessionNotFound
	}

	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = loaded
	}
	out := s.sessions[id].Clone()
	s.mu.Unlock()
	return out, nil
}

// Update applies one inbound message atomically: the message count grows by
// exactly one, intel is unioned in, last_active moves forward only and the
// message is appended to the history. mutate then runs in the same critical
// section; if it fails the base update is still committed.
func (s *MemoryStore) Update(ctx context.Context, id string, msg models.Message, intel models.Intelligence, mutate Mutator) (*models.Session, error) {
	unlock := s.writes.Lock(id)
	defer unlock()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("update %s: %w", id, models.ErrSessionNotFound)
	}

	sess.MessageCount++
	sess.Intelligence.Merge(intel)
	sess.Touch(msg.Timestamp.Time())
	sess.History = append(sess.History, msg)

	s.applyLocked(sess, mutate)
	out := sess.Clone()
	s.mu.Unlock()

	s.persist(ctx, out)
	return out, nil
}

// Mutate runs mutate against the session under the store lock.
func (s *MemoryStore) Mutate(ctx context.Context, id string, mutate Mutator) (*models.Session, error) {
	unlock := s.writes.Lock(id)
	defer unlock()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("mutate %s: %w", id, models.ErrSessionNotFound)
	}
	s.applyLocked(sess, mutate)
	out := sess.Clone()
	s.mu.Unlock()

	s.persist(ctx, out)
	return out, nil
}

// MarkCallbackSent flips callback_sent from false to true. It returns true only
// for the single caller that performed the flip. The flip is refused while the
// scam is not confirmed.
func (s *MemoryStore) MarkCallbackSent(ctx context.Context, id string) (bool, error) {
	unlock := s.writes.Lock(id)
	defer unlock()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("mark callback %s: %w", id, models.ErrSessionNotFound)
	}
	if sess.CallbackSent || !sess.ScamConfirmed {
		s.mu.Unlock()
		return false, nil
	}
	sess.CallbackSent = true
	out := sess.Clone()
	s.mu.Unlock()

	s.persist(ctx, out)
	return true, nil
}

// List returns every cached session ordered by last activity, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	out := make([]*models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out, nil
}

// applyLocked runs mutate on a copy and merges the result back while keeping
// the one-way invariants: intelligence only grows, confidence and phase never
// go down and callback_sent never returns to false.
func (s *MemoryStore) applyLocked(sess *models.Session, mutate Mutator) {
	if mutate == nil {
		return
	}
	next := sess.Clone()
	if err := mutate(next); err != nil {
		s.logger.Warn("Session mutator failed, keeping base update",
			zap.String("session_id", sess.ID), zap.Error(err))
		return
	}

	next.ID = sess.ID
	next.MessageCount = sess.MessageCount
	next.Intelligence.Merge(sess.Intelligence)
	next.ScamTypes = unionSet(next.ScamTypes, sess.ScamTypes)
	if next.ScamConfidence < sess.ScamConfidence {
		next.ScamConfidence = sess.ScamConfidence
	}
	if next.Phase < sess.Phase {
		next.Phase = sess.Phase
	}
	next.CallbackSent = next.CallbackSent || sess.CallbackSent
	next.ScamConfirmed = next.ScamConfirmed || sess.ScamConfirmed
	if next.LastActive.Before(sess.LastActive) {
		next.LastActive = sess.LastActive
	}
	*sess = *next
}

func (s *MemoryStore) snapshot(id string) *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone()
	}
	return nil
}

// load asks the backend for a session. A nil session with a nil error means
// the backend does not know the id either.
func (s *MemoryStore) load(ctx context.Context, id string) (*models.Session, error) {
	if s.backend == nil {
		return nil, nil
	}
	sess, err := s.backend.LoadSession(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if sess.Intelligence == nil {
		sess.Intelligence = models.NewIntelligence()
	}
	if sess.ScamTypes == nil {
		sess.ScamTypes = make(models.Set)
	}
	return sess, nil
}

// persist writes a committed snapshot. Callers hold the id's write lock.
// Failures are logged; a committed update is never rolled back.
func (s *MemoryStore) persist(ctx context.Context, sess *models.Session) {
	if s.backend == nil {
		return
	}
	if err := s.backend.SaveSession(context.WithoutCancel(ctx), sess); err != nil {
		s.logger.Error("Failed to persist session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func unionSet(a, b models.Set) models.Set {
	out := models.NewSet(a.Sorted()...)
	for v := range b {
		out.Add(v)
	}
	return out
}
