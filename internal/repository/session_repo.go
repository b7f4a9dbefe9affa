package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// SessionRepository stores sessions and their message history.
type SessionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

type sessionRow struct {
	ID             string  `db:"id"`
	PersonaName    string  `db:"persona_name"`
	ScamConfirmed  bool    `db:"scam_confirmed"`
	ScamConfidence float64 `db:"scam_confidence"`
	ScamTypes      string  `db:"scam_types"`
	MessageCount   int     `db:"message_count"`
	Intelligence   string  `db:"intelligence"`
	Phase          string  `db:"phase"`
	CallbackSent   bool    `db:"callback_sent"`
	CreatedAt      int64   `db:"created_at"`
	LastActive     int64   `db:"last_active"`
}

type messageRow struct {
	Seq      int    `db:"seq"`
	Sender   string `db:"sender"`
	Text     string `db:"text"`
	SentAtMs int64  `db:"sent_at_ms"`
}

// LoadSession returns the stored session with its history.
func (r *SessionRepository) LoadSession(ctx context.Context, id string) (*models.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT * FROM sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s, err := row.toModel()
	if err != nil {
		return nil, err
	}

	var msgs []messageRow
	err = r.db.SelectContext(ctx, &msgs,
		r.db.Rebind(`SELECT seq, sender, text, sent_at_ms FROM messages WHERE session_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	for _, m := range msgs {
		s.History = append(s.History, models.Message{
			Sender:    models.Sender(m.Sender),
			Text:      m.Text,
			Timestamp: models.NewTimestamp(time.UnixMilli(m.SentAtMs).UTC()),
		})
	}

	return s, nil
}

// SaveSession upserts the session row and appends history messages not yet stored.
func (r *SessionRepository) SaveSession(ctx context.Context, s *models.Session) error {
	row, err := fromModel(s)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO sessions (id, persona_name, scam_confirmed, scam_confidence, scam_types,
			message_count, intelligence, phase, callback_sent, created_at, last_active)
		VALUES (:id, :persona_name, :scam_confirmed, :scam_confidence, :scam_types,
			:message_count, :intelligence, :phase, :callback_sent, :created_at, :last_active)
		ON CONFLICT (id) DO UPDATE SET
			persona_name = excluded.persona_name,
			scam_confirmed = excluded.scam_confirmed,
			scam_confidence = excluded.scam_confidence,
			scam_types = excluded.scam_types,
			message_count = excluded.message_count,
			intelligence = excluded.intelligence,
			phase = excluded.phase,
			callback_sent = excluded.callback_sent,
			last_active = excluded.last_active`, row)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	var stored int
	err = tx.GetContext(ctx, &stored, tx.Rebind(`SELECT COUNT(*) FROM messages WHERE session_id = ?`), s.ID)
	if err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}

	insert := tx.Rebind(`INSERT INTO messages (session_id, seq, sender, text, sent_at_ms) VALUES (?, ?, ?, ?, ?)`)
	for seq := stored; seq < len(s.History); seq++ {
		m := s.History[seq]
		if _, err := tx.ExecContext(ctx, insert, s.ID, seq, string(m.Sender), m.Text, m.Timestamp.Time().UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// CountSessions returns the number of stored sessions.
func (r *SessionRepository) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions`); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// PendingCallbacks returns sessions whose callback_sent flag is set but that
// have no delivered callback on record, oldest activity first.
func (r *SessionRepository) PendingCallbacks(ctx context.Context) ([]*models.Session, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`
		SELECT s.id FROM sessions s
		WHERE s.callback_sent = ?
			AND NOT EXISTS (
				SELECT 1 FROM callbacks c WHERE c.session_id = s.id AND c.status = ?
			)
		ORDER BY s.last_active`), true, models.DeliveryDelivered)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending callbacks: %w", err)
	}

	sessions := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.LoadSession(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func fromModel(s *models.Session) (sessionRow, error) {
	types, err := json.Marshal(s.ScamTypes)
	if err != nil {
		return sessionRow{}, fmt.Errorf("failed to marshal scam types: %w", err)
	}
	intel, err := json.Marshal(s.Intelligence)
	if err != nil {
		return sessionRow{}, fmt.Errorf("failed to marshal intelligence: %w", err)
	}
	return sessionRow{
		ID:             s.ID,
		PersonaName:    s.PersonaName,
		ScamConfirmed:  s.ScamConfirmed,
		ScamConfidence: s.ScamConfidence,
		ScamTypes:      string(types),
		MessageCount:   s.MessageCount,
		Intelligence:   string(intel),
		Phase:          s.Phase.String(),
		CallbackSent:   s.CallbackSent,
		CreatedAt:      s.CreatedAt.UnixMilli(),
		LastActive:     s.LastActive.UnixMilli(),
	}, nil
}

func (row sessionRow) toModel() (*models.Session, error) {
	phase, err := models.ParsePhase(row.Phase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phase: %w", err)
	}

	s := models.NewSession(row.ID, row.PersonaName, time.UnixMilli(row.CreatedAt).UTC())
	s.LastActive = time.UnixMilli(row.LastActive).UTC()
	s.ScamConfirmed = row.ScamConfirmed
	s.ScamConfidence = row.ScamConfidence
	s.MessageCount = row.MessageCount
	s.Phase = phase
	s.CallbackSent = row.CallbackSent

	if err := json.Unmarshal([]byte(row.ScamTypes), &s.ScamTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scam types: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Intelligence), &s.Intelligence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intelligence: %w", err)
	}
	return s, nil
}
