package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// CallbackRepository is the delivery audit log.
type CallbackRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewCallbackRepository creates a new callback repository.
func NewCallbackRepository(db *sqlx.DB, logger *zap.Logger) *CallbackRepository {
	return &CallbackRepository{db: db, logger: logger}
}

type callbackRow struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
	Status    string `db:"status"`
	Attempts  int    `db:"attempts"`
	Error     string `db:"error"`
	Payload   string `db:"payload"`
	CreatedAt int64  `db:"created_at"`
}

// RecordDelivery stores one delivery outcome.
func (r *CallbackRepository) RecordDelivery(ctx context.Context, rec models.DeliveryRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO callbacks (id, session_id, status, attempts, error, payload, created_at)
		VALUES (:id, :session_id, :status, :attempts, :error, :payload, :created_at)`,
		callbackRow{
			ID:        rec.ID,
			SessionID: rec.SessionID,
			Status:    rec.Status,
			Attempts:  rec.Attempts,
			Error:     rec.Error,
			Payload:   string(payload),
			CreatedAt: rec.CreatedAt.UnixMilli(),
		})
	if err != nil {
		return fmt.Errorf("failed to insert callback: %w", err)
	}

	r.logger.Debug("Delivery recorded", zap.String("id", rec.ID), zap.String("status", rec.Status))
	return nil
}

// ListDeliveries returns the most recent deliveries, newest first.
func (r *CallbackRepository) ListDeliveries(ctx context.Context, limit int) ([]models.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []callbackRow
	err := r.db.SelectContext(ctx, &rows,
		r.db.Rebind(`SELECT id, session_id, status, attempts, error, payload, created_at
			FROM callbacks ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list callbacks: %w", err)
	}

	out := make([]models.DeliveryRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.DeliveryRecord{
			ID:        row.ID,
			SessionID: row.SessionID,
			Status:    row.Status,
			Attempts:  row.Attempts,
			Error:     row.Error,
			CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		}
		if err := json.Unmarshal([]byte(row.Payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
