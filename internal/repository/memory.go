package repository

import (
	"context"
	"sync"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// MemoryCallbackLog keeps the most recent deliveries when no database is configured.
type MemoryCallbackLog struct {
	mu   sync.Mutex
	recs []models.DeliveryRecord
	max  int
}

// NewMemoryCallbackLog keeps at most capacity records.
func NewMemoryCallbackLog(capacity int) *MemoryCallbackLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryCallbackLog{max: capacity}
}

func (l *MemoryCallbackLog) RecordDelivery(_ context.Context, rec models.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	if len(l.recs) > l.max {
		l.recs = append([]models.DeliveryRecord(nil), l.recs[len(l.recs)-l.max:]...)
	}
	return nil
}

func (l *MemoryCallbackLog) ListDeliveries(_ context.Context, limit int) ([]models.DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.recs) {
		limit = len(l.recs)
	}
	out := make([]models.DeliveryRecord, 0, limit)
	for i := len(l.recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.recs[i])
	}
	return out, nil
}
