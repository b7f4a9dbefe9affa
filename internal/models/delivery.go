package models

import "time"

// Delivery statuses recorded for every dispatched callback.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliverySkipped   = "skipped"
)

// DeliveryRecord is the audit row written after a callback attempt.
type DeliveryRecord struct {
	ID        string          `json:"id" db:"id"`
	SessionID string          `json:"session_id" db:"session_id"`
	Status    string          `json:"status" db:"status"`
	Attempts  int             `json:"attempts" db:"attempts"`
	Error     string          `json:"error,omitempty" db:"error"`
	Payload   CallbackPayload `json:"payload" db:"-"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
