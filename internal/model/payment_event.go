package model

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentEvent records a processed Stripe event id for deduplication.
// Checkout confirmations are delivered at least once; the unique index on
// EventID is what keeps a redelivered event from activating twice.
type PaymentEvent struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	EventID     string         `json:"event_id" gorm:"type:varchar(191);uniqueIndex;not null"`
	EventType   string         `json:"event_type" gorm:"type:varchar(100);not null"`
	PayloadJSON datatypes.JSON `json:"payload_json"`
	ProcessedAt time.Time      `json:"processed_at" gorm:"autoCreateTime"`
}
