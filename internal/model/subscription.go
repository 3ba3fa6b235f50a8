package model

import "time"

const (
	SubStatusActive  = "active"
	SubStatusExpired = "expired"
)

// Subscription is one paid access window for a subscriber. Expired rows are
// kept for history; a renewal creates a new row. ExpiresAt is nil for
// lifetime plans.
type Subscription struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	PublicID     string     `json:"public_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	SubscriberID uint       `json:"subscriber_id" gorm:"index;not null"`
	PlanID       string     `json:"plan_id" gorm:"type:varchar(32);not null"`
	Status       string     `json:"status" gorm:"type:varchar(16);not null;default:'active';index"`
	StartsAt     time.Time  `json:"starts_at" gorm:"not null"`
	ExpiresAt    *time.Time `json:"expires_at" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Subscriber Subscriber `json:"-" gorm:"foreignKey:SubscriberID"`
}

func (s *Subscription) Lifetime() bool {
	return s.ExpiresAt == nil
}
