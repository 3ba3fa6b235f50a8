package model

import "time"

// Subscriber is a Telegram user known to the bot. Rows are created on first
// contact and never deleted; the Telegram id is the stable external identity
// and the surrogate ID never changes once assigned.
type Subscriber struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TelegramID int64     `json:"telegram_id" gorm:"uniqueIndex;not null"`
	FirstName  string    `json:"first_name"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`

	Subscriptions []Subscription `json:"-"`
}
