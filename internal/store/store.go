// Package store is the system of record for subscribers and subscriptions.
// All lifecycle state lives here; external effects (group membership,
// notifications) are applied by callers only after a write succeeds.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cryptoguard_backend/internal/model"
	"cryptoguard_backend/pkg/subscription"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownSubscriber = errors.New("unknown subscriber")
	ErrConflict          = errors.New("subscription conflict")
	ErrDuplicateEvent    = errors.New("payment event already processed")

	// ErrIntegrity means the at-most-one-active invariant is broken.
	// It is never resolved silently; the affected operation halts.
	ErrIntegrity = errors.New("subscription store integrity violation")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UpsertSubscriber registers a Telegram user on first contact. Repeat calls
// with the same Telegram id return the existing row and refresh the name.
func (s *Store) UpsertSubscriber(ctx context.Context, telegramID int64, firstName, username string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.db.WithContext(ctx).
		Where(model.Subscriber{TelegramID: telegramID}).
		Assign(model.Subscriber{FirstName: firstName, Username: username}).
		FirstOrCreate(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) FindSubscriber(ctx context.Context, telegramID int64) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: telegram id %d", ErrUnknownSubscriber, telegramID)
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetActiveSubscription returns the subscriber's single active subscription,
// or ErrNotFound. Finding more than one active row is an integrity violation
// and surfaces as ErrIntegrity.
func (s *Store) GetActiveSubscription(ctx context.Context, subscriberID uint) (*model.Subscription, error) {
	var rows []model.Subscription
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ? AND status = ?", subscriberID, model.SubStatusActive).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &rows[0], nil
	default:
		return nil, fmt.Errorf("%w: subscriber %d has %d active subscriptions", ErrIntegrity, subscriberID, len(rows))
	}
}

// Activate runs the check-and-write of a plan activation atomically. The
// subscriber's active row is read under a row lock, the decide callback
// (the lifecycle engine) rules on the transition, and the resulting row is
// written inside the same transaction so a concurrent activate or expire
// for the same subscriber cannot interleave.
func (s *Store) Activate(ctx context.Context, subscriberID uint, planID string, decide func(subscription.Current) (subscription.Activation, error)) (*model.Subscription, error) {
	var created *model.Subscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.activateTx(tx, subscriberID, planID, decide)
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ActivateForEvent claims a payment event id and activates the plan in one
// transaction. A failed activation rolls the claim back with it, so a
// redelivery of the same event can retry; only a committed subscription
// marks the event as processed.
func (s *Store) ActivateForEvent(ctx context.Context, subscriberID uint, planID string, event PaymentEventRecord, decide func(subscription.Current) (subscription.Activation, error)) (*model.Subscription, error) {
	var created *model.Subscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.recordPaymentEvent(tx, event); err != nil {
			return err
		}
		row, err := s.activateTx(tx, subscriberID, planID, decide)
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) activateTx(tx *gorm.DB, subscriberID uint, planID string, decide func(subscription.Current) (subscription.Activation, error)) (*model.Subscription, error) {
	query := tx.Where("subscriber_id = ? AND status = ?", subscriberID, model.SubStatusActive)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []model.Subscription
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) > 1 {
		return nil, fmt.Errorf("%w: subscriber %d has %d active subscriptions", ErrIntegrity, subscriberID, len(rows))
	}

	current := subscription.Current{Status: subscription.StatusNone}
	if len(rows) == 1 {
		current = subscription.Current{
			Status:    subscription.StatusActive,
			ExpiresAt: rows[0].ExpiresAt,
		}
	}

	decision, err := decide(current)
	if err != nil {
		return nil, err
	}

	if len(rows) == 1 {
		if !decision.SupersedesPrior {
			return nil, fmt.Errorf("%w: subscriber %d already has an active subscription", ErrConflict, subscriberID)
		}
		if err := tx.Model(&rows[0]).Update("status", model.SubStatusExpired).Error; err != nil {
			return nil, err
		}
	}

	row := &model.Subscription{
		PublicID:     uuid.NewString(),
		SubscriberID: subscriberID,
		PlanID:       planID,
		Status:       model.SubStatusActive,
		StartsAt:     decision.StartsAt,
		ExpiresAt:    decision.ExpiresAt,
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// ListExpiredCandidates returns active subscriptions whose end date has been
// reached, end boundary inclusive. Lifetime rows (NULL expiry) never match.
// The scan runs in its own transaction so the sweeper sees one consistent
// snapshot of the candidate set.
func (s *Store) ListExpiredCandidates(ctx context.Context, now time.Time) ([]model.Subscription, error) {
	var rows []model.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", model.SubStatusActive, now.UTC()).
			Preload("Subscriber").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkExpired transitions a subscription to expired. It reports whether this
// call performed the transition: false with a nil error means the row was
// already expired, for example retired by a concurrent replace activation,
// so a retried expire instruction settles as a no-op.
func (s *Store) MarkExpired(ctx context.Context, subscriptionID uint) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubStatusActive).
		Update("status", model.SubStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Subscription{}).Where("id = ?", subscriptionID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, fmt.Errorf("%w: subscription %d", ErrNotFound, subscriptionID)
	}
	return false, nil
}

// PaymentEventRecord is the dedupe row for one Stripe event delivery.
type PaymentEventRecord struct {
	EventID   string
	EventType string
	Payload   []byte
}

// RecordPaymentEvent claims a Stripe event id. A second delivery of the same
// event hits the unique index and returns ErrDuplicateEvent.
func (s *Store) RecordPaymentEvent(ctx context.Context, eventID, eventType string, payload []byte) error {
	return s.recordPaymentEvent(s.db.WithContext(ctx), PaymentEventRecord{
		EventID:   eventID,
		EventType: eventType,
		Payload:   payload,
	})
}

func (s *Store) recordPaymentEvent(tx *gorm.DB, record PaymentEventRecord) error {
	event := model.PaymentEvent{
		EventID:     record.EventID,
		EventType:   record.EventType,
		PayloadJSON: datatypes.JSON(record.Payload),
	}
	err := tx.Create(&event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, record.EventID)
	}
	return err
}
