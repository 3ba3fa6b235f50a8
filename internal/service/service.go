// Package service drives subscription lifecycle workflows: payment
// confirmations coming in from Stripe and expirations found by the sweep.
// State is written first, platform effects are applied after, so access is
// never granted or revoked without a durable record backing it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cryptoguard_backend/internal/gate"
	"cryptoguard_backend/internal/model"
	"cryptoguard_backend/internal/store"
	"cryptoguard_backend/pkg/subscription"
)

// AccessGate is the outbound membership surface. Implementations never
// fail hard; soft failures come back as Results for the caller to log.
type AccessGate interface {
	Grant(ctx context.Context, telegramID int64) gate.Result
	Revoke(ctx context.Context, telegramID int64) gate.Result
	Notify(ctx context.Context, telegramID int64, notice subscription.NoticeKind) gate.Result
}

type Service struct {
	store *store.Store
	gate  AccessGate
}

func New(st *store.Store, g AccessGate) *Service {
	return &Service{store: st, gate: g}
}

// PaymentConfirmation is one verified checkout event, used once to drive a
// single activation and then discarded.
type PaymentConfirmation struct {
	EventID    string
	EventType  string
	TelegramID int64
	PlanID     string
	Payload    []byte
}

// ConfirmPayment activates the paid plan for the subscriber named in the
// event. Redelivered events are recognized by their Stripe event id and
// acknowledged without acting again.
func (s *Service) ConfirmPayment(ctx context.Context, confirmation PaymentConfirmation) error {
	sub, err := s.store.FindSubscriber(ctx, confirmation.TelegramID)
	if err != nil {
		return err
	}

	plan, known := subscription.PlanByID(confirmation.PlanID)
	if !known {
		return fmt.Errorf("%w: %q", subscription.ErrUnknownPlan, confirmation.PlanID)
	}

	now := time.Now().UTC()
	event := store.PaymentEventRecord{
		EventID:   confirmation.EventID,
		EventType: confirmation.EventType,
		Payload:   confirmation.Payload,
	}

	// The event claim and the activation commit together. If the
	// activation fails the claim rolls back with it and Stripe's retry
	// gets a clean slate.
	var decision subscription.Activation
	row, err := s.store.ActivateForEvent(ctx, sub.ID, plan.ID, event, func(current subscription.Current) (subscription.Activation, error) {
		d, err := subscription.Activate(current, plan, now)
		if err == nil {
			decision = d
		}
		return d, err
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEvent) {
			log.Printf("Payment event %s already processed, ignoring redelivery", confirmation.EventID)
			return nil
		}
		return err
	}

	log.Printf("Activated plan %s for telegram id %d (subscription %s)", plan.ID, sub.TelegramID, row.PublicID)
	s.applyEffects(ctx, sub.TelegramID, decision.Effects)
	return nil
}

// ExpireSubscription drives one candidate through the engine's expire
// transition and revokes access. The candidate row may be stale: a renewal
// can retire it between the sweep's scan and this call, in which case the
// store reports no transition and access is left alone.
func (s *Service) ExpireSubscription(ctx context.Context, sub model.Subscription, now time.Time) error {
	current := subscription.Current{
		Status:    subscription.Status(sub.Status),
		ExpiresAt: sub.ExpiresAt,
	}
	decision, err := subscription.Expire(current, now)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", sub.PublicID, err)
	}

	transitioned, err := s.store.MarkExpired(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !transitioned {
		log.Printf("Subscription %s already retired, leaving access untouched", sub.PublicID)
		return nil
	}

	log.Printf("Expired subscription %s for telegram id %d", sub.PublicID, sub.Subscriber.TelegramID)
	s.applyEffects(ctx, sub.Subscriber.TelegramID, decision.Effects)
	return nil
}

// SweepExpired scans for lapsed subscriptions and expires each one
// independently, so a single bad candidate never blocks the rest of the
// batch. Returns the number of subscriptions expired.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) int {
	candidates, err := s.store.ListExpiredCandidates(ctx, now)
	if err != nil {
		log.Printf("Error scanning for expired subscriptions: %v", err)
		return 0
	}

	expired := 0
	for _, sub := range candidates {
		if err := s.ExpireSubscription(ctx, sub, now); err != nil {
			log.Printf("Error expiring subscription %s: %v", sub.PublicID, err)
			continue
		}
		expired++
	}
	return expired
}

func (s *Service) applyEffects(ctx context.Context, telegramID int64, effects []subscription.Effect) {
	for _, effect := range effects {
		var result gate.Result
		switch effect.Kind {
		case subscription.EffectGrantAccess:
			result = s.gate.Grant(ctx, telegramID)
		case subscription.EffectRevokeAccess:
			result = s.gate.Revoke(ctx, telegramID)
		case subscription.EffectNotify:
			result = s.gate.Notify(ctx, telegramID, effect.Notice)
		default:
			log.Printf("Unknown lifecycle effect %q for telegram id %d", effect.Kind, telegramID)
			continue
		}
		if result.Failed() {
			log.Printf("Access gate %s failed for telegram id %d: %v", effect.Kind, telegramID, result.Err)
		}
	}
}
