// Package subscription holds the plan catalog and the lifecycle engine.
// The engine is pure decision logic: it never touches the database or the
// Telegram API. Callers fetch the current state, ask for a decision, and
// execute the resulting effects themselves.
package subscription

import (
	"errors"
	"time"
)

type Status string

const (
	StatusNone    Status = "none" // no subscription row exists
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

var ErrIllegalTransition = errors.New("illegal subscription transition")

// Transition represents a state change request.
type Transition struct {
	From Status
	To   Status
}

// validTransitions defines all allowed state changes. Active to active is
// the replace policy: a renewal while active supersedes the prior row.
var validTransitions = map[Transition]bool{
	{StatusNone, StatusActive}:    true,
	{StatusExpired, StatusActive}: true,
	{StatusActive, StatusActive}:  true,
	{StatusActive, StatusExpired}: true,
}

func CanTransition(from, to Status) bool {
	return validTransitions[Transition{from, to}]
}

type EffectKind string

const (
	EffectGrantAccess  EffectKind = "grant_access"
	EffectRevokeAccess EffectKind = "revoke_access"
	EffectNotify       EffectKind = "notify"
)

type NoticeKind string

const (
	NoticeActivated NoticeKind = "activated"
	NoticeExpired   NoticeKind = "expired"
)

// Effect is a side-effect instruction emitted by the engine. Effects are
// applied by the caller after the state change is durably recorded.
type Effect struct {
	Kind   EffectKind
	Notice NoticeKind
}

// Current is a snapshot of a subscriber's active subscription, or
// StatusNone when no active row exists.
type Current struct {
	Status    Status
	ExpiresAt *time.Time // nil for lifetime plans
}

// Activation is the engine's decision for a successful activate request.
type Activation struct {
	StartsAt        time.Time
	ExpiresAt       *time.Time // nil for lifetime plans
	SupersedesPrior bool       // the existing active row must be retired first
	Effects         []Effect
}

// Activate decides whether a subscriber may start the given plan now.
// Duration is calendar-day arithmetic in UTC: 30 days is exactly 30*24h
// from the activation instant.
func Activate(current Current, plan Plan, now time.Time) (Activation, error) {
	if !CanTransition(current.Status, StatusActive) {
		return Activation{}, ErrIllegalTransition
	}

	now = now.UTC()
	activation := Activation{
		StartsAt:        now,
		SupersedesPrior: current.Status == StatusActive,
		Effects: []Effect{
			{Kind: EffectGrantAccess},
			{Kind: EffectNotify, Notice: NoticeActivated},
		},
	}

	if !plan.Lifetime() {
		expiresAt := now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
		activation.ExpiresAt = &expiresAt
	}

	return activation, nil
}

// Expiration is the engine's decision for a successful expire request.
type Expiration struct {
	Effects []Effect
}

// Expire decides whether the current subscription may be expired now.
// Only an active subscription with a reached end date qualifies; the end
// boundary is inclusive, so a subscription ending exactly at now expires.
// Lifetime subscriptions never expire.
func Expire(current Current, now time.Time) (Expiration, error) {
	if !CanTransition(current.Status, StatusExpired) {
		return Expiration{}, ErrIllegalTransition
	}
	if current.ExpiresAt == nil || current.ExpiresAt.After(now.UTC()) {
		return Expiration{}, ErrIllegalTransition
	}

	return Expiration{
		Effects: []Effect{
			{Kind: EffectRevokeAccess},
			{Kind: EffectNotify, Notice: NoticeExpired},
		},
	}, nil
}
