package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPlan(t *testing.T, id string) Plan {
	t.Helper()
	plan, ok := PlanByID(id)
	require.True(t, ok, "plan %s missing from catalog", id)
	return plan
}

func TestActivateFromNone(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	activation, err := Activate(Current{Status: StatusNone}, mustPlan(t, "monthly"), now)
	require.NoError(t, err)

	assert.Equal(t, now, activation.StartsAt)
	require.NotNil(t, activation.ExpiresAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *activation.ExpiresAt)
	assert.False(t, activation.SupersedesPrior)

	require.Len(t, activation.Effects, 2)
	assert.Equal(t, EffectGrantAccess, activation.Effects[0].Kind)
	assert.Equal(t, EffectNotify, activation.Effects[1].Kind)
	assert.Equal(t, NoticeActivated, activation.Effects[1].Notice)
}

func TestActivateLifetimeHasNoEndDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	activation, err := Activate(Current{Status: StatusNone}, mustPlan(t, "lifetime"), now)
	require.NoError(t, err)
	assert.Nil(t, activation.ExpiresAt)
}

func TestActivateRenewalAfterExpiry(t *testing.T) {
	now := time.Now().UTC()

	activation, err := Activate(Current{Status: StatusExpired}, mustPlan(t, "monthly"), now)
	require.NoError(t, err)
	assert.False(t, activation.SupersedesPrior)
}

func TestActivateWhileActiveSupersedes(t *testing.T) {
	now := time.Now().UTC()
	end := now.Add(10 * 24 * time.Hour)

	activation, err := Activate(Current{Status: StatusActive, ExpiresAt: &end}, mustPlan(t, "monthly"), now)
	require.NoError(t, err)
	assert.True(t, activation.SupersedesPrior)
}

func TestExpireBeforeEndIsIllegal(t *testing.T) {
	now := time.Now().UTC()
	end := now.Add(24 * time.Hour)

	_, err := Expire(Current{Status: StatusActive, ExpiresAt: &end}, now)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestExpireAtExactEndSucceeds(t *testing.T) {
	now := time.Now().UTC()
	end := now

	expiration, err := Expire(Current{Status: StatusActive, ExpiresAt: &end}, now)
	require.NoError(t, err)

	require.Len(t, expiration.Effects, 2)
	assert.Equal(t, EffectRevokeAccess, expiration.Effects[0].Kind)
	assert.Equal(t, NoticeExpired, expiration.Effects[1].Notice)
}

func TestExpireLifetimeIsIllegal(t *testing.T) {
	_, err := Expire(Current{Status: StatusActive, ExpiresAt: nil}, time.Now().UTC())
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestExpireNonActiveIsIllegal(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	for _, status := range []Status{StatusNone, StatusExpired} {
		_, err := Expire(Current{Status: status, ExpiresAt: &past}, now)
		assert.ErrorIs(t, err, ErrIllegalTransition, "status %s", status)
	}
}

func TestCanTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(StatusNone, StatusActive))
	assert.True(t, CanTransition(StatusExpired, StatusActive))
	assert.True(t, CanTransition(StatusActive, StatusActive))
	assert.True(t, CanTransition(StatusActive, StatusExpired))

	assert.False(t, CanTransition(StatusNone, StatusExpired))
	assert.False(t, CanTransition(StatusExpired, StatusExpired))
}
