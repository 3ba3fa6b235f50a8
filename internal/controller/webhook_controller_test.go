package controller

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cryptoguard_backend/internal/gate"
	"cryptoguard_backend/internal/model"
	"cryptoguard_backend/internal/service"
	"cryptoguard_backend/internal/store"
	"cryptoguard_backend/pkg/subscription"
)

const testWebhookSecret = "whsec_test_secret"

type countingGate struct {
	grants  int
	notices int
}

func (g *countingGate) Grant(ctx context.Context, telegramID int64) gate.Result {
	g.grants++
	return gate.Result{Kind: gate.ResultOK}
}

func (g *countingGate) Revoke(ctx context.Context, telegramID int64) gate.Result {
	return gate.Result{Kind: gate.ResultOK}
}

func (g *countingGate) Notify(ctx context.Context, telegramID int64, notice subscription.NoticeKind) gate.Result {
	g.notices++
	return gate.Result{Kind: gate.ResultOK}
}

func newWebhookApp(t *testing.T) (*fiber.App, *store.Store, *countingGate, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Subscriber{}, &model.Subscription{}, &model.PaymentEvent{}))

	st := store.New(db)
	g := &countingGate{}
	wc := NewWebhookController(service.New(st, g), testWebhookSecret)

	app := fiber.New()
	app.Post("/api/webhook", wc.HandleStripeWebhook)
	return app, st, g, db
}

func checkoutCompletedPayload(eventID string, telegramID int64, planID string) []byte {
	// ConstructEvent rejects payloads pinned to a different API version,
	// so fixtures carry the version the library is built against.
	return []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","api_version":%q,"type":"checkout.session.completed","data":{"object":{"metadata":{"telegram_id":"%d","plan_id":%q}}}}`,
		eventID, stripe.APIVersion, telegramID, planID,
	))
}

func signedRequest(payload []byte, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, secret)
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(signature)))
	return req
}

func subscriptionCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.Subscription{}).Count(&count).Error)
	return count
}

func TestWebhookActivatesSubscription(t *testing.T) {
	app, st, g, _ := newWebhookApp(t)
	ctx := context.Background()

	sub, err := st.UpsertSubscriber(ctx, 42, "Ana", "ana")
	require.NoError(t, err)

	resp, err := app.Test(signedRequest(checkoutCompletedPayload("evt_1", 42, "monthly"), testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	active, err := st.GetActiveSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "monthly", active.PlanID)
	assert.Equal(t, 1, g.grants)
	assert.Equal(t, 1, g.notices)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	app, _, g, db := newWebhookApp(t)

	payload := checkoutCompletedPayload("evt_1", 42, "monthly")
	resp, err := app.Test(signedRequest(payload, "whsec_wrong_secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.EqualValues(t, 0, subscriptionCount(t, db))
	assert.Equal(t, 0, g.grants)
	assert.Equal(t, 0, g.notices)
}

func TestWebhookReplayCreatesOneSubscription(t *testing.T) {
	app, st, g, db := newWebhookApp(t)

	_, err := st.UpsertSubscriber(context.Background(), 42, "Ana", "ana")
	require.NoError(t, err)

	payload := checkoutCompletedPayload("evt_1", 42, "monthly")
	for i := 0; i < 2; i++ {
		resp, err := app.Test(signedRequest(payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.EqualValues(t, 1, subscriptionCount(t, db))
	assert.Equal(t, 1, g.grants)
	assert.Equal(t, 1, g.notices)
}

func TestWebhookUnknownSubscriberIsAcknowledged(t *testing.T) {
	app, _, g, db := newWebhookApp(t)

	resp, err := app.Test(signedRequest(checkoutCompletedPayload("evt_1", 7777, "monthly"), testWebhookSecret))
	require.NoError(t, err)

	// Acknowledged so the processor does not retry an event it cannot fix.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, subscriptionCount(t, db))
	assert.Equal(t, 0, g.grants)
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	app, _, g, db := newWebhookApp(t)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_2","object":"event","api_version":%q,"type":"invoice.paid","data":{"object":{}}}`,
		stripe.APIVersion,
	))
	resp, err := app.Test(signedRequest(payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, subscriptionCount(t, db))
	assert.Equal(t, 0, g.grants)
}
