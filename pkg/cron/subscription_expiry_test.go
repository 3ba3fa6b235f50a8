package cron

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cryptoguard_backend/internal/gate"
	"cryptoguard_backend/internal/model"
	"cryptoguard_backend/internal/service"
	"cryptoguard_backend/internal/store"
	"cryptoguard_backend/pkg/subscription"
)

type nopGate struct{}

func (nopGate) Grant(ctx context.Context, telegramID int64) gate.Result {
	return gate.Result{Kind: gate.ResultOK}
}

func (nopGate) Revoke(ctx context.Context, telegramID int64) gate.Result {
	return gate.Result{Kind: gate.ResultOK}
}

func (nopGate) Notify(ctx context.Context, telegramID int64, notice subscription.NoticeKind) gate.Result {
	return gate.Result{Kind: gate.ResultOK}
}

func TestInitSubscriptionExpiryCron(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Subscriber{}, &model.Subscription{}, &model.PaymentEvent{}))

	svc := service.New(store.New(db), nopGate{})

	c, err := InitSubscriptionExpiryCron(svc, time.Minute)
	require.NoError(t, err)
	defer c.Stop()

	assert.Len(t, c.Entries(), 1)
}
