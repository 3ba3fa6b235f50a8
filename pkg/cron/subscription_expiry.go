package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"cryptoguard_backend/internal/service"
)

// InitSubscriptionExpiryCron starts the periodic expiration sweep. Ticks
// are chained with SkipIfStillRunning so a slow sweep is never overlapped
// by the next one; a skipped tick is safe because markExpired is
// idempotent and the following sweep picks the candidates up again.
func InitSubscriptionExpiryCron(svc *service.Service, interval time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		sweepExpiredSubscriptions(svc)
	})
	if err != nil {
		return nil, fmt.Errorf("could not schedule subscription expiry sweep: %v", err)
	}

	c.Start()
	log.Printf("Subscription expiry sweep scheduled every %s", interval)
	return c, nil
}

func sweepExpiredSubscriptions(svc *service.Service) {
	log.Println("Checking for expired subscriptions...")

	expired := svc.SweepExpired(context.Background(), time.Now().UTC())
	if expired > 0 {
		log.Printf("Expired %d subscriptions", expired)
	}
}
