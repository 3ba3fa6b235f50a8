// Package bot is the chat front end: it renders plans, reports status and
// hands users off to Stripe checkout. It holds no lifecycle state of its
// own; everything it shows comes from the store and the plan catalog.
package bot

import (
	"context"
	"log"
	"time"

	"cryptoguard_backend/internal/payments"
	"cryptoguard_backend/internal/store"
	"cryptoguard_backend/internal/telegram"
)

const pollTimeoutSeconds = 25

type Bot struct {
	tg             *telegram.Client
	store          *store.Store
	checkout       *payments.CheckoutClient
	supportContact string
}

func New(tg *telegram.Client, st *store.Store, checkout *payments.CheckoutClient, supportContact string) *Bot {
	return &Bot{
		tg:             tg,
		store:          st,
		checkout:       checkout,
		supportContact: supportContact,
	}
}

// Run long-polls getUpdates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	log.Println("Telegram bot polling started")

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.tg.GetUpdates(ctx, offset, pollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Error fetching updates: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}
