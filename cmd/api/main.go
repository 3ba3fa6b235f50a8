package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"cryptoguard_backend/internal/bot"
	"cryptoguard_backend/internal/controller"
	"cryptoguard_backend/internal/gate"
	"cryptoguard_backend/internal/model"
	"cryptoguard_backend/internal/payments"
	"cryptoguard_backend/internal/service"
	"cryptoguard_backend/internal/store"
	"cryptoguard_backend/internal/telegram"
	"cryptoguard_backend/pkg/config"
	"cryptoguard_backend/pkg/cron"
	"cryptoguard_backend/pkg/database"
)

func setupRoutes(app *fiber.App, webhookController *controller.WebhookController) {
	api := app.Group("/api")

	// Stripe webhook
	api.Post("/webhook", webhookController.HandleStripeWebhook)
}

func main() {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}
	if cfg.Telegram.BotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not set in .env")
	}

	db := database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(db,
		&model.Subscriber{},
		&model.Subscription{},
		&model.PaymentEvent{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	tg := telegram.NewClient(cfg.Telegram.BotToken)
	st := store.New(db)
	accessGate := gate.New(tg, cfg.Telegram.VIPGroupID)
	svc := service.New(st, accessGate)
	checkout := payments.NewCheckoutClient(cfg.Stripe.SecretKey, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	webhookController := controller.NewWebhookController(svc, cfg.Stripe.WebhookSecret)

	expiryCron, err := cron.InitSubscriptionExpiryCron(svc, cfg.Sweep.Interval)
	if err != nil {
		log.Fatal("Could not start subscription expiry sweep:", err)
	}
	defer expiryCron.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vipBot := bot.New(tg, st, checkout, cfg.Telegram.SupportContact)
	go func() {
		if err := vipBot.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Bot polling stopped: %v", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())

	setupRoutes(app, webhookController)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		app.Shutdown()
	}()

	log.Printf("Server is running on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal(err)
	}
}
