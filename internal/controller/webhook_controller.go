package controller

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v74/webhook"

	"cryptoguard_backend/internal/service"
	"cryptoguard_backend/internal/store"
	"cryptoguard_backend/pkg/subscription"
)

type WebhookController struct {
	svc           *service.Service
	webhookSecret string
}

func NewWebhookController(svc *service.Service, webhookSecret string) *WebhookController {
	return &WebhookController{svc: svc, webhookSecret: webhookSecret}
}

// HandleStripeWebhook is the payment confirmation boundary. A bad signature
// is rejected with 400 so Stripe stops retrying it; unknown subscribers and
// plans are logged and acknowledged with 200 because a retry cannot fix
// them; transient store errors return 500 so Stripe retries the delivery.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signatureHeader := c.Get("Stripe-Signature")

	event, err := webhook.ConstructEvent(payload, signatureHeader, wc.webhookSecret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	if event.Type != "checkout.session.completed" {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	log.Printf("Processing Stripe webhook event %s (%s)", event.ID, event.Type)

	var session struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Printf("Malformed checkout session payload in event %s: %v", event.ID, err)
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	telegramID, err := strconv.ParseInt(session.Metadata["telegram_id"], 10, 64)
	if err != nil {
		log.Printf("Event %s has no usable telegram_id metadata: %v", event.ID, err)
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	err = wc.svc.ConfirmPayment(c.Context(), service.PaymentConfirmation{
		EventID:    event.ID,
		EventType:  string(event.Type),
		TelegramID: telegramID,
		PlanID:     session.Metadata["plan_id"],
		Payload:    event.Data.Raw,
	})
	if err != nil {
		// A retry from Stripe cannot register the subscriber or fix the
		// plan id, so these are acknowledged and dropped.
		if errors.Is(err, store.ErrUnknownSubscriber) || errors.Is(err, subscription.ErrUnknownPlan) {
			log.Printf("Dropping payment event %s: %v", event.ID, err)
			return c.JSON(fiber.Map{"status": "dropped"})
		}
		log.Printf("Error processing payment event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not process payment event",
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
