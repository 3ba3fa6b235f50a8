// Package payments wraps the Stripe checkout integration. The pending
// intent between plan selection and payment confirmation lives only in the
// checkout session metadata; the first durable record is the subscription
// row written when the webhook confirms the payment.
package payments

import (
	"context"
	"strconv"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"cryptoguard_backend/internal/model"
	"cryptoguard_backend/pkg/subscription"
)

type CheckoutClient struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewCheckoutClient(apiKey, successURL, cancelURL string) *CheckoutClient {
	api := &client.API{}
	api.Init(apiKey, nil)

	return &CheckoutClient{
		api:        api,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateSession opens a one-off checkout for the subscriber and plan. The
// metadata carries the Telegram id and plan id back through the webhook.
func (c *CheckoutClient) CreateSession(ctx context.Context, sub *model.Subscriber, plan subscription.Plan) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(plan.Currency),
					UnitAmount: stripe.Int64(int64(plan.Price * 100)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(plan.Name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
	}
	params.Context = ctx
	params.AddMetadata("telegram_id", strconv.FormatInt(sub.TelegramID, 10))
	params.AddMetadata("plan_id", plan.ID)

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return session.URL, nil
}
