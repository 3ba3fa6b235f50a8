package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cryptoguard_backend/internal/store"
	"cryptoguard_backend/internal/telegram"
	"cryptoguard_backend/pkg/subscription"
)

const (
	menuPlans        = "📦 View plans"
	menuStatus       = "📊 My subscription"
	menuRenew        = "🔄 Renew"
	menuSupport      = "🆘 Support"
	callbackChoose   = "choose:"
	callbackPay      = "pay:"
	handlerTimeout   = 15 * time.Second
	statusTimeLayout = "02 Jan 2006 15:04 MST"
)

func mainMenu() telegram.ReplyKeyboardMarkup {
	return telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: menuPlans}, {Text: menuStatus}},
			{{Text: menuRenew}, {Text: menuSupport}},
		},
		ResizeKeyboard: true,
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		b.handleStart(ctx, msg)
	case strings.HasPrefix(msg.Text, "/plans"), msg.Text == menuPlans, msg.Text == menuRenew:
		b.handlePlans(ctx, msg.Chat.ID)
	case strings.HasPrefix(msg.Text, "/status"), msg.Text == menuStatus:
		b.handleStatus(ctx, msg)
	case strings.HasPrefix(msg.Text, "/support"), msg.Text == menuSupport:
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("🆘 Support: %s", b.supportContact))
	default:
		b.send(ctx, telegram.SendMessageParams{
			ChatID:      msg.Chat.ID,
			Text:        "I didn't understand that. Use the menu below.",
			ReplyMarkup: mainMenu(),
		})
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message) {
	if _, err := b.store.UpsertSubscriber(ctx, msg.From.ID, msg.From.FirstName, msg.From.Username); err != nil {
		log.Printf("Error registering subscriber %d: %v", msg.From.ID, err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, please try /start again.")
		return
	}

	text := fmt.Sprintf(
		"👋 Hi %s, welcome to *CryptoGuard PRO*.\n\n"+
			"Manage your access to the *VIP trading channel* here.\n\n"+
			"Use the menu or the commands:\n"+
			"📦 /plans – View plans\n"+
			"📊 /status – Subscription status\n"+
			"🆘 /support – Contact\n",
		msg.From.FirstName,
	)
	b.send(ctx, telegram.SendMessageParams{ChatID: msg.Chat.ID, Text: text, ReplyMarkup: mainMenu()})
}

func (b *Bot) handlePlans(ctx context.Context, chatID int64) {
	var text strings.Builder
	text.WriteString("📦 *AVAILABLE PLANS*\n\n")

	var keyboard [][]telegram.InlineKeyboardButton
	for _, plan := range subscription.Plans {
		fmt.Fprintf(&text, "*%s* — %.0f€\n%s\n\n", plan.Name, plan.Price, plan.Description)
		keyboard = append(keyboard, []telegram.InlineKeyboardButton{
			{Text: fmt.Sprintf("Choose %s", plan.Name), CallbackData: callbackChoose + plan.ID},
		})
	}

	b.send(ctx, telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        text.String(),
		ReplyMarkup: telegram.InlineKeyboardMarkup{InlineKeyboard: keyboard},
	})
}

func (b *Bot) handleStatus(ctx context.Context, msg *telegram.Message) {
	sub, err := b.store.FindSubscriber(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, store.ErrUnknownSubscriber) {
			b.reply(ctx, msg.Chat.ID, "You are not registered yet. Send /start first.")
			return
		}
		log.Printf("Error looking up subscriber %d: %v", msg.From.ID, err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	active, err := b.store.GetActiveSubscription(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.reply(ctx, msg.Chat.ID, "❌ You have no active subscription.")
			return
		}
		log.Printf("Error fetching subscription for subscriber %d: %v", sub.ID, err)
		b.reply(ctx, msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	plan, known := subscription.PlanByID(active.PlanID)
	planName := active.PlanID
	if known {
		planName = plan.Name
	}

	expires := "Lifetime"
	if active.ExpiresAt != nil {
		expires = active.ExpiresAt.UTC().Format(statusTimeLayout)
	}

	text := fmt.Sprintf(
		"📊 *Your subscription*\n\nPlan: %s\nStatus: %s\nStarted: %s\nExpires: %s",
		planName,
		active.Status,
		active.StartsAt.UTC().Format(statusTimeLayout),
		expires,
	)
	b.reply(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleCallback(ctx context.Context, query *telegram.CallbackQuery) {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := b.tg.AnswerCallbackQuery(ctx, query.ID); err != nil {
		log.Printf("Error answering callback query: %v", err)
	}
	if query.Message == nil {
		return
	}

	switch {
	case strings.HasPrefix(query.Data, callbackChoose):
		b.handleChoosePlan(ctx, query)
	case strings.HasPrefix(query.Data, callbackPay):
		b.handlePayMethod(ctx, query)
	}
}

func (b *Bot) handleChoosePlan(ctx context.Context, query *telegram.CallbackQuery) {
	planID := strings.TrimPrefix(query.Data, callbackChoose)
	plan, known := subscription.PlanByID(planID)
	if !known {
		b.edit(ctx, query, "❌ Error: plan not found.", nil)
		return
	}

	text := fmt.Sprintf(
		"💼 *You chose:* %s\n💰 Price: %.0f€\n\nSelect a payment method:\n💳 Stripe (card)\n",
		plan.Name, plan.Price,
	)
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "💳 Stripe", CallbackData: callbackPay + "stripe:" + plan.ID}},
		},
	}
	b.edit(ctx, query, text, markup)
}

func (b *Bot) handlePayMethod(ctx context.Context, query *telegram.CallbackQuery) {
	parts := strings.Split(strings.TrimPrefix(query.Data, callbackPay), ":")
	if len(parts) != 2 {
		return
	}
	method, planID := parts[0], parts[1]

	plan, known := subscription.PlanByID(planID)
	if !known {
		b.edit(ctx, query, "❌ Error: plan not found.", nil)
		return
	}
	if method != "stripe" {
		b.edit(ctx, query, "That payment method is not available yet.", nil)
		return
	}

	sub, err := b.store.UpsertSubscriber(ctx, query.From.ID, query.From.FirstName, query.From.Username)
	if err != nil {
		log.Printf("Error registering subscriber %d: %v", query.From.ID, err)
		b.edit(ctx, query, "Something went wrong, please try again.", nil)
		return
	}

	checkoutURL, err := b.checkout.CreateSession(ctx, sub, plan)
	if err != nil {
		log.Printf("Error creating checkout session for subscriber %d: %v", sub.TelegramID, err)
		b.edit(ctx, query, "Could not start the payment, please try again later.", nil)
		return
	}

	text := fmt.Sprintf(
		"💳 *PAY WITH STRIPE*\n\nPlan: *%s*\nPrice: %.0f€\n\n"+
			"👉 Click to pay:\n%s\n\n"+
			"_Your subscription activates automatically once the payment completes._",
		plan.Name, plan.Price, checkoutURL,
	)
	b.edit(ctx, query, text, nil)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, telegram.SendMessageParams{ChatID: chatID, Text: text})
}

func (b *Bot) send(ctx context.Context, params telegram.SendMessageParams) {
	if err := b.tg.SendMessage(ctx, params); err != nil {
		log.Printf("Error sending message to chat %d: %v", params.ChatID, err)
	}
}

func (b *Bot) edit(ctx context.Context, query *telegram.CallbackQuery, text string, markup *telegram.InlineKeyboardMarkup) {
	err := b.tg.EditMessageText(ctx, query.Message.Chat.ID, query.Message.MessageID, text, markup)
	if err != nil {
		log.Printf("Error editing message in chat %d: %v", query.Message.Chat.ID, err)
	}
}
