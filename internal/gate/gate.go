// Package gate translates lifecycle effects into Telegram group membership
// changes. Every call is idempotent against the platform's current state
// and every failure is soft: the database remains the source of truth and
// drift is corrected by the next sweep (revokes) or a manual re-grant.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptoguard_backend/internal/telegram"
	"cryptoguard_backend/pkg/subscription"
)

type ResultKind string

const (
	ResultOK          ResultKind = "ok"
	ResultSoftFailure ResultKind = "soft_failure"
)

// Result reports the outcome of a platform call without ever failing the
// workflow that triggered it. Callers log soft failures and move on.
type Result struct {
	Kind ResultKind
	Err  error
}

func (r Result) Failed() bool {
	return r.Kind == ResultSoftFailure
}

func ok() Result {
	return Result{Kind: ResultOK}
}

func softFailure(err error) Result {
	return Result{Kind: ResultSoftFailure, Err: err}
}

var noticeTexts = map[subscription.NoticeKind]string{
	subscription.NoticeActivated: "🎉 *Payment received*\n\nYour subscription is now active and you have access to the VIP channel.\n\nThanks for your trust 🙌",
	subscription.NoticeExpired:   "❌ Your subscription has expired.\n🔄 You can renew it from /plans.",
}

type Gate struct {
	tg          *telegram.Client
	vipGroupID  int64
	callTimeout time.Duration
}

func New(tg *telegram.Client, vipGroupID int64) *Gate {
	return &Gate{
		tg:          tg,
		vipGroupID:  vipGroupID,
		callTimeout: 10 * time.Second,
	}
}

// Grant lifts any previous ban, then sends the user a fresh single-use
// invite link to the VIP group. Both steps tolerate the user already being
// a member.
func (g *Gate) Grant(ctx context.Context, telegramID int64) Result {
	if g.vipGroupID == 0 {
		return softFailure(fmt.Errorf("VIP_GROUP_ID is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if err := g.tg.UnbanChatMember(ctx, g.vipGroupID, telegramID, true); err != nil {
		return softFailure(fmt.Errorf("lifting ban: %v", err))
	}

	inviteLink, err := g.tg.CreateChatInviteLink(ctx, g.vipGroupID, 1)
	if err != nil {
		return softFailure(fmt.Errorf("creating invite link: %v", err))
	}

	err = g.tg.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: telegramID,
		Text:   fmt.Sprintf("👉 Join the VIP channel here:\n%s", inviteLink),
	})
	if err != nil {
		return softFailure(fmt.Errorf("sending invite link: %v", err))
	}
	return ok()
}

// Revoke kicks the user out of the VIP group: ban then unban, so they can
// rejoin later on a new subscription. A user who already left is a no-op.
func (g *Gate) Revoke(ctx context.Context, telegramID int64) Result {
	if g.vipGroupID == 0 {
		return softFailure(fmt.Errorf("VIP_GROUP_ID is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if err := g.tg.BanChatMember(ctx, g.vipGroupID, telegramID); err != nil {
		if memberAbsent(err) {
			return ok()
		}
		return softFailure(fmt.Errorf("banning member: %v", err))
	}
	if err := g.tg.UnbanChatMember(ctx, g.vipGroupID, telegramID, true); err != nil {
		return softFailure(fmt.Errorf("lifting kick ban: %v", err))
	}
	return ok()
}

// Notify sends a lifecycle direct message. Best effort: a user who blocked
// the bot produces a soft failure, never an error for the caller.
func (g *Gate) Notify(ctx context.Context, telegramID int64, notice subscription.NoticeKind) Result {
	text, known := noticeTexts[notice]
	if !known {
		return softFailure(fmt.Errorf("no message text for notice %q", notice))
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	err := g.tg.SendMessage(ctx, telegram.SendMessageParams{ChatID: telegramID, Text: text})
	if err != nil {
		return softFailure(err)
	}
	return ok()
}

// memberAbsent detects the Bot API errors for acting on a user who is not
// in the chat.
func memberAbsent(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user not found") ||
		strings.Contains(msg, "participant_id_invalid") ||
		strings.Contains(msg, "user_not_participant")
}
