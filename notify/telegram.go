package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/warp/workfacts/timeoff"
)

// Telegram posts a short text message per event to one chat, e.g. the
// approvers' group.
type Telegram struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

// NewTelegram authenticates the bot token. endpoint overrides the Bot API
// URL pattern (tgbotapi.APIEndpoint when empty).
func NewTelegram(token string, chatID int64, endpoint string) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Telegram{Bot: bot, ChatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, ev timeoff.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.ChatID, FormatText(ev))
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatText renders an event as a plain-text message.
func FormatText(ev timeoff.Event) string {
	r := ev.Request
	var b strings.Builder

	switch ev.Kind {
	case timeoff.EventSubmitted:
		b.WriteString("New leave request")
	case timeoff.EventApproved:
		b.WriteString("Leave request approved")
	case timeoff.EventRejected:
		b.WriteString("Leave request rejected")
	case timeoff.EventRecorded:
		b.WriteString("Leave recorded")
	default:
		b.WriteString(string(ev.Kind))
	}
	if r.ID != "" {
		fmt.Fprintf(&b, " (%s)", r.ID)
	}

	fmt.Fprintf(&b, "\nUser: %s\nType: %s\nDays: %s", r.UserID, r.LeaveType, num(r.Days))
	if r.StartDate != "" {
		fmt.Fprintf(&b, "\nDates: %s to %s", r.StartDate, r.EndDate)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", r.Reason)
	}
	if res := ev.Resolution; res != nil && res.Status == timeoff.StatusApproved {
		if res.Debited {
			fmt.Fprintf(&b, "\nRemaining annual leave: %s", num(res.RemainingLeaveDays))
		}
		if !res.Persisted {
			b.WriteString("\nWARNING: balance update was not saved")
		}
	}
	return b.String()
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
