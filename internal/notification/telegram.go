package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram Bot API as MarkdownV2.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPI,
		client:   newHTTPClient(),
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	err := postJSON(ctx, t.client, "telegram", url, map[string]string{
		"chat_id":    t.chatID,
		"text":       telegramText(alert),
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return err
	}
	slog.Debug("telegram alert sent", slog.String("title", alert.Title))
	return nil
}

// telegramText renders a run summary as a short key/value card, or the plain
// title and message for other alerts.
func telegramText(alert Alert) string {
	icon := "📈"
	switch alert.Level {
	case AlertWarning:
		icon = "📉"
	case AlertCritical:
		icon = "🚨"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", icon, escapeMarkdown(alert.Title))
	r := alert.Run
	if r == nil {
		b.WriteString("\n" + escapeMarkdown(alert.Message))
		return b.String()
	}
	if r.FirstDate != "" {
		fmt.Fprintf(&b, "_%s_\n", escapeMarkdown(r.FirstDate+" to "+r.LastDate))
	}
	line := func(k, v string) {
		fmt.Fprintf(&b, "\n%s: `%s`", escapeMarkdown(k), escapeMarkdown(v))
	}
	line("Final value", fmt.Sprintf("%.2f", r.FinalValue))
	line("Return", fmt.Sprintf("%+.2f%%", r.ReturnPct))
	line("Trades", fmt.Sprintf("%d (%d buys, %d sells)", r.Trades, r.Buys, r.Sells))
	line("Max drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdownPct))
	return b.String()
}

func escapeMarkdown(s string) string {
	const specials = "_*[]()~`>#+-=|{}.!\\"
	var b strings.Builder
	for _, c := range s {
		if strings.ContainsRune(specials, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
