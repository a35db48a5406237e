package notification

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// webhookPayload is the JSON body posted for each alert. Run summaries carry
// the full RunReport so receivers need not parse the message text.
type webhookPayload struct {
	Event   string     `json:"event"`
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Run     *RunReport `json:"run,omitempty"`
	SentAt  string     `json:"sent_at"`
}

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: newHTTPClient(), now: time.Now}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	event := "alert"
	if alert.Run != nil {
		event = "backtest.finished"
	}
	err := postJSON(ctx, w.client, "webhook", w.url, webhookPayload{
		Event:   event,
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		Run:     alert.Run,
		SentAt:  w.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	slog.Debug("webhook alert sent", slog.String("event", event), slog.String("title", alert.Title))
	return nil
}
