package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

type recorder struct {
	got []Alert
	err error
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.got = append(r.got, a)
	return r.err
}

func TestWebhookNotifier_Send(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Message: "m"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload["title"] != "t" || payload["level"] != "INFO" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var path, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		text = body["text"]
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42")
	tn.apiBase = srv.URL
	if err := tn.Send(context.Background(), Alert{Level: AlertWarning, Title: "Run r-1", Message: "down 5.5%"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if !strings.Contains(text, `Run r\-1`) || !strings.Contains(text, `5\.5%`) {
		t.Errorf("text not escaped: %q", text)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a.b_c!"); got != `a\.b\_c\!` {
		t.Errorf("escapeMarkdown = %q", got)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	a := &recorder{}
	b := &recorder{err: errors.New("down")}
	err := Multi{a, b, NewLogNotifier()}.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("err = %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Error("every notifier should receive the alert")
	}
}

func TestRunAlerts_PublishRun(t *testing.T) {
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	history := []model.Snapshot{
		{Date: d0, TotalValue: 100000},
		{Date: d0.AddDate(0, 0, 1), TotalValue: 80000},
		{Date: d0.AddDate(0, 0, 2), TotalValue: 90000},
	}
	trades := []model.Trade{{Date: d0, Ticker: "AAPL", Action: model.ActionBuy, Price: 100, Quantity: 10}}

	rec := &recorder{}
	sink := NewRunAlerts(rec, 100000)
	sink.LossAlertPct = 5
	if err := sink.PublishRun(context.Background(), "r-9", trades, history); err != nil {
		t.Fatalf("PublishRun: %v", err)
	}
	if len(rec.got) != 1 {
		t.Fatalf("alerts = %d", len(rec.got))
	}
	a := rec.got[0]
	if a.Level != AlertWarning {
		t.Errorf("level = %s, want WARNING for -10%%", a.Level)
	}
	for _, want := range []string{"90000.00", "-10.00%", "1 trades", "3 days", "20.00%"} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message %q missing %q", a.Message, want)
		}
	}
	if !strings.Contains(a.Title, "r-9") {
		t.Errorf("title = %q", a.Title)
	}
}

func TestWebhookNotifier_RunPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	rep := RunReport{RunID: "r-2", FinalValue: 101000, ReturnPct: 1, Trades: 4, Buys: 3, Sells: 1, Days: 20}
	wn := NewWebhookNotifier(srv.URL)
	wn.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	if err := wn.Send(context.Background(), Alert{Level: AlertInfo, Title: "done", Run: &rep}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Event != "backtest.finished" {
		t.Errorf("event = %q", got.Event)
	}
	if got.Run == nil || *got.Run != rep {
		t.Errorf("run = %+v, want %+v", got.Run, rep)
	}
	if got.SentAt != "2025-01-02T03:04:05Z" {
		t.Errorf("sent_at = %q", got.SentAt)
	}
}

func TestTelegramText_RunCard(t *testing.T) {
	text := telegramText(Alert{
		Level: AlertWarning,
		Title: "Backtest r-3 finished",
		Run: &RunReport{
			FinalValue: 88000.5, ReturnPct: -12, Trades: 5, Buys: 3, Sells: 2,
			MaxDrawdownPct: 15.25, FirstDate: "2024-01-02", LastDate: "2024-12-31",
		},
	})
	for _, want := range []string{
		"📉",
		`Backtest r\-3 finished`,
		`_2024\-01\-02 to 2024\-12\-31_`,
		"Final value: `88000\\.50`",
		"Return: `\\-12\\.00%`",
		"Trades: `5 \\(3 buys, 2 sells\\)`",
		"Max drawdown: `15\\.25%`",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text %q missing %q", text, want)
		}
	}
}

func TestSummarize(t *testing.T) {
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	history := []model.Snapshot{
		{Date: d0, TotalValue: 1000},
		{Date: d0.AddDate(0, 0, 1), TotalValue: 900},
		{Date: d0.AddDate(0, 0, 2), TotalValue: 1100},
	}
	trades := []model.Trade{
		{Action: model.ActionBuy}, {Action: model.ActionBuyAdd}, {Action: model.ActionSell},
	}
	rep := Summarize("r", 1000, trades, history)
	if rep.Buys != 2 || rep.Sells != 1 || rep.Trades != 3 || rep.Days != 3 {
		t.Errorf("counts = %+v", rep)
	}
	if rep.FinalValue != 1100 || rep.ReturnPct < 9.999 || rep.ReturnPct > 10.001 {
		t.Errorf("value = %v (%v%%)", rep.FinalValue, rep.ReturnPct)
	}
	if rep.MaxDrawdownPct < 9.999 || rep.MaxDrawdownPct > 10.001 || rep.TroughAt != "2024-01-03" {
		t.Errorf("drawdown = %v at %q", rep.MaxDrawdownPct, rep.TroughAt)
	}
	if rep.FirstDate != "2024-01-02" || rep.LastDate != "2024-01-04" {
		t.Errorf("range = %s..%s", rep.FirstDate, rep.LastDate)
	}

	empty := Summarize("e", 500, nil, nil)
	if empty.FinalValue != 500 || empty.ReturnPct != 0 || empty.TroughAt != "" {
		t.Errorf("empty = %+v", empty)
	}
}
