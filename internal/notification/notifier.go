// Package notification delivers run summaries to external channels
// (webhooks, Telegram) once a backtest finishes.
package notification

import (
	"context"
	"errors"
	"log/slog"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// RunReport is the structured outcome of one backtest run.
type RunReport struct {
	RunID          string  `json:"run_id"`
	InitialValue   float64 `json:"initial_value"`
	FinalValue     float64 `json:"final_value"`
	ReturnPct      float64 `json:"return_pct"`
	Trades         int     `json:"trades"`
	Buys           int     `json:"buys"` // includes pyramid adds
	Sells          int     `json:"sells"`
	Days           int     `json:"days"`
	FirstDate      string  `json:"first_date,omitempty"`
	LastDate       string  `json:"last_date,omitempty"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	TroughAt       string  `json:"trough_at,omitempty"`
}

// Alert is a notification to be sent. Run is set for run summaries.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Run     *RunReport `json:"run,omitempty"`
}

// Notifier is implemented by every delivery backend.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	attrs := []any{
		slog.String("level", string(alert.Level)),
		slog.String("title", alert.Title),
		slog.String("message", alert.Message),
	}
	if r := alert.Run; r != nil {
		attrs = append(attrs,
			slog.String("run_id", r.RunID),
			slog.Float64("final_value", r.FinalValue),
			slog.Float64("return_pct", r.ReturnPct),
			slog.Int("trades", r.Trades))
	}
	slog.InfoContext(ctx, "alert", attrs...)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
