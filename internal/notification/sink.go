package notification

import (
	"context"
	"fmt"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/portfolio"
)

// RunAlerts turns a finished run into one alert. It implements model.RunSink.
type RunAlerts struct {
	n           Notifier
	initialCash float64
	// LossAlertPct raises the level to WARNING when the return falls below
	// -LossAlertPct percent. Zero disables.
	LossAlertPct float64
}

// NewRunAlerts creates a sink that reports returns relative to initialCash.
func NewRunAlerts(n Notifier, initialCash float64) *RunAlerts {
	return &RunAlerts{n: n, initialCash: initialCash}
}

// PublishRun summarises the run and sends it.
func (r *RunAlerts) PublishRun(ctx context.Context, runID string, trades []model.Trade, history []model.Snapshot) error {
	return r.n.Send(ctx, r.alert(Summarize(runID, r.initialCash, trades, history)))
}

// Summarize builds the RunReport for a trade log and valuation history.
func Summarize(runID string, initialCash float64, trades []model.Trade, history []model.Snapshot) RunReport {
	rep := RunReport{
		RunID:        runID,
		InitialValue: initialCash,
		FinalValue:   initialCash,
		Trades:       len(trades),
		Days:         len(history),
	}
	if n := len(history); n > 0 {
		rep.FinalValue = history[n-1].TotalValue
		rep.FirstDate = history[0].Date.Format(model.DateLayout)
		rep.LastDate = history[n-1].Date.Format(model.DateLayout)
	}
	if initialCash != 0 {
		rep.ReturnPct = (rep.FinalValue - initialCash) / initialCash * 100
	}
	for _, t := range trades {
		if t.Action == model.ActionSell {
			rep.Sells++
		} else {
			rep.Buys++
		}
	}
	dd := portfolio.MaxDrawdown(history)
	rep.MaxDrawdownPct = dd.MaxPct
	if dd.MaxPct > 0 {
		rep.TroughAt = dd.TroughAt.Format(model.DateLayout)
	}
	return rep
}

func (r *RunAlerts) alert(rep RunReport) Alert {
	level := AlertInfo
	if r.LossAlertPct > 0 && rep.ReturnPct < -r.LossAlertPct {
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: "Backtest " + rep.RunID + " finished",
		Message: fmt.Sprintf("final %.2f (%+.2f%%), %d trades over %d days, max drawdown %.2f%%",
			rep.FinalValue, rep.ReturnPct, rep.Trades, rep.Days, rep.MaxDrawdownPct),
		Run: &rep,
	}
}
